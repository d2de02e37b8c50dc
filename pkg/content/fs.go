package content

import (
	"context"
	"errors"
	"io/fs"
)

// FSSource serves files from an fs.FS.
type FSSource struct {
	fsys fs.FS
}

// NewFSSource creates a source over fsys. Use fs.Sub to serve a
// subdirectory of an embedded tree.
func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

// Exists reports whether urlPath names a regular file.
func (s *FSSource) Exists(_ context.Context, urlPath string) bool {
	rel, ok := RelPath(urlPath)
	if !ok {
		return false
	}
	info, err := fs.Stat(s.fsys, rel)
	return err == nil && !info.IsDir()
}

// Get reads the file at urlPath.
func (s *FSSource) Get(_ context.Context, urlPath string) ([]byte, error) {
	rel, ok := RelPath(urlPath)
	if !ok {
		return nil, ErrNotFound
	}
	data, err := fs.ReadFile(s.fsys, rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// MimeType returns the content type by extension.
func (s *FSSource) MimeType(urlPath string) string {
	return MimeType(urlPath)
}

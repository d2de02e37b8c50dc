package content

import (
	"context"
	"errors"
	"mime"
	"path"
	"path/filepath"
	"strings"
)

// DefaultDocument is served for "/" and directory paths.
const DefaultDocument = "index.html"

// ErrNotFound is returned when a source has no file at a path.
var ErrNotFound = errors.New("content: not found")

// Source provides static content by request path.
type Source interface {
	// Exists reports whether the source can serve urlPath.
	Exists(ctx context.Context, urlPath string) bool

	// Get returns the content at urlPath.
	Get(ctx context.Context, urlPath string) ([]byte, error)

	// MimeType returns the content type for urlPath.
	MimeType(urlPath string) string
}

// RelPath turns a request path into a clean slash-separated path relative to
// a content root, applying the default document. It rejects traversal and
// absolute-path tricks.
func RelPath(urlPath string) (string, bool) {
	if strings.IndexByte(urlPath, 0) != -1 || strings.Contains(urlPath, "\\") {
		return "", false
	}

	rel := strings.TrimPrefix(urlPath, "/")
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += DefaultDocument
	}

	// Reject dot-segments before cleaning so traversal is not cleaned away.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	clean := path.Clean(rel)
	if clean == "." || strings.HasPrefix(clean, "../") {
		return "", false
	}

	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}
	return clean, true
}

// MimeType returns the content type for a path by extension, defaulting to
// application/octet-stream.
func MimeType(urlPath string) string {
	rel, ok := RelPath(urlPath)
	if !ok {
		rel = urlPath
	}
	if t := mime.TypeByExtension(path.Ext(rel)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Package routepath canonicalizes route prefixes and request paths so that
// "/calc", "calc/" and "//calc" address the same route.
package routepath

import (
	"errors"
	"strings"
)

// Path canonicalization errors.
var (
	ErrBackslash            = errors.New("routepath: path contains backslash")
	ErrNullByte             = errors.New("routepath: path contains null byte")
	ErrInvalidPercentEscape = errors.New("routepath: invalid percent escape")
	ErrEscapesRoot          = errors.New("routepath: path escapes root via ..")
)

// Canonical normalizes a URL path:
//   - a leading "/" is added and a trailing "/" removed, except for root
//   - repeated slashes collapse (/a//b → /a/b)
//   - "." segments are removed and ".." segments resolved
//
// Any query string is dropped. Backslashes, NUL bytes, malformed percent
// escapes and ".." above root are rejected.
func Canonical(input string) (string, error) {
	path, _, _ := strings.Cut(strings.TrimSpace(input), "?")
	if path == "" {
		return "/", nil
	}

	if strings.Contains(path, "\\") {
		return "", ErrBackslash
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", ErrNullByte
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return "", err
		}
	}

	var out []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return "", ErrEscapesRoot
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/"), nil
}

// MustCanonical is like Canonical but panics on error.
func MustCanonical(input string) string {
	p, err := Canonical(input)
	if err != nil {
		panic(err)
	}
	return p
}

// validatePercentEscapes checks that every % starts a two-digit hex escape.
func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

package content

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
)

// Handler serves GET and HEAD requests from the first source that has the
// path. It responds 404 when none do.
func Handler(sources ...Source) http.Handler {
	logger := slog.Default().With("component", "content")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		for _, src := range sources {
			if !src.Exists(r.Context(), r.URL.Path) {
				continue
			}
			data, err := src.Get(r.Context(), r.URL.Path)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				logger.Error("content read failed", "path", r.URL.Path, "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", src.MimeType(r.URL.Path))
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
			if r.Method != http.MethodHead {
				_, _ = w.Write(data)
			}
			return
		}

		http.NotFound(w, r)
	})
}

// Package web embeds the assistant chat page (dist/). The page talks to the
// /api/assistant endpoints with the X-Academy-Session-ID header and listens for
// proactive pushes on the SSE stream.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

const indexFile = "index.html"

// ChatPageHandler serves the embedded chat page. Unknown paths fall back to
// index.html, except under /api/ and /ws/ which answer 404. The page itself is
// never cached so a redeploy is picked up on reload; other assets are cached
// for a day.
func ChatPageHandler() http.Handler {
	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/ws/") {
			http.NotFound(w, r)
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = indexFile
		}
		if path != indexFile {
			if f, err := subFS.Open(path); err == nil {
				if closeErr := f.Close(); closeErr != nil {
					slog.Debug("web: failed to close embedded file", "path", path, "error", closeErr)
				}
				w.Header().Set("Cache-Control", "public, max-age=86400")
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Cache-Control", "no-cache")
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}

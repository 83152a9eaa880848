// Package web embeds the browser chat page and serves it.
package web

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
)

//go:embed all:dist
var distFS embed.FS

const indexFile = "index.html"

// Handler serves the chat page and its assets. Paths without a file
// extension get the chat page; a missing asset is a 404.
func Handler() http.Handler {
	static, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	page, err := fs.ReadFile(static, indexFile)
	if err != nil {
		panic("web: missing " + indexFile + ": " + err.Error())
	}
	files := http.FileServer(http.FS(static))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name != "" && name != indexFile {
			if _, err := fs.Stat(static, name); err == nil {
				files.ServeHTTP(w, r)
				return
			}
			if path.Ext(name) != "" {
				http.NotFound(w, r)
				return
			}
		}

		// The page holds no versioned assets; always revalidate it.
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, indexFile, time.Time{}, bytes.NewReader(page))
	})
}

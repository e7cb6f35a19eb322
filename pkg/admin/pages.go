package admin

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed templates static
var uiFS embed.FS

// page serves one embedded dashboard page. The pages are static shells;
// all data arrives through the /ui/api endpoints.
func (h *Handler) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := uiFS.ReadFile("templates/" + name)
		if err != nil {
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	}
}

// static serves the embedded stylesheet and script.
func (h *Handler) static() http.Handler {
	sub, err := fs.Sub(uiFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/ui/static/", http.FileServerFS(sub))
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/websitelelo/websitelelo/internal/content"
)

type HomeHandler struct {
	Catalog *content.Catalog
}

func (h *HomeHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("WebsiteLelo API is running..."))
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health reports ok whenever the process serves requests; a down database
// only changes which store answers.
func (h *HomeHandler) Health(w http.ResponseWriter, r *http.Request) {
	db := "offline"
	if h.Catalog.Connected() {
		db = "connected"
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: db})
}

// Uploads serves uploaded files without directory listings.
func Uploads(dir, prefix string) http.Handler {
	files := http.StripPrefix(strings.TrimSuffix(prefix, "/"), http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

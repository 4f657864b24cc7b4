package http

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/mveljko/gatehouse/pkg/httpx"
)

//go:embed static
var staticFS embed.FS

// registerStatic serves the embedded css/js assets the pages reference.
func (r *Router) registerStatic() {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}

	files := httpx.Chain(http.FileServerFS(sub), httpx.MemRateLimit(httpx.PublicLimit))
	r.Mux.Handle("GET /css/", files)
	r.Mux.Handle("GET /js/", files)
}

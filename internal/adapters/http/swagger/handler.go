// Package swagger serves the API documentation.
package swagger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Routes.
const (
	SpecPath = "/openapi.yaml"
	DocsPath = "/api-docs"
)

// Register attaches the Swagger UI and the OpenAPI document to r.
//
//	GET /openapi.yaml   -> embedded OpenAPI document
//	GET /api-docs       -> redirect to the UI
//	GET /api-docs/*     -> Swagger UI loading /openapi.yaml
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	r.Get(SpecPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
	r.Get(DocsPath, func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, DocsPath+"/index.html", http.StatusMovedPermanently)
	})
	r.Get(DocsPath+"/*", httpSwagger.Handler(
		httpSwagger.URL(SpecPath),
		httpSwagger.DocExpansion("list"),
	))
}

package catalog

import (
	"net/http"

	"Storefront/pkg/kit"
)

// NewHandler wraps the catalog routes with the shared request plumbing.
func NewHandler(s *Server, deps kit.HTTPDeps) http.Handler {
	r := kit.NewRouter(deps)
	r.Mount("/", s.Routes())
	return r
}

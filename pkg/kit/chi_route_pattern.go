package kit

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// ChiRoutePatternOrPath labels a request by its route pattern so ids in
// the path do not blow up metric cardinality.
func ChiRoutePatternOrPath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if rp := rctx.RoutePattern(); rp != "" {
			return rp
		}
	}
	return r.URL.Path
}

// PathParam returns a decoded chi URL parameter. chi matches against
// RawPath when the request has one, so only then is the value still
// escaped.
func PathParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

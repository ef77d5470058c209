// Package cors adds the permissive cross-origin headers that let a browser
// on another device use the served files from any origin.
package cors

import "net/http"

// Headers are set on every response, in this order.
var Headers = [...][2]string{
	{"Access-Control-Allow-Origin", "*"},
	{"Access-Control-Allow-Methods", "GET, POST, OPTIONS"},
	{"Access-Control-Allow-Headers", "*"},
}

// Apply sets the CORS headers on h, replacing any previous values so each
// header appears exactly once.
func Apply(h http.Header) {
	for _, kv := range Headers {
		h.Set(kv[0], kv[1])
	}
}

// Middleware sets the CORS headers before next runs, so they are present
// whatever status next ends up writing.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Apply(w.Header())
		next.ServeHTTP(w, r)
	})
}

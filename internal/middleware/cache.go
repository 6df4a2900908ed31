package middleware

import (
	"net/http"
)

// NoStore sets strict no-cache headers on every response. Evaluation
// counts and access codes change between requests; stale responses in
// the admin dashboard are worse than the extra fetches.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"net/http"
	"strings"
)

// ProjectHeader carries the project scope of ingestion and query requests.
const ProjectHeader = "X-Project-ID"

// Project stores the request's project scope in the context. Only the
// X-Project-ID header is read: the middleware runs before chi matches route
// parameters, so stream handlers take {projectID} from the path themselves.
// Requests without a project pass through; handlers decide whether one is
// required.
func Project() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get(ProjectHeader)); id != "" {
				r = r.WithContext(WithProjectID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

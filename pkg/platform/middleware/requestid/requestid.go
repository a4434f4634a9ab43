// Package requestid assigns every request a correlation identifier, honoring
// one supplied by an upstream proxy.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"verifid/pkg/requestcontext"
)

const headerName = "X-Request-ID"

// Middleware injects a request ID into the context and echoes it back in the
// response headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerName)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(headerName, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

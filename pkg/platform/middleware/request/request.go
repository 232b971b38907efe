// Package request assigns every inbound HTTP request a stable identifier
// that flows through logs and audit entries.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"fides/pkg/requestcontext"
)

// Header carries the request id to and from clients.
const Header = "X-Request-ID"

// Middleware reuses a client-supplied request id or generates one, stores
// it in the context, and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

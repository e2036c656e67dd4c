// Package request provides correlation ID middleware. Every request gets a
// request ID, either propagated from the X-Request-ID header or freshly
// generated, available to handlers through requestcontext.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"bursary/pkg/requestcontext"
)

// HeaderRequestID is the header the correlation ID is read from and echoed to.
const HeaderRequestID = "X-Request-ID"

// Middleware ensures every request carries a correlation ID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the correlation ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

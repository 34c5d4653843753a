package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/pkg/logger"
)

const sessionIDHeader = "X-Session-Id"

// Session binds every request to a cart session. Clients are expected to
// persist the header value locally; when it is absent or malformed a fresh
// session is minted and echoed back so the client can adopt it.
func Session(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(sessionIDHeader)
			if _, err := uuid.Parse(sessionID); err != nil {
				sessionID = uuid.NewString()
			}

			w.Header().Set(sessionIDHeader, sessionID)

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

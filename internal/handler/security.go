package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/plantpass/internal/domain/auth"
)

// require returns a wrapper that admits requests carrying a valid bearer
// token for role. Tokens issued for a temporary password are admitted only
// when allowTemp is set.
func (h *Handler) require(role auth.Role, allowTemp bool) func(http.HandlerFunc) http.Handler {
	return func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := h.tokens.VerifyHeader(r.Header.Get("Authorization"))
			if err != nil {
				zctx.From(r.Context()).Debug("Token rejected", zap.Error(err))
				writeJSON(w, http.StatusUnauthorized, authError{Error: tokenMessage(err)})
				return
			}
			if !claims.Allows(role) {
				writeMessage(w, http.StatusForbidden, "Admin access required")
				return
			}
			if claims.Temp && !allowTemp {
				writeMessage(w, http.StatusForbidden, "Password change required")
				return
			}
			next(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenMissing):
		return "Missing Authorization header"
	case errors.Is(err, auth.ErrTokenMalformed):
		return "Invalid Authorization header format"
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token expired"
	default:
		return "Invalid token"
	}
}

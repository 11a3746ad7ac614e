package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/auth"
	"github.com/frahmantamala/finance-tracker/internal/transport"
)

// RequireRoles rejects requests whose user holds none of roles.
func RequireRoles(logger *slog.Logger, roles ...auth.Role) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				base.HandleServiceError(w, r, internal.NewUnauthorizedError("Access token required", internal.ErrCodeInvalidToken))
				return
			}

			if !user.HasRole(roles...) {
				base.Log(r).Warn("access denied: insufficient role",
					"user_id", user.ID,
					"role", user.Role,
					"required_roles", roles)
				base.HandleServiceError(w, r, internal.ErrInsufficientRole)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

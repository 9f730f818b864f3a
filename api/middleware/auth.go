package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/fuelstation-backend/api/responses"
	"github.com/angelmondragon/fuelstation-backend/internal/access"
	pkgAuth "github.com/angelmondragon/fuelstation-backend/pkg/auth"
	"github.com/angelmondragon/fuelstation-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
	"github.com/angelmondragon/fuelstation-backend/pkg/logger"
)

// Auth validates the bearer token issued by the identity service, resolves the
// caller's capabilities once and seeds the request context with the grant.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			grant := access.GrantAll(access.Actor{
				UserID:       claims.UserID,
				Role:         claims.Role,
				GasStationID: claims.GasStationID,
			})
			ctx := WithGrant(r.Context(), grant)

			if logg != nil {
				ctx = logg.WithActor(ctx, claims.UserID, string(claims.Role), claims.GasStationID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

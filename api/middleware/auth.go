package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/halcyonretail/storefront-sync/api/responses"
	"github.com/halcyonretail/storefront-sync/internal/session"
	pkgauth "github.com/halcyonretail/storefront-sync/pkg/auth"
	"github.com/halcyonretail/storefront-sync/pkg/config"
	pkgerrors "github.com/halcyonretail/storefront-sync/pkg/errors"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// shopper's identity. The raw token rides along; it is forwarded to the
// remote store as-is on every outbound call.
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

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.UserID == 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user id"))
				return
			}

			ident := session.Identity{
				UserID: claims.UserID,
				Email:  claims.Email,
				Token:  token,
			}
			ctx := WithIdentity(r.Context(), ident)
			if logg != nil {
				ctx = logg.WithUserID(ctx, strconv.FormatInt(claims.UserID, 10))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

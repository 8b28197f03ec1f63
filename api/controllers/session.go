package controllers

import (
	"net/http"

	"github.com/halcyonretail/storefront-sync/api/middleware"
	"github.com/halcyonretail/storefront-sync/api/responses"
	pkgerrors "github.com/halcyonretail/storefront-sync/pkg/errors"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
)

// ShopperDropper discards a shopper's synchronizer state.
type ShopperDropper interface {
	Drop(userID int64)
}

// SessionLogout tears down the shopper's local state. Pending wishlist
// commits are discarded, the cart and wishlist empty immediately. The
// token itself is not revoked here; the storefront's auth service owns
// token lifecycle.
func SessionLogout(dropper ShopperDropper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dropper == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shopper directory unavailable"))
			return
		}
		ident, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
			return
		}

		dropper.Drop(ident.UserID)
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

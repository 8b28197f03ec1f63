package controllers

import (
	"net/http"

	"github.com/halcyonretail/storefront-sync/api/responses"
	"github.com/halcyonretail/storefront-sync/api/validators"
	"github.com/halcyonretail/storefront-sync/internal/catalog"
	"github.com/halcyonretail/storefront-sync/internal/gateway"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
)

type wishlistResponse struct {
	Items   []gateway.WishlistEntry `json:"items"`
	Count   int                     `json:"count"`
	Loading bool                    `json:"loading"`
}

// WishlistGet reconciles the shopper's wishlist with the remote store
// and returns the resulting local view.
func WishlistGet(dir ShopperDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := acquireState(w, r, dir, logg)
		if !ok {
			return
		}
		if err := st.Wishlist.Refresh(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wishlistResponse{
			Items:   st.Wishlist.Entries(),
			Count:   st.Wishlist.Count(),
			Loading: st.Wishlist.Loading(),
		})
	}
}

type toggleWishlistRequest struct {
	Product *catalog.Product `json:"product"`
}

type toggleWishlistResponse struct {
	ProductID int64 `json:"product_id"`
	Liked     bool  `json:"liked"`
	Count     int   `json:"count"`
}

// WishlistToggle flips a product's membership optimistically and
// schedules the debounced remote commit. The response reflects the
// local state; the network write settles after the debounce window.
// Callers that know the full product can send it so the wishlist view
// gains a display entry without a re-fetch.
func WishlistToggle(dir ShopperDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := acquireState(w, r, dir, logg)
		if !ok {
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload toggleWishlistRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		liked := st.Toggler.Toggle(productID, payload.Product)
		responses.WriteSuccess(w, toggleWishlistResponse{
			ProductID: productID,
			Liked:     liked,
			Count:     st.Wishlist.Count(),
		})
	}
}

type wishlistMembershipResponse struct {
	ProductID int64 `json:"product_id"`
	Liked     bool  `json:"liked"`
}

// WishlistContains reports local membership without touching the
// network; product cards poll this to render the heart state.
func WishlistContains(dir ShopperDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := acquireState(w, r, dir, logg)
		if !ok {
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wishlistMembershipResponse{
			ProductID: productID,
			Liked:     st.Wishlist.Contains(productID),
		})
	}
}

package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/halcyonretail/storefront-sync/api/middleware"
	"github.com/halcyonretail/storefront-sync/api/responses"
	"github.com/halcyonretail/storefront-sync/api/validators"
	cartsvc "github.com/halcyonretail/storefront-sync/internal/cart"
	"github.com/halcyonretail/storefront-sync/internal/session"
	"github.com/halcyonretail/storefront-sync/internal/shopper"
	pkgerrors "github.com/halcyonretail/storefront-sync/pkg/errors"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
)

// ShopperDirectory resolves the per-shopper synchronizer state.
type ShopperDirectory interface {
	Acquire(ident session.Identity) (*shopper.State, error)
}

type cartResponse struct {
	Items         []cartsvc.Line  `json:"items"`
	TotalItems    int             `json:"total_items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Loading       bool            `json:"loading"`
	ProcessingIDs []int64         `json:"processing_ids"`
}

func newCartResponse(snap cartsvc.Snapshot) cartResponse {
	return cartResponse{
		Items:         snap.Lines,
		TotalItems:    cartsvc.TotalItems(snap.Lines),
		TotalPrice:    cartsvc.TotalPrice(snap.Lines),
		Loading:       snap.Loading,
		ProcessingIDs: snap.ProcessingIDs,
	}
}

// CartGet reconciles the shopper's cart with the remote store and
// returns the resulting local view.
func CartGet(dir ShopperDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := acquireState(w, r, dir, logg)
		if !ok {
			return
		}
		if err := st.Cart.Refresh(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(st.Cart.Snapshot()))
	}
}

type addCartItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// CartAdd adds one unit of a product; a repeat add increments the
// existing line server-side.
func CartAdd(dir ShopperDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := acquireState(w, r, dir, logg)
		if !ok {
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := st.Cart.Add(r.Context(), payload.ProductID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(st.Cart.Snapshot()))
	}
}

// CartRemove deletes a product's line from the cart.
func CartRemove(dir ShopperDirectory, logg *logger.Logger) http.HandlerFunc {
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

		if err := st.Cart.Remove(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(st.Cart.Snapshot()))
	}
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// CartSetQuantity patches a line's quantity. Zero or negative removes
// the line.
func CartSetQuantity(dir ShopperDirectory, logg *logger.Logger) http.HandlerFunc {
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

		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := st.Cart.SetQuantity(r.Context(), productID, *payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(st.Cart.Snapshot()))
	}
}

// CartClear empties the cart in one call.
func CartClear(dir ShopperDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := acquireState(w, r, dir, logg)
		if !ok {
			return
		}
		if err := st.Cart.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(st.Cart.Snapshot()))
	}
}

func acquireState(w http.ResponseWriter, r *http.Request, dir ShopperDirectory, logg *logger.Logger) (*shopper.State, bool) {
	if dir == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shopper directory unavailable"))
		return nil, false
	}
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
		return nil, false
	}
	st, err := dir.Acquire(ident)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return st, true
}

func productIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "productId")
	productID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || productID <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id")
	}
	return productID, nil
}

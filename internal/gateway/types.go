package gateway

import "github.com/halcyonretail/storefront-sync/internal/catalog"

// CartLine is one entry of the remote cart. The remote store assigns
// its own line id, distinct from the product id; quantity updates are
// addressed by line id while removals are addressed by product id.
type CartLine struct {
	ID       int64           `json:"id"`
	Quantity int             `json:"quantity"`
	Product  catalog.Product `json:"product"`
}

// WishlistEntry wraps the product record of one wishlist row.
type WishlistEntry struct {
	Product catalog.Product `json:"product"`
}

type cartEnvelope struct {
	CartItems []CartLine `json:"cart_items"`
}

type wishlistEnvelope struct {
	Wishlists []WishlistEntry `json:"wishlists"`
}

type addCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type addWishlistRequest struct {
	ProductID int64 `json:"product_id"`
}

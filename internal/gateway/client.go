package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/halcyonretail/storefront-sync/pkg/config"
	pkgerrors "github.com/halcyonretail/storefront-sync/pkg/errors"
)

// Client talks to the remote commerce API. Every call is best-effort:
// no retries, no backoff; failures surface as typed errors and the
// synchronizers decide how to reconcile.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a gateway client for the configured base URL.
func New(cfg config.GatewayConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// FetchCart reads the authoritative cart collection.
func (c *Client) FetchCart(ctx context.Context, token string) ([]CartLine, error) {
	var envelope cartEnvelope
	if err := c.do(ctx, token, http.MethodGet, "/cart", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.CartItems, nil
}

// AddCartItem creates a cart line or increments an existing one. The
// remote store collapses duplicate adds, so the resulting quantity is
// only known after a subsequent FetchCart.
func (c *Client) AddCartItem(ctx context.Context, token string, productID int64, quantity int) error {
	payload := addCartItemRequest{ProductID: productID, Quantity: quantity}
	return c.do(ctx, token, http.MethodPost, "/cart/items", payload, nil)
}

// RemoveCartItem deletes the cart line for the given product id.
func (c *Client) RemoveCartItem(ctx context.Context, token string, productID int64) error {
	return c.do(ctx, token, http.MethodDelete, fmt.Sprintf("/cart/items/%d", productID), nil, nil)
}

// UpdateCartItem patches the quantity of a line, addressed by the
// server-assigned line id, not the product id.
func (c *Client) UpdateCartItem(ctx context.Context, token string, lineID int64, quantity int) error {
	payload := updateCartItemRequest{Quantity: quantity}
	return c.do(ctx, token, http.MethodPatch, fmt.Sprintf("/cart/items/%d", lineID), payload, nil)
}

// ClearCart bulk-deletes the whole cart.
func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, token, http.MethodDelete, "/cart/clear", nil, nil)
}

// FetchWishlist reads the full wishlist collection.
func (c *Client) FetchWishlist(ctx context.Context, token string) ([]WishlistEntry, error) {
	var envelope wishlistEnvelope
	if err := c.do(ctx, token, http.MethodGet, "/wishlist", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Wishlists, nil
}

// AddWishlistItem likes a product.
func (c *Client) AddWishlistItem(ctx context.Context, token string, productID int64) error {
	payload := addWishlistRequest{ProductID: productID}
	return c.do(ctx, token, http.MethodPost, "/wishlist", payload, nil)
}

// RemoveWishlistItem unlikes a product.
func (c *Client) RemoveWishlistItem(ctx context.Context, token string, productID int64) error {
	return c.do(ctx, token, http.MethodDelete, fmt.Sprintf("/wishlist/%d", productID), nil, nil)
}

func (c *Client) do(ctx context.Context, token, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remote store unreachable")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode remote response")
		}
	}
	return nil
}

func statusError(status int, method, path string) error {
	detail := map[string]any{"status": status, "call": method + " " + path}
	switch status {
	case http.StatusBadRequest:
		return pkgerrors.New(pkgerrors.CodeValidation, "remote store rejected the request").WithDetails(detail)
	case http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "remote store rejected credentials")
	case http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeForbidden, "remote store denied access")
	case http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "remote resource not found")
	case http.StatusConflict:
		return pkgerrors.New(pkgerrors.CodeConflict, "remote store reported a conflict")
	case http.StatusTooManyRequests:
		return pkgerrors.New(pkgerrors.CodeRateLimit, "remote store throttled the request")
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, "remote store error").WithDetails(detail)
	}
}

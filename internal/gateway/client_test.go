package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/halcyonretail/storefront-sync/pkg/config"
	pkgerrors "github.com/halcyonretail/storefront-sync/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(config.GatewayConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestFetchCartDecodesEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/cart" {
			t.Fatalf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cart_items":[{"id":11,"quantity":2,"product":{"id":5,"name":"Mug","price":"9.50"}}]}`))
	})

	lines, err := client.FetchCart(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].ID != 11 || lines[0].Quantity != 2 || lines[0].Product.ID != 5 {
		t.Fatalf("unexpected line %+v", lines[0])
	}
}

func TestAddCartItemSendsBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cart/items" {
			t.Fatalf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		var body map[string]int64
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["product_id"] != 5 || body["quantity"] != 1 {
			t.Fatalf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusCreated)
	})

	if err := client.AddCartItem(context.Background(), "tok", 5, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateCartItemAddressesLineID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/cart/items/42" {
			t.Fatalf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		var body map[string]int
		json.NewDecoder(r.Body).Decode(&body)
		if body["quantity"] != 3 {
			t.Fatalf("unexpected quantity %d", body["quantity"])
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	if err := client.UpdateCartItem(context.Background(), "tok", 42, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRemoveCartItemAddressesProductID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/cart/items/5" {
			t.Fatalf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.RemoveCartItem(context.Background(), "tok", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWishlistRoundTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /wishlist":
			w.Write([]byte(`{"wishlists":[{"product":{"id":9,"name":"Chair","price":120}}]}`))
		case "POST /wishlist":
			var body map[string]int64
			json.NewDecoder(r.Body).Decode(&body)
			if body["product_id"] != 9 {
				t.Fatalf("unexpected add body %v", body)
			}
			w.WriteHeader(http.StatusCreated)
		case "DELETE /wishlist/9":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	})

	ctx := context.Background()
	entries, err := client.FetchWishlist(ctx, "tok")
	if err != nil {
		t.Fatalf("fetch wishlist: %v", err)
	}
	if len(entries) != 1 || entries[0].Product.ID != 9 {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if err := client.AddWishlistItem(ctx, "tok", 9); err != nil {
		t.Fatalf("add wishlist: %v", err)
	}
	if err := client.RemoveWishlistItem(ctx, "tok", 9); err != nil {
		t.Fatalf("remove wishlist: %v", err)
	}
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadGateway, pkgerrors.CodeDependency},
	}

	for _, tt := range tests {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		err := client.ClearCart(context.Background(), "tok")
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != tt.code {
			t.Fatalf("status %d: expected code %s, got %v", tt.status, tt.code, err)
		}
	}
}

func TestTransportFailureMapsToDependency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client, err := New(config.GatewayConfig{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	srv.Close()

	err = client.AddCartItem(context.Background(), "tok", 1, 1)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestMalformedResponseMapsToDependency(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cart_items": "nope"`))
	})

	_, err := client.FetchCart(context.Background(), "tok")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

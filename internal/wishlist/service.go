package wishlist

import (
	"context"
	"sync"
	"time"

	"github.com/halcyonretail/storefront-sync/internal/catalog"
	"github.com/halcyonretail/storefront-sync/internal/gateway"
	"github.com/halcyonretail/storefront-sync/internal/session"
	pkgerrors "github.com/halcyonretail/storefront-sync/pkg/errors"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
	"github.com/halcyonretail/storefront-sync/pkg/metrics"
)

const (
	opFetch  = "wishlist.fetch"
	opAdd    = "wishlist.add"
	opRemove = "wishlist.remove"
)

// Gateway is the remote wishlist surface.
type Gateway interface {
	FetchWishlist(ctx context.Context, token string) ([]gateway.WishlistEntry, error)
	AddWishlistItem(ctx context.Context, token string, productID int64) error
	RemoveWishlistItem(ctx context.Context, token string, productID int64) error
}

// SynchronizerParams groups dependencies for the wishlist synchronizer.
type SynchronizerParams struct {
	Gateway Gateway
	Session *session.Accessor
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Synchronizer keeps the shopper's wishlist membership locally, applies
// toggles optimistically, and rolls the optimistic flip back when the
// remote write fails. Membership checks are O(1); the entry list is
// kept alongside for display.
type Synchronizer struct {
	gw      Gateway
	sess    *session.Accessor
	logg    *logger.Logger
	metrics *metrics.SyncMetrics

	mu          sync.Mutex
	members     map[int64]struct{}
	entries     []gateway.WishlistEntry
	loading     bool
	fetchedOnce bool
}

func NewSynchronizer(params SynchronizerParams) (*Synchronizer, error) {
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist gateway is required")
	}
	if params.Session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session accessor is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	s := &Synchronizer{
		gw:      params.Gateway,
		sess:    params.Session,
		logg:    params.Logger,
		metrics: params.Metrics,
		members: make(map[int64]struct{}),
	}
	params.Session.Subscribe(s.onIdentityChange)
	return s, nil
}

func (s *Synchronizer) onIdentityChange() {
	s.mu.Lock()
	s.members = make(map[int64]struct{})
	s.entries = nil
	s.loading = false
	s.fetchedOnce = false
	s.mu.Unlock()

	if _, ok := s.sess.Current(); ok {
		go func() {
			if err := s.Refresh(context.Background()); err != nil {
				s.logg.Error(context.Background(), "wishlist.refresh_after_login", err)
			}
		}()
	}
}

// Refresh replaces the local membership with the authoritative remote
// wishlist. Without an identity it just clears the local state.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	ident, ok := s.sess.Current()
	if !ok {
		s.mu.Lock()
		s.members = make(map[int64]struct{})
		s.entries = nil
		s.mu.Unlock()
		return nil
	}
	epoch := s.sess.Epoch()

	s.mu.Lock()
	first := !s.fetchedOnce
	if first {
		s.loading = true
	}
	s.mu.Unlock()

	start := time.Now()
	remote, err := s.gw.FetchWishlist(ctx, ident.Token)
	s.metrics.ObserveDuration(opFetch, time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess.Epoch() != epoch {
		// Stale response from a previous session; leave the flags the
		// identity-change reset put in place.
		s.logg.Debug(ctx, "wishlist.fetch_discarded_stale_epoch")
		return nil
	}

	s.loading = false
	s.fetchedOnce = true

	if err != nil {
		s.metrics.IncFailure(opFetch)
		s.logg.Error(ctx, "wishlist.fetch_failed", err)
		return err
	}
	s.metrics.IncSuccess(opFetch)

	members := make(map[int64]struct{}, len(remote))
	for _, entry := range remote {
		members[entry.Product.ID] = struct{}{}
	}
	s.members = members
	s.entries = remote
	return nil
}

// MarkLocal applies a membership flip locally without touching the
// network. When adding and the caller knows the full product, a display
// entry is synthesized so the wishlist view updates without a re-fetch.
func (s *Synchronizer) MarkLocal(productID int64, liked bool, known *catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if liked {
		if _, ok := s.members[productID]; ok {
			return
		}
		s.members[productID] = struct{}{}
		if known != nil {
			s.entries = append(s.entries, gateway.WishlistEntry{Product: *known})
		}
		return
	}
	delete(s.members, productID)
	s.entries = dropEntry(s.entries, productID)
}

// Commit writes the desired membership state to the remote store. On
// failure the optimistic flip is rolled back: a failed add drops the
// membership and any synthesized entry, a failed remove restores the
// membership and re-fetches so the display entry comes back with full
// product data. A rollback is skipped when the identity changed while
// the write was in flight; the state was already reset.
func (s *Synchronizer) Commit(ctx context.Context, productID int64, liked bool) error {
	ident, ok := s.sess.Current()
	if !ok {
		return nil
	}
	epoch := s.sess.Epoch()

	op := opAdd
	start := time.Now()
	var err error
	if liked {
		err = s.gw.AddWishlistItem(ctx, ident.Token, productID)
	} else {
		op = opRemove
		err = s.gw.RemoveWishlistItem(ctx, ident.Token, productID)
	}
	s.metrics.ObserveDuration(op, time.Since(start))

	if err == nil {
		s.metrics.IncSuccess(op)
		return nil
	}
	s.metrics.IncFailure(op)
	s.logg.Error(s.logg.WithProductID(ctx, productID), "wishlist.commit_failed", err)

	if s.sess.Epoch() != epoch {
		return err
	}

	s.metrics.IncRollback(op)
	if liked {
		s.MarkLocal(productID, false, nil)
		return err
	}
	s.MarkLocal(productID, true, nil)
	if refreshErr := s.Refresh(ctx); refreshErr != nil {
		s.logg.Error(ctx, "wishlist.rollback_refresh_failed", refreshErr)
	}
	return err
}

// Contains reports membership for the product.
func (s *Synchronizer) Contains(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[productID]
	return ok
}

// Entries returns a copy of the display list.
func (s *Synchronizer) Entries() []gateway.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gateway.WishlistEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Count returns the number of wishlisted products.
func (s *Synchronizer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// Loading reports the coarse loading flag for the initial population.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func dropEntry(entries []gateway.WishlistEntry, productID int64) []gateway.WishlistEntry {
	kept := entries[:0]
	for _, entry := range entries {
		if entry.Product.ID != productID {
			kept = append(kept, entry)
		}
	}
	return kept
}

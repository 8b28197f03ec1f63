package cart

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/halcyonretail/storefront-sync/internal/catalog"
	"github.com/halcyonretail/storefront-sync/internal/gateway"
	"github.com/halcyonretail/storefront-sync/internal/session"
	pkgerrors "github.com/halcyonretail/storefront-sync/pkg/errors"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
	"github.com/halcyonretail/storefront-sync/pkg/metrics"
)

const (
	opFetch       = "cart.fetch"
	opAdd         = "cart.add"
	opRemove      = "cart.remove"
	opSetQuantity = "cart.set_quantity"
	opClear       = "cart.clear"
)

// Gateway is the remote cart surface the synchronizer writes through to.
type Gateway interface {
	FetchCart(ctx context.Context, token string) ([]gateway.CartLine, error)
	AddCartItem(ctx context.Context, token string, productID int64, quantity int) error
	RemoveCartItem(ctx context.Context, token string, productID int64) error
	UpdateCartItem(ctx context.Context, token string, lineID int64, quantity int) error
	ClearCart(ctx context.Context, token string) error
}

// Line is one locally held cart entry: a product plus its quantity.
// Order follows the server-reported order and carries no local meaning.
type Line struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Snapshot is a copy of the local cart state safe to hand to readers.
type Snapshot struct {
	Lines         []Line
	ProcessingIDs []int64
	Loading       bool
}

// SynchronizerParams groups dependencies for the cart synchronizer.
type SynchronizerParams struct {
	Gateway Gateway
	Session *session.Accessor
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Synchronizer owns the authoritative local view of the shopper's
// cart. All mutations go through the remote store and the local state
// is reconciled from the server response; nothing mutates the state
// except the synchronizer's own methods.
type Synchronizer struct {
	gw      Gateway
	sess    *session.Accessor
	logg    *logger.Logger
	metrics *metrics.SyncMetrics

	mu          sync.Mutex
	lines       []Line
	processing  map[int64]struct{}
	loading     bool
	fetchedOnce bool
}

// NewSynchronizer builds a cart synchronizer and subscribes it to
// identity changes: a login or logout clears the local state
// synchronously, and on login a background reconcile is kicked off.
func NewSynchronizer(params SynchronizerParams) (*Synchronizer, error) {
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart gateway is required")
	}
	if params.Session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session accessor is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	s := &Synchronizer{
		gw:         params.Gateway,
		sess:       params.Session,
		logg:       params.Logger,
		metrics:    params.Metrics,
		processing: make(map[int64]struct{}),
	}
	params.Session.Subscribe(s.onIdentityChange)
	return s, nil
}

func (s *Synchronizer) onIdentityChange() {
	s.mu.Lock()
	s.lines = nil
	s.processing = make(map[int64]struct{})
	s.loading = false
	s.fetchedOnce = false
	s.mu.Unlock()

	if _, ok := s.sess.Current(); ok {
		go func() {
			if err := s.Refresh(context.Background()); err != nil {
				s.logg.Error(context.Background(), "cart.refresh_after_login", err)
			}
		}()
	}
}

// Refresh replaces the local line set with the authoritative remote
// cart. Without an identity it just clears the local state. On failure
// the existing state is left untouched and a typed error is returned.
// The coarse loading flag is only raised for the first fetch of a
// session; reconciles after mutations stay silent.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	ident, ok := s.sess.Current()
	if !ok {
		s.mu.Lock()
		s.lines = nil
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
	remote, err := s.gw.FetchCart(ctx, ident.Token)
	s.metrics.ObserveDuration(opFetch, time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess.Epoch() != epoch {
		// The identity changed while the fetch was in flight: the
		// response belongs to a previous session, and so do the
		// loading/fetchedOnce flags this call would have lowered.
		s.logg.Debug(ctx, "cart.fetch_discarded_stale_epoch")
		return nil
	}

	s.loading = false
	s.fetchedOnce = true

	if err != nil {
		s.metrics.IncFailure(opFetch)
		s.logg.Error(ctx, "cart.fetch_failed", err)
		return err
	}
	s.metrics.IncSuccess(opFetch)

	s.lines = mapLines(remote)
	return nil
}

// Add issues a create-or-increment for quantity 1 and reconciles from
// the server on success; the server is authoritative for the resulting
// quantity, so rapid duplicate adds collapse into an increment. No-op
// without an identity.
func (s *Synchronizer) Add(ctx context.Context, productID int64) error {
	ident, ok := s.sess.Current()
	if !ok {
		return nil
	}
	if err := s.beginProcessing(productID); err != nil {
		return err
	}
	defer s.endProcessing(productID)

	start := time.Now()
	err := s.gw.AddCartItem(ctx, ident.Token, productID, 1)
	s.metrics.ObserveDuration(opAdd, time.Since(start))
	if err != nil {
		s.metrics.IncFailure(opAdd)
		s.logg.Error(s.logg.WithProductID(ctx, productID), "cart.add_failed", err)
		return err
	}
	s.metrics.IncSuccess(opAdd)
	return s.Refresh(ctx)
}

// Remove deletes the line for a product and then reconciles
// unconditionally, even when the delete itself failed: the delete may
// still have landed server-side, and the re-fetch settles the local
// view either way. Unlike the storefront this grew out of, a failed
// delete is no longer masked; it is returned alongside any re-fetch
// error.
func (s *Synchronizer) Remove(ctx context.Context, productID int64) error {
	ident, ok := s.sess.Current()
	if !ok {
		return nil
	}
	if err := s.beginProcessing(productID); err != nil {
		return err
	}
	defer s.endProcessing(productID)

	start := time.Now()
	removeErr := s.gw.RemoveCartItem(ctx, ident.Token, productID)
	s.metrics.ObserveDuration(opRemove, time.Since(start))
	if removeErr != nil {
		s.metrics.IncFailure(opRemove)
		s.logg.Error(s.logg.WithProductID(ctx, productID), "cart.remove_failed", removeErr)
	} else {
		s.metrics.IncSuccess(opRemove)
	}

	return multierr.Append(removeErr, s.Refresh(ctx))
}

// SetQuantity patches a line's quantity. Quantities at or below zero
// are removals, never zero-quantity lines. The remote update endpoint
// addresses lines by their server-assigned id, so the authoritative
// cart is re-read first to resolve the product id into a line id; when
// no line matches, the patch is skipped but the reconcile still runs.
func (s *Synchronizer) SetQuantity(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}

	ident, ok := s.sess.Current()
	if !ok {
		return nil
	}
	if err := s.beginProcessing(productID); err != nil {
		return err
	}
	defer s.endProcessing(productID)

	start := time.Now()
	remote, err := s.gw.FetchCart(ctx, ident.Token)
	if err != nil {
		s.metrics.ObserveDuration(opSetQuantity, time.Since(start))
		s.metrics.IncFailure(opSetQuantity)
		s.logg.Error(s.logg.WithProductID(ctx, productID), "cart.set_quantity_lookup_failed", err)
		return err
	}

	var lineID int64
	found := false
	for _, line := range remote {
		if line.Product.ID == productID {
			lineID = line.ID
			found = true
			break
		}
	}

	if found {
		if err := s.gw.UpdateCartItem(ctx, ident.Token, lineID, quantity); err != nil {
			s.metrics.ObserveDuration(opSetQuantity, time.Since(start))
			s.metrics.IncFailure(opSetQuantity)
			s.logg.Error(s.logg.WithProductID(ctx, productID), "cart.set_quantity_failed", err)
			return err
		}
	}
	s.metrics.ObserveDuration(opSetQuantity, time.Since(start))
	s.metrics.IncSuccess(opSetQuantity)

	return s.Refresh(ctx)
}

// Clear bulk-deletes the remote cart and empties the local state
// regardless of the call's outcome. Best-effort on purpose: there is
// no rollback path, and the next reconcile restores server truth if
// the bulk delete did not land.
func (s *Synchronizer) Clear(ctx context.Context) error {
	ident, ok := s.sess.Current()
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	start := time.Now()
	err := s.gw.ClearCart(ctx, ident.Token)
	s.metrics.ObserveDuration(opClear, time.Since(start))

	s.mu.Lock()
	s.lines = nil
	s.loading = false
	s.mu.Unlock()

	if err != nil {
		s.metrics.IncFailure(opClear)
		s.logg.Error(ctx, "cart.clear_failed", err)
		return err
	}
	s.metrics.IncSuccess(opClear)
	return nil
}

// Snapshot returns a copy of the current local state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]Line, len(s.lines))
	copy(lines, s.lines)

	ids := make([]int64, 0, len(s.processing))
	for id := range s.processing {
		ids = append(ids, id)
	}

	return Snapshot{Lines: lines, ProcessingIDs: ids, Loading: s.loading}
}

// Processing reports whether a mutation for the product is in flight.
// The UI disables the triggering control while this is true.
func (s *Synchronizer) Processing(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.processing[productID]
	return busy
}

// Loading reports the coarse loading flag for the initial population.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// TotalItems sums quantities across the current lines.
func (s *Synchronizer) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TotalItems(s.lines)
}

// TotalPrice sums the effective unit price times quantity across the
// current lines.
func (s *Synchronizer) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TotalPrice(s.lines)
}

func (s *Synchronizer) beginProcessing(productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.processing[productID]; busy {
		return pkgerrors.New(pkgerrors.CodeConflict, "a mutation for this item is already in flight")
	}
	s.processing[productID] = struct{}{}
	return nil
}

func (s *Synchronizer) endProcessing(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processing, productID)
}

func mapLines(remote []gateway.CartLine) []Line {
	lines := make([]Line, 0, len(remote))
	for _, item := range remote {
		lines = append(lines, Line{Product: item.Product, Quantity: item.Quantity})
	}
	return lines
}

package shopper

import (
	"context"
	"sync"
	"time"

	"github.com/halcyonretail/storefront-sync/internal/cart"
	"github.com/halcyonretail/storefront-sync/internal/session"
	"github.com/halcyonretail/storefront-sync/internal/wishlist"
	pkgerrors "github.com/halcyonretail/storefront-sync/pkg/errors"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
	"github.com/halcyonretail/storefront-sync/pkg/metrics"
)

// Gateway is the full remote surface a shopper's synchronizers need.
type Gateway interface {
	cart.Gateway
	wishlist.Gateway
}

// State bundles everything held for one authenticated shopper.
type State struct {
	Session  *session.Accessor
	Cart     *cart.Synchronizer
	Wishlist *wishlist.Synchronizer
	Toggler  *wishlist.Toggler

	lastSeen time.Time
}

// RegistryParams groups dependencies for the shopper registry.
type RegistryParams struct {
	Gateway        Gateway
	Logger         *logger.Logger
	Metrics        *metrics.SyncMetrics
	DebounceWindow time.Duration
	IdleTTL        time.Duration
}

// Registry keeps one State per shopper, keyed by user id. States are
// built lazily on first sight of an identity and reaped after the idle
// TTL so an abandoned session does not pin its synchronizers forever.
type Registry struct {
	gw      Gateway
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
	window  time.Duration
	idleTTL time.Duration

	mu     sync.Mutex
	states map[int64]*State
}

func NewRegistry(params RegistryParams) (*Registry, error) {
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.IdleTTL <= 0 {
		params.IdleTTL = 30 * time.Minute
	}
	return &Registry{
		gw:      params.Gateway,
		logg:    params.Logger,
		metrics: params.Metrics,
		window:  params.DebounceWindow,
		idleTTL: params.IdleTTL,
		states:  make(map[int64]*State),
	}, nil
}

// Acquire returns the shopper's state, building it on first sight. The
// identity is re-bound on every call: for a known shopper this just
// refreshes the bearer token, for a new one it triggers the initial
// background reconcile of cart and wishlist.
func (r *Registry) Acquire(ident session.Identity) (*State, error) {
	r.mu.Lock()
	if st, ok := r.states[ident.UserID]; ok {
		st.lastSeen = time.Now()
		r.mu.Unlock()
		st.Session.Bind(ident)
		return st, nil
	}
	r.mu.Unlock()

	sess := session.NewAccessor()
	cartSync, err := cart.NewSynchronizer(cart.SynchronizerParams{
		Gateway: r.gw,
		Session: sess,
		Logger:  r.logg,
		Metrics: r.metrics,
	})
	if err != nil {
		return nil, err
	}
	wishlistSync, err := wishlist.NewSynchronizer(wishlist.SynchronizerParams{
		Gateway: r.gw,
		Session: sess,
		Logger:  r.logg,
		Metrics: r.metrics,
	})
	if err != nil {
		return nil, err
	}

	st := &State{
		Session:  sess,
		Cart:     cartSync,
		Wishlist: wishlistSync,
		Toggler:  wishlist.NewToggler(wishlistSync, r.window, r.logg),
		lastSeen: time.Now(),
	}

	r.mu.Lock()
	if existing, ok := r.states[ident.UserID]; ok {
		// Lost the build race; the winner's state is the live one.
		existing.lastSeen = time.Now()
		r.mu.Unlock()
		existing.Session.Bind(ident)
		return existing, nil
	}
	r.states[ident.UserID] = st
	r.mu.Unlock()

	sess.Bind(ident)
	return st, nil
}

// Drop discards a shopper's state on logout. Pending wishlist commits
// are cancelled, not flushed; the shopper asked to walk away.
func (r *Registry) Drop(userID int64) {
	r.mu.Lock()
	st, ok := r.states[userID]
	delete(r.states, userID)
	r.mu.Unlock()

	if !ok {
		return
	}
	st.Toggler.CancelAll()
	st.Session.Clear()
}

// Sweep reaps states idle past the TTL and returns how many were
// dropped. Settled-but-unsent wishlist flips are flushed first; the
// token may still be valid and the shopper meant them.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var idle []*State
	for userID, st := range r.states {
		if now.Sub(st.lastSeen) > r.idleTTL {
			idle = append(idle, st)
			delete(r.states, userID)
		}
	}
	r.mu.Unlock()

	for _, st := range idle {
		st.Toggler.Flush()
		st.Session.Clear()
	}
	return len(idle)
}

// Run sweeps on the given interval until the context is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if dropped := r.Sweep(now); dropped > 0 {
				r.logg.Info(r.logg.WithField(ctx, "dropped", dropped), "shopper.sweep")
			}
		}
	}
}

// Len reports how many shopper states are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

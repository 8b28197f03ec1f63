package wishlist

import (
	"context"
	"sync"
	"time"

	"github.com/halcyonretail/storefront-sync/internal/catalog"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
)

// DefaultDebounceWindow is how long a toggle waits for a follow-up
// before the membership state is committed to the remote store.
const DefaultDebounceWindow = 500 * time.Millisecond

// Toggler debounces wishlist toggles per product. The local flip is
// applied immediately so the heart icon never lags; only the network
// commit is deferred, and rapid toggles collapse into a single write
// carrying the final state.
type Toggler struct {
	sync   *Synchronizer
	logg   *logger.Logger
	window time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer
}

func NewToggler(svc *Synchronizer, window time.Duration, logg *logger.Logger) *Toggler {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Toggler{
		sync:   svc,
		logg:   logg,
		window: window,
		timers: make(map[int64]*time.Timer),
	}
}

// Toggle flips the product's membership locally and schedules a commit
// for after the debounce window. A toggle landing inside the window
// restarts it, so only the settled state reaches the network. Returns
// the new local membership.
func (t *Toggler) Toggle(productID int64, known *catalog.Product) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	liked := !t.sync.Contains(productID)
	t.sync.MarkLocal(productID, liked, known)

	if prev, ok := t.timers[productID]; ok {
		prev.Stop()
	}
	// The new timer supersedes any expired-but-unfired one: fire only
	// commits when its own timer is still the registered entry.
	var tm *time.Timer
	tm = time.AfterFunc(t.window, func() {
		t.fire(productID, tm)
	})
	t.timers[productID] = tm
	return liked
}

func (t *Toggler) fire(productID int64, tm *time.Timer) {
	t.mu.Lock()
	if t.timers[productID] != tm {
		// A newer toggle owns the commit now.
		t.mu.Unlock()
		return
	}
	delete(t.timers, productID)
	// The settled local membership is the state to commit; read it
	// before releasing the lock so a racing toggle cannot change it.
	liked := t.sync.Contains(productID)
	t.mu.Unlock()

	ctx := context.Background()
	if err := t.sync.Commit(ctx, productID, liked); err != nil {
		t.logg.Error(t.logg.WithProductID(ctx, productID), "wishlist.deferred_commit_failed", err)
	}
}

// Flush commits every pending toggle immediately. Used on shutdown so
// settled-but-unsent flips are not lost.
func (t *Toggler) Flush() {
	type pending struct {
		productID int64
		liked     bool
	}

	t.mu.Lock()
	batch := make([]pending, 0, len(t.timers))
	remaining := make(map[int64]*time.Timer)
	for productID, timer := range t.timers {
		if timer.Stop() {
			batch = append(batch, pending{productID, t.sync.Contains(productID)})
		} else {
			// Already firing; leave the entry so fire still owns it.
			remaining[productID] = timer
		}
	}
	t.timers = remaining
	t.mu.Unlock()

	ctx := context.Background()
	for _, p := range batch {
		if err := t.sync.Commit(ctx, p.productID, p.liked); err != nil {
			t.logg.Error(t.logg.WithProductID(ctx, p.productID), "wishlist.deferred_commit_failed", err)
		}
	}
}

// CancelAll drops every pending commit without sending it. Used on
// logout, when the local state has already been discarded. A timer
// caught mid-fire loses its registry entry and gives up in fire.
func (t *Toggler) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = make(map[int64]*time.Timer)
}

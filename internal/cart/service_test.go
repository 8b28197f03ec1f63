package cart

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/halcyonretail/storefront-sync/internal/catalog"
	"github.com/halcyonretail/storefront-sync/internal/gateway"
	"github.com/halcyonretail/storefront-sync/internal/session"
	pkgerrors "github.com/halcyonretail/storefront-sync/pkg/errors"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
)

type updateCall struct {
	lineID   int64
	quantity int
}

type stubGateway struct {
	mu    sync.Mutex
	lines []gateway.CartLine

	fetchErr  error
	addErr    error
	removeErr error
	updateErr error
	clearErr  error

	fetchCalls  int
	addCalls    int
	removeCalls int
	updateCalls int
	clearCalls  int

	lastAddQuantity int
	lastUpdate      updateCall

	onFetch func()
	addGate chan struct{}
}

func (g *stubGateway) FetchCart(ctx context.Context, token string) ([]gateway.CartLine, error) {
	g.mu.Lock()
	g.fetchCalls++
	hook := g.onFetch
	err := g.fetchErr
	out := make([]gateway.CartLine, len(g.lines))
	copy(out, g.lines)
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *stubGateway) AddCartItem(ctx context.Context, token string, productID int64, quantity int) error {
	g.mu.Lock()
	g.addCalls++
	g.lastAddQuantity = quantity
	gate := g.addGate
	err := g.addErr
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.lines {
		if g.lines[i].Product.ID == productID {
			g.lines[i].Quantity += quantity
			return nil
		}
	}
	g.lines = append(g.lines, gateway.CartLine{
		ID:       int64(len(g.lines) + 1),
		Quantity: quantity,
		Product:  catalog.Product{ID: productID, Price: decimal.NewFromInt(10)},
	})
	return nil
}

func (g *stubGateway) RemoveCartItem(ctx context.Context, token string, productID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeCalls++
	if g.removeErr != nil {
		return g.removeErr
	}
	kept := g.lines[:0]
	for _, line := range g.lines {
		if line.Product.ID != productID {
			kept = append(kept, line)
		}
	}
	g.lines = kept
	return nil
}

func (g *stubGateway) UpdateCartItem(ctx context.Context, token string, lineID int64, quantity int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateCalls++
	g.lastUpdate = updateCall{lineID: lineID, quantity: quantity}
	if g.updateErr != nil {
		return g.updateErr
	}
	for i := range g.lines {
		if g.lines[i].ID == lineID {
			g.lines[i].Quantity = quantity
		}
	}
	return nil
}

func (g *stubGateway) ClearCart(ctx context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearCalls++
	if g.clearErr != nil {
		return g.clearErr
	}
	g.lines = nil
	return nil
}

func (g *stubGateway) counts() (fetch, add, remove, update, clear int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetchCalls, g.addCalls, g.removeCalls, g.updateCalls, g.clearCalls
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cart-test", Output: io.Discard})
}

func remoteLine(lineID, productID int64, quantity int, price int64) gateway.CartLine {
	return gateway.CartLine{
		ID:       lineID,
		Quantity: quantity,
		Product:  catalog.Product{ID: productID, Price: decimal.NewFromInt(price)},
	}
}

func newTestSynchronizer(t *testing.T, gw Gateway, bound bool) (*Synchronizer, *session.Accessor) {
	t.Helper()
	sess := session.NewAccessor()
	if bound {
		sess.Bind(session.Identity{UserID: 1, Email: "shopper@example.com", Token: "tok"})
	}
	svc, err := NewSynchronizer(SynchronizerParams{
		Gateway: gw,
		Session: sess,
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("NewSynchronizer: %v", err)
	}
	return svc, sess
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestRefreshPopulatesLines(t *testing.T) {
	gw := &stubGateway{lines: []gateway.CartLine{
		remoteLine(1, 10, 2, 100),
		remoteLine(2, 20, 1, 50),
	}}
	svc, _ := newTestSynchronizer(t, gw, true)

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := svc.Snapshot()
	if len(snap.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(snap.Lines))
	}
	if snap.Lines[0].Product.ID != 10 || snap.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected first line: %+v", snap.Lines[0])
	}
	if snap.Loading {
		t.Fatalf("loading should be false after refresh")
	}
}

func TestRefreshWithoutIdentityIsLocalOnly(t *testing.T) {
	gw := &stubGateway{lines: []gateway.CartLine{remoteLine(1, 10, 1, 5)}}
	svc, _ := newTestSynchronizer(t, gw, false)

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if fetch, _, _, _, _ := gw.counts(); fetch != 0 {
		t.Fatalf("expected no remote fetch, got %d", fetch)
	}
	if got := len(svc.Snapshot().Lines); got != 0 {
		t.Fatalf("expected empty cart, got %d lines", got)
	}
}

func TestRefreshKeepsStateOnError(t *testing.T) {
	gw := &stubGateway{lines: []gateway.CartLine{remoteLine(1, 10, 2, 100)}}
	svc, _ := newTestSynchronizer(t, gw, true)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	gw.mu.Lock()
	gw.fetchErr = errors.New("upstream down")
	gw.mu.Unlock()

	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	if got := len(svc.Snapshot().Lines); got != 1 {
		t.Fatalf("existing lines should survive a failed refresh, got %d", got)
	}
}

func TestLoadingRaisedOnlyForFirstFetch(t *testing.T) {
	gw := &stubGateway{}
	svc, _ := newTestSynchronizer(t, gw, true)

	var observed []bool
	gw.onFetch = func() {
		observed = append(observed, svc.Loading())
	}

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}

	if len(observed) != 2 || !observed[0] || observed[1] {
		t.Fatalf("expected loading true then false during fetches, got %v", observed)
	}
}

func TestAddReconcilesFromServer(t *testing.T) {
	gw := &stubGateway{}
	svc, _ := newTestSynchronizer(t, gw, true)

	if err := svc.Add(context.Background(), 10); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := svc.Add(context.Background(), 10); err != nil {
		t.Fatalf("second Add: %v", err)
	}

	if gw.lastAddQuantity != 1 {
		t.Fatalf("add should always send quantity 1, sent %d", gw.lastAddQuantity)
	}
	snap := svc.Snapshot()
	if len(snap.Lines) != 1 || snap.Lines[0].Quantity != 2 {
		t.Fatalf("duplicate adds should collapse into one incremented line, got %+v", snap.Lines)
	}
}

func TestAddRejectedWhileMutationInFlight(t *testing.T) {
	gate := make(chan struct{})
	gw := &stubGateway{addGate: gate}
	svc, _ := newTestSynchronizer(t, gw, true)

	done := make(chan error, 1)
	go func() { done <- svc.Add(context.Background(), 10) }()
	waitFor(t, func() bool { return svc.Processing(10) })

	err := svc.Add(context.Background(), 10)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for concurrent mutation, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if svc.Processing(10) {
		t.Fatalf("processing flag should clear once the mutation settles")
	}
}

func TestProcessingClearedOnFailure(t *testing.T) {
	gw := &stubGateway{addErr: errors.New("boom")}
	svc, _ := newTestSynchronizer(t, gw, true)

	if err := svc.Add(context.Background(), 10); err == nil {
		t.Fatalf("expected add error")
	}
	if svc.Processing(10) {
		t.Fatalf("processing flag should clear on failure")
	}
}

func TestRemoveReconcilesEvenWhenDeleteFails(t *testing.T) {
	gw := &stubGateway{
		lines:     []gateway.CartLine{remoteLine(1, 10, 1, 5)},
		removeErr: errors.New("delete rejected"),
	}
	svc, _ := newTestSynchronizer(t, gw, true)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// The server dropped the line despite reporting a delete failure.
	gw.mu.Lock()
	gw.lines = nil
	gw.mu.Unlock()

	err := svc.Remove(context.Background(), 10)
	if err == nil {
		t.Fatalf("expected delete error to surface")
	}
	if got := len(svc.Snapshot().Lines); got != 0 {
		t.Fatalf("local cart should reconcile to server truth, got %d lines", got)
	}
}

func TestSetQuantityNonPositiveRemoves(t *testing.T) {
	for _, quantity := range []int{0, -5} {
		gw := &stubGateway{lines: []gateway.CartLine{remoteLine(1, 10, 3, 5)}}
		svc, _ := newTestSynchronizer(t, gw, true)

		if err := svc.SetQuantity(context.Background(), 10, quantity); err != nil {
			t.Fatalf("SetQuantity(%d): %v", quantity, err)
		}
		_, _, remove, update, _ := gw.counts()
		if remove != 1 || update != 0 {
			t.Fatalf("quantity %d should remove, got remove=%d update=%d", quantity, remove, update)
		}
		if got := len(svc.Snapshot().Lines); got != 0 {
			t.Fatalf("expected empty cart after quantity %d, got %d lines", quantity, got)
		}
	}
}

func TestSetQuantityPatchesByLineID(t *testing.T) {
	gw := &stubGateway{lines: []gateway.CartLine{remoteLine(77, 5, 1, 5)}}
	svc, _ := newTestSynchronizer(t, gw, true)

	if err := svc.SetQuantity(context.Background(), 5, 3); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if gw.lastUpdate.lineID != 77 || gw.lastUpdate.quantity != 3 {
		t.Fatalf("expected patch against line 77 with quantity 3, got %+v", gw.lastUpdate)
	}
	snap := svc.Snapshot()
	if len(snap.Lines) != 1 || snap.Lines[0].Quantity != 3 {
		t.Fatalf("expected reconciled quantity 3, got %+v", snap.Lines)
	}
}

func TestSetQuantityMissingLineSkipsPatch(t *testing.T) {
	gw := &stubGateway{}
	svc, _ := newTestSynchronizer(t, gw, true)

	if err := svc.SetQuantity(context.Background(), 999, 4); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	fetch, _, _, update, _ := gw.counts()
	if update != 0 {
		t.Fatalf("no patch expected for an absent line, got %d", update)
	}
	if fetch != 2 {
		t.Fatalf("expected lookup plus reconcile fetches, got %d", fetch)
	}
}

func TestClearEmptiesLocallyEvenOnFailure(t *testing.T) {
	gw := &stubGateway{
		lines:    []gateway.CartLine{remoteLine(1, 10, 2, 5)},
		clearErr: errors.New("bulk delete failed"),
	}
	svc, _ := newTestSynchronizer(t, gw, true)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if err := svc.Clear(context.Background()); err == nil {
		t.Fatalf("expected clear error to surface")
	}
	snap := svc.Snapshot()
	if len(snap.Lines) != 0 || snap.Loading {
		t.Fatalf("local cart should empty regardless of outcome, got %+v", snap)
	}
}

func TestLogoutClearsSynchronously(t *testing.T) {
	gw := &stubGateway{lines: []gateway.CartLine{remoteLine(1, 10, 2, 5)}}
	svc, sess := newTestSynchronizer(t, gw, true)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	sess.Clear()

	if got := len(svc.Snapshot().Lines); got != 0 {
		t.Fatalf("logout should empty the cart immediately, got %d lines", got)
	}
}

func TestStaleFetchDiscardedAfterLogout(t *testing.T) {
	gw := &stubGateway{lines: []gateway.CartLine{remoteLine(1, 10, 2, 5)}}
	svc, sess := newTestSynchronizer(t, gw, true)

	gw.onFetch = func() { sess.Clear() }

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := len(svc.Snapshot().Lines); got != 0 {
		t.Fatalf("a response from a previous session must be discarded, got %d lines", got)
	}
}

func TestStaleFetchKeepsFirstFetchSemanticsForNextIdentity(t *testing.T) {
	gw := &stubGateway{lines: []gateway.CartLine{remoteLine(1, 10, 2, 5)}}
	svc, sess := newTestSynchronizer(t, gw, true)

	gw.onFetch = func() { sess.Clear() }
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// The discarded fetch must not have lowered the first-fetch flags
	// the identity-change reset restored: the next session's initial
	// reconcile still raises the coarse loading flag.
	sawLoading := make(chan bool, 1)
	gw.onFetch = func() {
		select {
		case sawLoading <- svc.Loading():
		default:
		}
	}
	sess.Bind(session.Identity{UserID: 8, Token: "tok2"})

	select {
	case loading := <-sawLoading:
		if !loading {
			t.Fatalf("first fetch for a new identity must raise the loading flag")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reconcile after login never fetched")
	}
	waitFor(t, func() bool { return len(svc.Snapshot().Lines) == 1 })
}

func TestLoginTriggersBackgroundReconcile(t *testing.T) {
	gw := &stubGateway{lines: []gateway.CartLine{remoteLine(1, 10, 2, 5)}}
	svc, sess := newTestSynchronizer(t, gw, false)

	sess.Bind(session.Identity{UserID: 7, Token: "tok"})

	waitFor(t, func() bool { return len(svc.Snapshot().Lines) == 1 })
}

func TestTotals(t *testing.T) {
	discount := decimal.NewFromInt(80)
	lines := []Line{
		{Product: catalog.Product{ID: 1, Price: decimal.NewFromInt(100)}, Quantity: 2},
		{Product: catalog.Product{ID: 2, Price: decimal.NewFromInt(50)}, Quantity: 1},
	}

	if got := TotalItems(lines); got != 3 {
		t.Fatalf("TotalItems = %d, want 3", got)
	}
	if got := TotalPrice(lines); !got.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("TotalPrice = %s, want 250", got)
	}

	lines[0].Product.DiscountPrice = &discount
	if got := TotalPrice(lines); !got.Equal(decimal.NewFromInt(210)) {
		t.Fatalf("discounted TotalPrice = %s, want 210", got)
	}
}

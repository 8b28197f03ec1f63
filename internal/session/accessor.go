package session

import "sync"

// Identity describes the authenticated shopper together with the
// bearer credential used against the remote store. The credential is
// minted elsewhere; this package only carries it.
type Identity struct {
	UserID int64
	Email  string
	Token  string
}

// Accessor holds the current identity and lets synchronizers react to
// identity changes. Every change (login, logout, user switch) bumps an
// epoch counter; in-flight responses captured under an older epoch
// must be discarded instead of reconciled into the new session.
type Accessor struct {
	mu    sync.RWMutex
	ident *Identity
	epoch uint64
	subs  []func()
}

func NewAccessor() *Accessor {
	return &Accessor{}
}

// Current returns the active identity, if any.
func (a *Accessor) Current() (Identity, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ident == nil {
		return Identity{}, false
	}
	return *a.ident, true
}

// Epoch returns the current identity epoch. Capture it before a remote
// call and compare before applying the response.
func (a *Accessor) Epoch() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.epoch
}

// Bind installs an identity. Binding the same user again only refreshes
// the credential and does not count as an identity change. Subscribers
// are invoked synchronously, outside the lock, when the user changes.
func (a *Accessor) Bind(ident Identity) {
	a.mu.Lock()
	if a.ident != nil && a.ident.UserID == ident.UserID {
		a.ident.Token = ident.Token
		a.ident.Email = ident.Email
		a.mu.Unlock()
		return
	}
	a.ident = &ident
	a.epoch++
	subs := a.snapshotSubs()
	a.mu.Unlock()
	notify(subs)
}

// Clear drops the identity. No-op when already logged out.
func (a *Accessor) Clear() {
	a.mu.Lock()
	if a.ident == nil {
		a.mu.Unlock()
		return
	}
	a.ident = nil
	a.epoch++
	subs := a.snapshotSubs()
	a.mu.Unlock()
	notify(subs)
}

// Subscribe registers a callback fired on every identity change.
func (a *Accessor) Subscribe(fn func()) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, fn)
}

func (a *Accessor) snapshotSubs() []func() {
	subs := make([]func(), len(a.subs))
	copy(subs, a.subs)
	return subs
}

func notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}

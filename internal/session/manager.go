// Package session caches the outcome of a biometric/PIN authentication
// for a bounded window so the user is not re-prompted on every action.
// The session lives in two tiers: a volatile in-memory instant and a
// durable timestamp in the secure key-value store. The durable tier
// exists only to survive process restart; on first valid read it is
// promoted into the volatile tier.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkravets/txguard/internal/keystore"
)

// DefaultTTL is how long a successful authentication stays valid.
const DefaultTTL = 3 * time.Minute

// StoreKey is the durable tier's key in the secure key-value store.
const StoreKey = "auth_session_valid_until"

// Authenticator is the platform biometric/PIN collaborator. A denied,
// cancelled, or unsupported authentication returns false — these are
// expected outcomes, not errors.
type Authenticator interface {
	CanAuthenticate() bool
	Authenticate(ctx context.Context, reason string) bool
}

// Manager owns the auth session state machine. Exactly one prompt is
// in flight at any time; concurrent callers share its result.
type Manager struct {
	auth Authenticator
	kv   keystore.Store
	ttl  time.Duration
	now  func() time.Time

	mu         sync.Mutex
	validUntil time.Time
	inflight   *flight
}

// flight is one in-progress authentication prompt. ok is written
// before done is closed, so waiters observe it safely.
type flight struct {
	done chan struct{}
	ok   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the session duration.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock injects a clock for deterministic expiry tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over an authenticator and a durable
// store.
func NewManager(auth Authenticator, kv keystore.Store, opts ...Option) *Manager {
	m := &Manager{
		auth: auth,
		kv:   kv,
		ttl:  DefaultTTL,
		now:  time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// EnsureAuthenticated returns true if a session is already valid or
// the user authenticates now. Denial and cancellation return
// (false, nil); only storage faults return an error, and the caller
// must treat that as aborting, never as authenticated.
func (m *Manager) EnsureAuthenticated(ctx context.Context, reason string) (bool, error) {
	m.mu.Lock()

	if m.now().Before(m.validUntil) {
		m.mu.Unlock()
		return true, nil
	}

	promoted, err := m.promoteDurableLocked()
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	if promoted {
		m.mu.Unlock()
		return true, nil
	}

	// Another caller already has the prompt up: wait for its answer.
	if m.inflight != nil {
		f := m.inflight
		m.mu.Unlock()
		select {
		case <-f.done:
			return f.ok, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	f := &flight{done: make(chan struct{})}
	m.inflight = f
	m.mu.Unlock()

	ok := m.auth.CanAuthenticate() && m.auth.Authenticate(ctx, reason)

	m.mu.Lock()
	var armErr error
	if ok {
		armErr = m.armLocked()
		if armErr != nil {
			ok = false
		}
	}
	f.ok = ok
	m.inflight = nil
	close(f.done)
	m.mu.Unlock()

	return ok, armErr
}

// Valid reports whether either tier currently holds a live session,
// without prompting.
func (m *Manager) Valid() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.now().Before(m.validUntil) {
		return true, nil
	}
	return m.promoteDurableLocked()
}

// Clear resets both tiers. Used on explicit logout and wallet wipe.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validUntil = time.Time{}
	if err := m.kv.Delete(StoreKey); err != nil {
		return fmt.Errorf("session: clear durable tier: %w", err)
	}
	return nil
}

// armLocked sets validUntil = now + ttl in both tiers. The volatile
// tier is armed only if the durable write succeeds, so the two never
// disagree in the durable tier's favor.
func (m *Manager) armLocked() error {
	until := m.now().Add(m.ttl)
	if err := m.kv.Put(StoreKey, until.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("session: persist durable tier: %w", err)
	}
	m.validUntil = until
	return nil
}

// promoteDurableLocked reads the durable timestamp and, if still
// valid, promotes it into the volatile tier. A corrupt persisted value
// is an infrastructure fault, not an expired session.
func (m *Manager) promoteDurableLocked() (bool, error) {
	raw, ok, err := m.kv.Get(StoreKey)
	if err != nil {
		return false, fmt.Errorf("session: read durable tier: %w", err)
	}
	if !ok {
		return false, nil
	}
	until, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return false, fmt.Errorf("session: corrupt durable timestamp %q: %w", raw, err)
	}
	if !m.now().Before(until) {
		return false, nil
	}
	m.validUntil = until
	return true, nil
}

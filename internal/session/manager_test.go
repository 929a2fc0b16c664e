package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkravets/txguard/internal/keystore"
)

// fakeAuth counts prompts and answers with a fixed outcome.
type fakeAuth struct {
	can     bool
	grant   bool
	prompts atomic.Int64
	block   chan struct{} // if non-nil, Authenticate waits on it
}

func (f *fakeAuth) CanAuthenticate() bool { return f.can }

func (f *fakeAuth) Authenticate(ctx context.Context, reason string) bool {
	f.prompts.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.grant
}

// testClock is an adjustable wall clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSecondCallWithinTTLSkipsPrompt(t *testing.T) {
	auth := &fakeAuth{can: true, grant: true}
	clock := newTestClock()
	m := NewManager(auth, keystore.NewMemory(), WithClock(clock.Now))

	for i := 0; i < 2; i++ {
		ok, err := m.EnsureAuthenticated(context.Background(), "sign")
		if err != nil || !ok {
			t.Fatalf("call %d: ok=%v err=%v", i, ok, err)
		}
	}

	if got := auth.prompts.Load(); got != 1 {
		t.Errorf("expected exactly 1 prompt within the TTL, got %d", got)
	}
}

func TestPromptAgainAfterExpiry(t *testing.T) {
	auth := &fakeAuth{can: true, grant: true}
	clock := newTestClock()
	m := NewManager(auth, keystore.NewMemory(), WithClock(clock.Now))

	if ok, _ := m.EnsureAuthenticated(context.Background(), "sign"); !ok {
		t.Fatal("first authentication failed")
	}

	clock.Advance(DefaultTTL + time.Second)

	if ok, _ := m.EnsureAuthenticated(context.Background(), "sign"); !ok {
		t.Fatal("re-authentication failed")
	}
	if got := auth.prompts.Load(); got != 2 {
		t.Errorf("expected a second prompt after expiry, got %d", got)
	}
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	auth := &fakeAuth{can: true, grant: true}
	clock := newTestClock()
	m := NewManager(auth, keystore.NewMemory(), WithTTL(time.Minute), WithClock(clock.Now))

	if ok, _ := m.EnsureAuthenticated(context.Background(), "sign"); !ok {
		t.Fatal("authentication failed")
	}

	// Exactly at validUntil the session is no longer valid.
	clock.Advance(time.Minute)
	valid, err := m.Valid()
	if err != nil {
		t.Fatal(err)
	}
	if valid {
		t.Error("session must be invalid at exactly validUntil")
	}
}

func TestDenialReturnsFalseWithoutError(t *testing.T) {
	auth := &fakeAuth{can: true, grant: false}
	m := NewManager(auth, keystore.NewMemory())

	ok, err := m.EnsureAuthenticated(context.Background(), "sign")
	if err != nil {
		t.Fatalf("denial must not be an error: %v", err)
	}
	if ok {
		t.Error("denied prompt must return false")
	}

	// Denial leaves no session behind.
	if valid, _ := m.Valid(); valid {
		t.Error("denied authentication must not arm a session")
	}
}

func TestUnsupportedHardwareReturnsFalse(t *testing.T) {
	auth := &fakeAuth{can: false, grant: true}
	m := NewManager(auth, keystore.NewMemory())

	ok, err := m.EnsureAuthenticated(context.Background(), "sign")
	if err != nil || ok {
		t.Errorf("unsupported hardware must be (false, nil), got (%v, %v)", ok, err)
	}
	if auth.prompts.Load() != 0 {
		t.Error("must not prompt when hardware cannot authenticate")
	}
}

func TestDurablePromotedAfterRestart(t *testing.T) {
	kv := keystore.NewMemory()
	clock := newTestClock()
	auth := &fakeAuth{can: true, grant: true}

	m1 := NewManager(auth, kv, WithClock(clock.Now))
	if ok, _ := m1.EnsureAuthenticated(context.Background(), "sign"); !ok {
		t.Fatal("authentication failed")
	}

	// New manager, same store — simulates process restart.
	m2 := NewManager(auth, kv, WithClock(clock.Now))
	ok, err := m2.EnsureAuthenticated(context.Background(), "sign")
	if err != nil || !ok {
		t.Fatalf("durable session not honored: ok=%v err=%v", ok, err)
	}
	if got := auth.prompts.Load(); got != 1 {
		t.Errorf("restart within TTL must not re-prompt, got %d prompts", got)
	}
}

func TestExpiredDurableNotPromoted(t *testing.T) {
	kv := keystore.NewMemory()
	clock := newTestClock()
	auth := &fakeAuth{can: true, grant: true}

	m1 := NewManager(auth, kv, WithClock(clock.Now))
	if ok, _ := m1.EnsureAuthenticated(context.Background(), "sign"); !ok {
		t.Fatal("authentication failed")
	}

	clock.Advance(DefaultTTL + time.Second)

	m2 := NewManager(auth, kv, WithClock(clock.Now))
	if valid, _ := m2.Valid(); valid {
		t.Error("expired durable session must not be promoted")
	}
}

func TestCorruptDurableTimestampIsError(t *testing.T) {
	kv := keystore.NewMemory()
	kv.Put(StoreKey, "not a timestamp")
	m := NewManager(&fakeAuth{can: true, grant: true}, kv)

	if _, err := m.Valid(); err == nil {
		t.Error("corrupt persisted timestamp must surface as an error")
	}
}

func TestStoreReadFailureIsError(t *testing.T) {
	m := NewManager(&fakeAuth{can: true, grant: true}, failingStore{})

	ok, err := m.EnsureAuthenticated(context.Background(), "sign")
	if err == nil {
		t.Error("store failure must surface as an error")
	}
	if ok {
		t.Error("store failure must never report authenticated")
	}
}

func TestClearResetsBothTiers(t *testing.T) {
	kv := keystore.NewMemory()
	auth := &fakeAuth{can: true, grant: true}
	m := NewManager(auth, kv)

	if ok, _ := m.EnsureAuthenticated(context.Background(), "sign"); !ok {
		t.Fatal("authentication failed")
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if valid, _ := m.Valid(); valid {
		t.Error("cleared session must not be valid")
	}
	if _, ok, _ := kv.Get(StoreKey); ok {
		t.Error("durable tier must be deleted on Clear")
	}
}

func TestConcurrentCallersShareOnePrompt(t *testing.T) {
	auth := &fakeAuth{can: true, grant: true, block: make(chan struct{})}
	m := NewManager(auth, keystore.NewMemory())

	const callers = 8
	results := make(chan bool, callers)
	var started sync.WaitGroup
	started.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			started.Done()
			ok, _ := m.EnsureAuthenticated(context.Background(), "sign")
			results <- ok
		}()
	}

	started.Wait()
	// Give the stragglers a moment to reach the in-flight wait.
	time.Sleep(20 * time.Millisecond)
	close(auth.block)

	for i := 0; i < callers; i++ {
		if ok := <-results; !ok {
			t.Error("caller did not share the in-flight prompt result")
		}
	}
	if got := auth.prompts.Load(); got != 1 {
		t.Errorf("expected a single in-flight prompt, got %d", got)
	}
}

func TestWaiterHonorsContextCancellation(t *testing.T) {
	auth := &fakeAuth{can: true, grant: true, block: make(chan struct{})}
	m := NewManager(auth, keystore.NewMemory())

	go m.EnsureAuthenticated(context.Background(), "sign")

	// Wait until the prompt is actually in flight.
	for auth.prompts.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := m.EnsureAuthenticated(ctx, "sign")
	if ok {
		t.Error("cancelled waiter must not report authenticated")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	close(auth.block)
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(string) (string, bool, error) { return "", false, errors.New("io failure") }
func (failingStore) Put(string, string) error         { return errors.New("io failure") }
func (failingStore) Delete(string) error              { return errors.New("io failure") }

package certificate

import "testing"

// fakePoint is a minimal PointRef for certificate lifecycle tests.
type fakePoint struct {
	id        string
	listeners map[string]func(now float64)
}

func newFakePoint(id string) *fakePoint {
	return &fakePoint{id: id, listeners: make(map[string]func(now float64))}
}

func (p *fakePoint) ID() string { return p.id }

func (p *fakePoint) OnPredictionChanged(token string, cb func(now float64)) {
	p.listeners[token] = cb
}

func (p *fakePoint) OffPredictionChanged(token string) {
	delete(p.listeners, token)
}

func (p *fakePoint) fire(now float64) {
	for _, cb := range p.listeners {
		cb(now)
	}
}

func constantFailureTime(t float64, ok bool) FailureTimeFunc {
	return func(now float64) (float64, bool) { return t, ok }
}

func TestNewBase_SubscribesBothEndpoints(t *testing.T) {
	u, v := newFakePoint("u"), newFakePoint("v")
	NewBase(u, v, 0, constantFailureTime(5, true))

	if len(u.listeners) != 1 || len(v.listeners) != 1 {
		t.Fatalf("expected exactly one listener per endpoint, got u=%d v=%d", len(u.listeners), len(v.listeners))
	}
}

func TestNewBase_SelfLoopSubscribesOnce(t *testing.T) {
	u := newFakePoint("u")
	NewBase(u, u, 0, constantFailureTime(5, true))

	if len(u.listeners) != 1 {
		t.Fatalf("expected one listener when both endpoints are the same point, got %d", len(u.listeners))
	}
}

func TestRecache_OnPredictionChanged(t *testing.T) {
	u, v := newFakePoint("u"), newFakePoint("v")
	calls := 0
	fn := func(now float64) (float64, bool) {
		calls++
		return now + 10, true
	}
	b := NewBase(u, v, 0, fn)

	at, ok := b.FailureTimeAtCreation()
	if !ok || at != 10 {
		t.Fatalf("FailureTimeAtCreation = %v, %v; want 10, true", at, ok)
	}

	u.fire(5)
	at, ok = b.FailureTimeAtCreation()
	if !ok || at != 15 {
		t.Fatalf("after refit, FailureTimeAtCreation = %v, %v; want 15, true", at, ok)
	}
	if calls != 2 {
		t.Fatalf("expected failureTimeFn called twice (creation + refit), got %d", calls)
	}
}

func TestDispose_UnsubscribesAndIsIdempotent(t *testing.T) {
	u, v := newFakePoint("u"), newFakePoint("v")
	b := NewBase(u, v, 0, constantFailureTime(5, true))

	b.Dispose()
	if len(u.listeners) != 0 || len(v.listeners) != 0 {
		t.Fatalf("expected listeners removed after Dispose, got u=%d v=%d", len(u.listeners), len(v.listeners))
	}

	// idempotent: second Dispose must not panic or double-unsubscribe onto
	// a re-registered token.
	b.Dispose()
}

func TestFailureTime_RecomputesWithoutTouchingCache(t *testing.T) {
	u, v := newFakePoint("u"), newFakePoint("v")
	calls := 0
	fn := func(now float64) (float64, bool) {
		calls++
		return now, true
	}
	b := NewBase(u, v, 0, fn)
	calls = 0 // reset after construction's initial recache

	got, ok := b.FailureTime(42)
	if !ok || got != 42 {
		t.Fatalf("FailureTime(42) = %v, %v; want 42, true", got, ok)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one recomputation, got %d", calls)
	}
	cachedAt, _ := b.FailureTimeAtCreation()
	if cachedAt == 42 {
		t.Fatalf("FailureTime must not mutate the cache")
	}
}

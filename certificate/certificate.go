// Package certificate implements the KDS certificate lifecycle: endpoint
// tracking, prediction-change listener subscription, failure-time caching,
// and the stable-ordered index of live certificates per point.
package certificate

import (
	"strconv"
	"sync/atomic"
)

// PointRef is the minimal handle a certificate needs into its endpoint
// points: an identity plus the prediction-change observer channel. It is a
// non-owning reference — Base never holds a concrete point type,
// resolving the Point/Certificate cyclic-reference concern (spec.md §9) by
// consumer-defined interface rather than a shared concrete struct.
type PointRef interface {
	ID() string
	// OnPredictionChanged registers cb under token, replacing any existing
	// registration under the same token. cb is invoked with the simulator's
	// current time whenever this point's predicted polynomials are refit.
	OnPredictionChanged(token string, cb func(now float64))
	// OffPredictionChanged deregisters the callback registered under token,
	// if any. Safe to call even if nothing is registered.
	OffPredictionChanged(token string)
}

// nextID is the package-level monotonic certificate-id counter. Spec.md §9
// Open Question 2 flags the reference implementation's hash-keyed ordering
// as collision-prone; this module resolves it by using a true monotonic id.
var nextID uint64

// ID is a certificate's stable identity, used both as the map/index key and
// as the total order for tie-breaking (spec.md §4.4, §4.6).
type ID uint64

func nextCertificateID() ID {
	return ID(atomic.AddUint64(&nextID, 1))
}

// FailureTimeFunc computes a certificate's next failure time strictly after
// now, or false if the predicate never fails in the representable range
// (spec.md §7's "certificate with no failure root" case). Supplied by the
// concrete certificate type at construction — Go has no virtual dispatch
// into an embedded base, so Base takes the user's failure-time computation
// as a function value rather than requiring an abstract-method override.
type FailureTimeFunc func(now float64) (float64, bool)

// ValidityFunc evaluates whether the certificate's predicate currently
// holds, using ground-truth (static) data.
type ValidityFunc func(now float64) bool

// Certificate is the engine-facing contract every certificate satisfies:
// endpoints, a cached failure time, and on-demand recomputation (spec.md
// §3's "Certificate" fields).
type Certificate interface {
	ID() ID
	Endpoints() (u, v PointRef)
	// FailureTimeAtCreation returns the cached failure time computed at
	// construction and re-cached on every endpoint prediction change.
	FailureTimeAtCreation() (float64, bool)
	// FailureTime recomputes the failure time on demand at the given time.
	FailureTime(now float64) (float64, bool)
	// EvaluateValidity returns whether the predicate currently holds.
	EvaluateValidity(now float64) bool
	// Dispose unsubscribes from both endpoints' prediction-change channels.
	// Must be called exactly once, at removal (spec.md §3 invariant).
	Dispose()
}

// Base implements the common certificate lifecycle described in spec.md
// §4.5: endpoint registration, prediction-change subscription, and
// failure-time caching. Concrete certificate types embed *Base and get
// Certificate's ID/Endpoints/FailureTimeAtCreation/FailureTime/Dispose for
// free; they need only implement EvaluateValidity themselves (the one
// method spec.md describes as genuinely predicate-specific).
type Base struct {
	id ID
	u, v PointRef

	failureTimeFn FailureTimeFunc
	cachedAt      float64
	cachedOK      bool
	disposed      bool
}

// NewBase constructs a Base, subscribing to PredictionChanged on both
// endpoints and computing the initial FailureTimeAtCreation at now.
func NewBase(u, v PointRef, now float64, failureTimeFn FailureTimeFunc) *Base {
	b := &Base{
		id:            nextCertificateID(),
		u:             u,
		v:             v,
		failureTimeFn: failureTimeFn,
	}
	b.recache(now)

	token := b.listenerToken()
	u.OnPredictionChanged(token, b.recache)
	if v.ID() != u.ID() {
		v.OnPredictionChanged(token, b.recache)
	}
	return b
}

func (b *Base) listenerToken() string {
	return "certificate:" + strconv.FormatUint(uint64(b.id), 10)
}

func (b *Base) recache(now float64) {
	b.cachedAt, b.cachedOK = b.failureTimeFn(now)
}

// ID returns the certificate's stable monotonic identity.
func (b *Base) ID() ID { return b.id }

// Endpoints returns the certificate's two endpoint handles.
func (b *Base) Endpoints() (PointRef, PointRef) { return b.u, b.v }

// FailureTimeAtCreation returns the cached value, last refreshed whenever
// either endpoint's prediction changed.
func (b *Base) FailureTimeAtCreation() (float64, bool) { return b.cachedAt, b.cachedOK }

// FailureTime recomputes on demand via the user-supplied function, without
// touching the cache.
func (b *Base) FailureTime(now float64) (float64, bool) { return b.failureTimeFn(now) }

// Dispose unsubscribes from both endpoints on its first call; repeated
// calls are no-ops, satisfying the "disposed exactly once" and
// listener-balance invariants (spec.md §3, §8 property 5).
func (b *Base) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	token := b.listenerToken()
	b.u.OffPredictionChanged(token)
	if b.v.ID() != b.u.ID() {
		b.v.OffPredictionChanged(token)
	}
}

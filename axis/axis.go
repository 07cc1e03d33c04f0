// Package axis implements per-axis position tracking: a bounded sample
// history, the ground-truth static polynomial, and an optional least-squares
// predicted polynomial refit when drift exceeds tolerance.
package axis

import (
	"github.com/sirupsen/logrus"

	"github.com/kinetic-sim/kinetic-sim/polynomial"
)

// sample is one (time, position) observation in the ring buffer.
type sample struct {
	t, x float64
	set  bool
}

// Axis holds one coordinate's trajectory state for a point: the ground-truth
// static polynomial, an optional predicted polynomial fit to recent samples,
// and the bounded history ring buffer backing that fit.
type Axis struct {
	// Static is the ground-truth position; PolStatic mirrors it as a
	// degree-0 (scalar point) or arbitrary-degree (user polynomial)
	// trajectory.
	Static    float64
	PolStatic polynomial.Polynomial
	IsStatic  bool

	// PolPredicted is the least-squares fit over the ring buffer, absent
	// (Has=false) until the buffer fills and a fit succeeds.
	PolPredicted    polynomial.Polynomial
	HasPrediction   bool

	history  []sample
	head     int // next write position, mod capacity
	capacity int
}

// New creates an Axis with a ring buffer of the given capacity H.
func New(capacity int) *Axis {
	return &Axis{
		history:  make([]sample, capacity),
		capacity: capacity,
	}
}

// AddSample sets the static (ground-truth) position to x at time t, and
// appends (t, x) into the ring buffer. It does not touch PolPredicted —
// refitting is the caller's (point.Point's) responsibility per the
// all-or-nothing epoch policy in spec.md §4.2.
func (a *Axis) AddSample(x, t float64) {
	a.Static = x
	a.IsStatic = true
	a.PolStatic = polynomial.Constant(x)

	a.history[a.head] = sample{t: t, x: x, set: true}
	a.head = (a.head + 1) % a.capacity
}

// SetPolynomial replaces the ground-truth trajectory with an arbitrary
// polynomial (the point is no longer "statically defined" per spec.md §3).
func (a *Axis) SetPolynomial(p polynomial.Polynomial, t float64) {
	a.IsStatic = false
	a.PolStatic = p
	a.Static = p.Eval(t)

	a.history[a.head] = sample{t: t, x: a.Static, set: true}
	a.head = (a.head + 1) % a.capacity
}

// Full reports whether the ring buffer holds a full H samples.
func (a *Axis) Full() bool {
	for _, s := range a.history {
		if !s.set {
			return false
		}
	}
	return true
}

// OrderedSamples returns the buffered samples oldest-to-newest regardless of
// the current head position, satisfying the ring-buffer ordering invariant
// (spec.md §3, testable property 4). Unset slots (before the buffer first
// fills) are omitted.
func (a *Axis) OrderedSamples() []struct{ T, X float64 } {
	out := make([]struct{ T, X float64 }, 0, a.capacity)
	for i := 0; i < a.capacity; i++ {
		idx := (a.head + i) % a.capacity
		s := a.history[idx]
		if s.set {
			out = append(out, struct{ T, X float64 }{T: s.t, X: s.x})
		}
	}
	return out
}

// EffectivePolynomial returns the predicted polynomial if present, else the
// static one (spec.md §3's "effective polynomial").
func (a *Axis) EffectivePolynomial() polynomial.Polynomial {
	if a.HasPrediction {
		return a.PolPredicted
	}
	return a.PolStatic
}

// EffectivePosition evaluates the effective polynomial at t.
func (a *Axis) EffectivePosition(t float64) float64 {
	return a.EffectivePolynomial().Eval(t)
}

// PredictedPosition returns PolPredicted.Eval(now) if a prediction is
// present.
func (a *Axis) PredictedPosition(now float64) (float64, bool) {
	if !a.HasPrediction {
		return 0, false
	}
	return a.PolPredicted.Eval(now), true
}

// ClearPrediction drops the predicted polynomial (numerical fit failure or
// drift-triggered invalidation).
func (a *Axis) ClearPrediction() {
	a.HasPrediction = false
	a.PolPredicted = polynomial.Polynomial{}
}

// Refit attempts a least-squares fit of degree capacity-1 over the full ring
// buffer and installs it as PolPredicted. Returns false (leaving
// HasPrediction false) if the buffer isn't full or the fit is numerically
// singular — per spec.md §7, that is never a panic, just "prediction
// unavailable".
func (a *Axis) Refit() bool {
	samples := a.OrderedSamples()
	if len(samples) < a.capacity {
		a.ClearPrediction()
		return false
	}

	times := make([]float64, len(samples))
	values := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = s.T
		values[i] = s.X
	}

	fit, err := polynomial.Fit(times, values)
	if err != nil {
		logrus.Warnf("axis: prediction fit failed, clearing prediction: %v", err)
		a.ClearPrediction()
		return false
	}

	a.PolPredicted = fit
	a.HasPrediction = true
	return true
}

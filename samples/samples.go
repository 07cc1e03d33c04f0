// Package samples provides reference implementations of the engine's
// capability interfaces: a DistanceCertificate that fails when two points
// drift outside a distance band, and a NullAlgorithm that implements only
// MaxIterationCount, leaving every per-instant hook unimplemented — the
// same "minimal concrete implementation of an otherwise pluggable
// interface" shape as the teacher's policy.AlwaysAdmit
// (sim/policy/admission.go).
package samples

import (
	"github.com/kinetic-sim/kinetic-sim/certificate"
	"github.com/kinetic-sim/kinetic-sim/point"
	"github.com/kinetic-sim/kinetic-sim/polynomial"
)

// DistanceCertificate holds while the distance between its two endpoints
// stays strictly inside the open band (min, max). It embeds certificate.Base for the shared
// lifecycle and implements only EvaluateValidity and the failure-time
// polynomial root-finding, per spec.md §4.5's division of labor.
type DistanceCertificate struct {
	*certificate.Base
	u, v     *point.Point
	min, max float64
}

// NewDistanceCertificate constructs a DistanceCertificate between u and v,
// valid while their distance lies strictly between min and max.
func NewDistanceCertificate(u, v *point.Point, min, max float64, now float64) *DistanceCertificate {
	dc := &DistanceCertificate{u: u, v: v, min: min, max: max}
	dc.Base = certificate.NewBase(u, v, now, dc.failureTime)
	return dc
}

// EvaluateValidity reports whether u and v are strictly within the open
// band (min, max), using the positions the engine already refreshed this
// instant.
func (dc *DistanceCertificate) EvaluateValidity(now float64) bool {
	d := dc.u.Distance(dc.v, now)
	return d > dc.min && d < dc.max
}

// failureTime finds the soonest time after now at which the squared
// distance polynomial crosses min^2 or max^2, by root-solving
// (squareDistance - threshold^2) for each threshold and taking the
// smallest root above now across both (spec.md §4.4's "predicate failure
// time via endpoint trajectory polynomials").
func (dc *DistanceCertificate) failureTime(now float64) (float64, bool) {
	sq := dc.u.SquareDistance(dc.v)

	best, ok := sq.Sub(polynomial.Constant(dc.min*dc.min)).SmallestRootAbove(now)
	if hi, hiOK := sq.Sub(polynomial.Constant(dc.max*dc.max)).SmallestRootAbove(now); hiOK {
		if !ok || hi < best {
			best, ok = hi, true
		}
	}
	return best, ok
}

// NullAlgorithm is a capability.AlgorithmCode that declines every per-instant
// hook and only reports a fixed round count, suitable as a baseline or a
// placeholder while a real algorithm is under development.
type NullAlgorithm struct {
	Rounds int
}

// NewNullAlgorithm creates a NullAlgorithm whose MaxIterationCount reports
// rounds. Its PerPoint hook reports itself not implemented, so the engine
// runs no per-point rounds for it whatever rounds is.
func NewNullAlgorithm(rounds int) *NullAlgorithm {
	return &NullAlgorithm{Rounds: rounds}
}

func (n *NullAlgorithm) PerPoint(int, []certificate.Certificate, *point.Point, float64) {}
func (n *NullAlgorithm) RunAfterAllPointsMoved([]certificate.Certificate, []*point.Point, float64) {}
func (n *NullAlgorithm) RunAfterSinglePointMoved(*point.Point, float64)                             {}
func (n *NullAlgorithm) MaxIterationCount() int                                                     { return n.Rounds }

func (n *NullAlgorithm) NotImplementedPerPoint() bool                  { return true }
func (n *NullAlgorithm) NotImplementedRunAfterAllPointsMoved() bool    { return true }
func (n *NullAlgorithm) NotImplementedRunAfterSinglePointMoved() bool  { return true }

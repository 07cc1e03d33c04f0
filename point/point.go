// Package point implements the per-point aggregate state of the KDS engine:
// axes, the live/graveyard certificate sets, the point-local message queue,
// per-instant counters, and the PositionChanged/PredictionChanged observer
// channels (spec.md §4.3).
package point

import (
	"math"
	"sync"

	"github.com/kinetic-sim/kinetic-sim/axis"
	"github.com/kinetic-sim/kinetic-sim/certificate"
	"github.com/kinetic-sim/kinetic-sim/polynomial"
)

// ID identifies a point. The certificate package references points only
// through the certificate.PointRef interface (ID plus prediction-change
// listener), never through a concrete *Point, so certificate does not import
// point and no package-level Point/Certificate import cycle arises (spec.md
// §9). Concrete certificate types outside that package, such as
// samples.DistanceCertificate, may keep *Point fields to read positions.
type ID string

// Node is the user-supplied, engine-opaque object attached to a point
// (spec.md §6). It is declared here, not in a separate capability package,
// because AttachPoint's signature is intimately point-shaped; the
// capability package re-exports it as capability.Node for the reader
// following spec.md §6's naming.
type Node interface {
	// NumberOfChanges counts externally-visible structural changes made
	// since the last instant; used by the round driver's internal/external
	// event classification (spec.md §4.7 step 6).
	NumberOfChanges() int
	// AttachPoint is called once at point creation so the node can
	// back-reference its owning point. This is a back-reference, never an
	// ownership edge (spec.md §9).
	AttachPoint(p *Point)
}

// Message is one entry in a point's inbound message queue (spec.md §4.3's
// "unordered set of inbound messages").
type Message struct {
	Type    int
	From    ID
	Payload any
}

// PerPointFunc is the per-point algorithm hook signature (spec.md §4.3's
// run_algorithm / capability.AlgorithmCode.PerPoint).
type PerPointFunc func(roundIndex int, failed []certificate.Certificate, p *Point, now float64)

// Point is a single moving point's full engine-visible state.
type Point struct {
	id ID

	Axes         []*axis.Axis
	Certificates *certificate.Index

	// RemovedCertificatesList is the graveyard: certificates detected
	// failed in the current instant but not yet disposed. Cleared by the
	// round driver's GC phase (spec.md §4.7 step 5).
	RemovedCertificatesList []certificate.Certificate

	// Per-instant scratch and cumulative counters (spec.md §4.3).
	ReceivedMessages          int
	SentMessages              int
	InternalEvents            int
	ExternalEvents            int
	RemovedCertificates       int
	RecomputedPolynomialCount int

	// Changed is true iff Node.NumberOfChanges() > 0 at the end of the
	// instant (spec.md §4.7 step 6).
	Changed bool

	Node Node

	msgMu   sync.Mutex
	msgs    []Message

	listenersMu        sync.Mutex
	positionListeners   map[string]func(p *Point, positions []float64, t float64)
	predictionListeners map[string]func(now float64)
}

// New creates a Point with axisCount axes, each with a ring buffer of the
// given sample capacity.
func New(id ID, axisCount, sampleCapacity int) *Point {
	axes := make([]*axis.Axis, axisCount)
	for i := range axes {
		axes[i] = axis.New(sampleCapacity)
	}
	p := &Point{
		id:                  id,
		Axes:                axes,
		Certificates:        certificate.NewIndex(),
		positionListeners:   make(map[string]func(p *Point, positions []float64, t float64)),
		predictionListeners: make(map[string]func(now float64)),
	}
	return p
}

// ID returns the point's identity. Also satisfies certificate.PointRef.
func (p *Point) ID() string { return string(p.id) }

// PointID returns the point's typed identity.
func (p *Point) PointID() ID { return p.id }

// OnPredictionChanged implements certificate.PointRef.
func (p *Point) OnPredictionChanged(token string, cb func(now float64)) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.predictionListeners[token] = cb
}

// OffPredictionChanged implements certificate.PointRef.
func (p *Point) OffPredictionChanged(token string) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	delete(p.predictionListeners, token)
}

// OnPositionChanged subscribes to this point's PositionChanged channel
// (spec.md §4.7's localized-mode hook).
func (p *Point) OnPositionChanged(token string, cb func(p *Point, positions []float64, t float64)) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.positionListeners[token] = cb
}

// OffPositionChanged unsubscribes from PositionChanged.
func (p *Point) OffPositionChanged(token string) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	delete(p.positionListeners, token)
}

func (p *Point) firePositionChanged(positions []float64, t float64) {
	p.listenersMu.Lock()
	cbs := make([]func(p *Point, positions []float64, t float64), 0, len(p.positionListeners))
	for _, cb := range p.positionListeners {
		cbs = append(cbs, cb)
	}
	p.listenersMu.Unlock()
	for _, cb := range cbs {
		cb(p, positions, t)
	}
}

func (p *Point) firePredictionChanged(t float64) {
	p.listenersMu.Lock()
	cbs := make([]func(now float64), 0, len(p.predictionListeners))
	for _, cb := range p.predictionListeners {
		cbs = append(cbs, cb)
	}
	p.listenersMu.Unlock()
	for _, cb := range cbs {
		cb(t)
	}
}

// AddLastPosition writes a new sample into every axis, fires
// PositionChanged, and — if enablePredictions is set — applies the
// all-or-nothing prediction refit policy of spec.md §4.2: refit every axis
// if any lacks a prediction or any predicted/static divergence exceeds
// epsilon, then fire PredictionChanged if the refit leaves every axis with
// a prediction.
func (p *Point) AddLastPosition(t float64, positions []float64, enablePredictions bool, epsilon float64) {
	for i, x := range positions {
		p.Axes[i].AddSample(x, t)
	}
	p.firePositionChanged(positions, t)

	if !enablePredictions {
		return
	}

	needsRefit := false
	for _, a := range p.Axes {
		if !a.HasPrediction {
			needsRefit = true
			break
		}
		if predicted, ok := a.PredictedPosition(t); ok {
			if diff := predicted - a.Static; diff > epsilon || diff < -epsilon {
				needsRefit = true
				break
			}
		}
	}
	if !needsRefit {
		return
	}

	for _, a := range p.Axes {
		a.Refit()
	}

	allPredicted := true
	for _, a := range p.Axes {
		if !a.HasPrediction {
			allPredicted = false
			break
		}
	}
	if allPredicted {
		p.RecomputedPolynomialCount++
		p.firePredictionChanged(t)
	}
}

// Distance returns the L2 norm of the difference of effective positions
// (predicted if both points have full predictions on every axis, else
// static) — spec.md §4.3.
func (p *Point) Distance(other *Point, now float64) float64 {
	bothPredicted := true
	for i := range p.Axes {
		if !p.Axes[i].HasPrediction || !other.Axes[i].HasPrediction {
			bothPredicted = false
			break
		}
	}
	if !bothPredicted {
		var sum float64
		for i := range p.Axes {
			d := p.Axes[i].PolStatic.Eval(now) - other.Axes[i].PolStatic.Eval(now)
			sum += d * d
		}
		return math.Sqrt(sum)
	}

	sq := p.SquareDistance(other)
	v := sq.Eval(now)
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}

// SquareDistance returns the squared-distance polynomial between p and
// other: the sum over axes of (A_i - B_i)^2 using effective polynomials.
// Preserving the polynomial form (rather than a scalar) lets certificates
// root-solve it directly for a failure time (spec.md §4.3).
func (p *Point) SquareDistance(other *Point) polynomial.Polynomial {
	var sum polynomial.Polynomial
	for i := range p.Axes {
		diff := p.Axes[i].EffectivePolynomial().Sub(other.Axes[i].EffectivePolynomial())
		sum = sum.Add(diff.Mul(diff))
	}
	return sum
}

// RemoveCertificate retires c from the live index into the graveyard,
// incrementing RemovedCertificates. Returns false if c was not live.
// Called by the round driver's GC phase for every certificate already
// staged in RemovedCertificatesList (spec.md §4.7 step 5), and may also be
// called directly by algorithm code to retire a certificate outside of
// failure detection.
func (p *Point) RemoveCertificate(c certificate.Certificate) bool {
	if _, ok := p.Certificates.Remove(c.ID()); !ok {
		return false
	}
	p.RemovedCertificatesList = append(p.RemovedCertificatesList, c)
	p.RemovedCertificates++
	return true
}

// GetFailedCertificates scans the live set and returns every certificate
// whose predicate currently fails, staging any not already in the
// graveyard (without removing it from the live index — that happens at
// end-of-instant GC). Calling this twice within the same instant at the
// same now is idempotent in the sense spec.md §8 property 8 requires: the
// live set is unchanged and no certificate is staged into the graveyard
// twice, but a certificate that is still failing is reported again on
// every call — its predicate hasn't changed, so the engine's per-point
// rounds (which call this once per round) keep seeing it.
func (p *Point) GetFailedCertificates(now float64) []certificate.Certificate {
	staged := make(map[certificate.ID]bool, len(p.RemovedCertificatesList))
	for _, c := range p.RemovedCertificatesList {
		staged[c.ID()] = true
	}

	var failed []certificate.Certificate
	for _, c := range p.Certificates.All() {
		if c.EvaluateValidity(now) {
			continue
		}
		failed = append(failed, c)
		if !staged[c.ID()] {
			p.RemovedCertificatesList = append(p.RemovedCertificatesList, c)
			staged[c.ID()] = true
		}
	}
	return failed
}

// clearMessageQueue drops all queued inbound messages (round 0 entry per
// spec.md §4.7 and the global pass).
func (p *Point) clearMessageQueue() {
	p.msgMu.Lock()
	p.msgs = nil
	p.msgMu.Unlock()
}

// ClearMessageQueue is the exported form, used by the round driver's global
// pass (spec.md §4.7 step 3).
func (p *Point) ClearMessageQueue() { p.clearMessageQueue() }

// ReceiveMessages filter-drains the queue by type, incrementing
// ReceivedMessages, and returns the matching messages. A second call with
// the same type returns an empty slice (spec.md §8 property 7).
func (p *Point) ReceiveMessages(msgType int) []Message {
	p.msgMu.Lock()
	defer p.msgMu.Unlock()

	var matched []Message
	var remaining []Message
	for _, m := range p.msgs {
		if m.Type == msgType {
			matched = append(matched, m)
		} else {
			remaining = append(remaining, m)
		}
	}
	p.msgs = remaining
	if len(matched) > 0 {
		p.ReceivedMessages++
	}
	return matched
}

// SendMessage increments the sender's SentMessages and, under the
// recipient's own mutex, enqueues a fresh message (spec.md §4.3, §5).
func (p *Point) SendMessage(to *Point, msgType int, payload any) {
	p.SentMessages++
	to.msgMu.Lock()
	to.msgs = append(to.msgs, Message{Type: msgType, From: p.id, Payload: payload})
	to.msgMu.Unlock()
}

// RunAlgorithm computes failed certificates and, if any exist, invokes
// perPoint; round 0 clears the message queue first. Returns whether the
// algorithm was invoked (spec.md §4.3). Intended for driving a point
// standalone, outside the engine's round loop.
func (p *Point) RunAlgorithm(roundIndex int, now float64, perPoint PerPointFunc) bool {
	return p.runAlgorithm(roundIndex, now, perPoint, true)
}

// RunAlgorithmRound is the variant the engine's per-point round driver uses:
// identical to RunAlgorithm but never clears the message queue itself. The
// engine's global pass already clears every point's queue serially before
// round 0's worker-pool fan-out starts; clearing again from inside a
// concurrently-running round-0 task would race against another point's
// same-round send and could erase a message meant to survive to round 1.
func (p *Point) RunAlgorithmRound(roundIndex int, now float64, perPoint PerPointFunc) bool {
	return p.runAlgorithm(roundIndex, now, perPoint, false)
}

func (p *Point) runAlgorithm(roundIndex int, now float64, perPoint PerPointFunc, clearOnRoundZero bool) bool {
	failed := p.GetFailedCertificates(now)
	if len(failed) == 0 {
		return false
	}
	if roundIndex == 0 && clearOnRoundZero {
		p.clearMessageQueue()
	}
	perPoint(roundIndex, failed, p, now)
	return true
}

// ResetInstantCounters zeroes the per-instant scratch counters
// (RemovedCertificates) at the end of the round driver's classification
// step (spec.md §4.7 step 6).
func (p *Point) ResetInstantCounters() {
	p.RemovedCertificates = 0
}

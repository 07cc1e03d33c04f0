// Package capability declares the engine's external collaborator contracts
// (spec.md §6): the user-supplied movement function, algorithm, certificate
// generator, audit, and node implementations the round driver consumes
// through well-defined interfaces. Optional hooks are paired with
// NotImplemented* query methods; the engine reads them once at registration,
// memoizes the answers, and never calls a hook reported absent (spec.md §7,
// §9).
package capability

import (
	"context"

	"github.com/kinetic-sim/kinetic-sim/certificate"
	"github.com/kinetic-sim/kinetic-sim/point"
)

// Node is the user-supplied, engine-opaque per-point object (spec.md §6).
// Declared in package point (AttachPoint's signature is point-shaped);
// aliased here so callers can spell it capability.Node per spec.md's
// naming.
type Node = point.Node

// NodeInitializer computes each point's initial axis values at setup.
type NodeInitializer interface {
	ComputeInitialValues(points []*point.Point) error
}

// Mover writes new axis positions for the given instant. Implementations
// must write positions via axis.AddSample (point.Point.AddLastPosition),
// per spec.md §6. It takes a context because movers may read from disk or a
// network source; the round driver calls it in phase 2 and blocks until it
// returns (spec.md §5).
type Mover interface {
	MovePoints(ctx context.Context, points []*point.Point, now float64, previousNow *float64) error
}

// AlgorithmCode is the user KDS algorithm, invoked by the round driver in
// three modalities (spec.md §4.7, §6):
//   - PerPoint: one of R per-point message-passing rounds.
//   - RunAfterAllPointsMoved: the global pass, once per instant.
//   - RunAfterSinglePointMoved: the localized hook, fired once per
//     point.AddLastPosition call, after all of the point's axes are written
//     (spec.md §9 Open Question 3).
//
// Any method may report NotImplemented(); the engine then never calls it
// again for the remainder of the run (spec.md §7).
type AlgorithmCode interface {
	PerPoint(roundIndex int, failed []certificate.Certificate, p *point.Point, now float64)
	RunAfterAllPointsMoved(failed []certificate.Certificate, points []*point.Point, now float64)
	RunAfterSinglePointMoved(p *point.Point, now float64)
	MaxIterationCount() int

	// NotImplementedPerPoint, NotImplementedRunAfterAllPointsMoved, and
	// NotImplementedRunAfterSinglePointMoved report, once, whether the
	// corresponding hook should be treated as absent. This models spec.md
	// §9's "each capability method as Option<fn>" guidance without
	// exception-probing: a capability that never implements a hook simply
	// returns true unconditionally; one that can a host can still opt a
	// specific point or round out of by returning true from inside the
	// method itself and reporting false here.
	NotImplementedPerPoint() bool
	NotImplementedRunAfterAllPointsMoved() bool
	NotImplementedRunAfterSinglePointMoved() bool
}

// CertificateGenerator (re)builds certificates after a rebuild is
// triggered, either globally or per point. Either method may be absent.
type CertificateGenerator interface {
	RebuildAll(points []*point.Point, now float64) error
	RebuildForPoint(p *point.Point, node Node, now float64) error

	NotImplementedRebuildAll() bool
	NotImplementedRebuildForPoint() bool
}

// Audit inspects the full point set after each instant's rebuild and
// returns a non-nil error to halt the simulation (spec.md §6, §7).
type Audit interface {
	Audit(points []*point.Point) error
}

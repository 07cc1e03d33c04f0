// Package engine implements the KDS round driver and scheduler (spec.md
// §4.6–§4.7): the object that sequences movement, the global and per-point
// algorithm passes, certificate garbage collection, event classification,
// certificate rebuild, audit, and tick emission for one simulated instant,
// and repeats until the horizon.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kinetic-sim/kinetic-sim/capability"
	"github.com/kinetic-sim/kinetic-sim/certificate"
	"github.com/kinetic-sim/kinetic-sim/point"
)

// Engine is the round driver: it owns the point arena, the scheduler, and
// the capability adapters, and sequences one simulated instant per call
// to the inner loop inside Run (spec.md §4.7). It plays the role the
// teacher's ClusterSimulator plays (sim/cluster/simulator.go's Run:
// pop → advance clock → dispatch), generalized from an event-queue pop to
// the certificate-failure-driven Scheduler.
type Engine struct {
	cfg       Config
	scheduler *Scheduler

	// order preserves point insertion order; every pass over the point set
	// iterates in this order for determinism, mirroring the teacher's
	// explicit "deterministic event ordering" discipline
	// (sim/cluster/simulator.go's nextEventID / EventHeap tie-breaks).
	order  []point.ID
	points map[point.ID]*point.Point

	mover     capability.Mover
	algorithm capability.AlgorithmCode
	certGen   capability.CertificateGenerator
	audit     capability.Audit

	previousNow     float64
	havePreviousNow bool

	listeners listeners

	// Memoized "not implemented" flags, checked once at registration per
	// spec.md §7/§9 rather than probed every instant.
	algoPerPointAbsent           bool
	algoAllPointsAbsent          bool
	algoSinglePointAbsent        bool
	certGenRebuildAllAbsent      bool
	certGenRebuildForPointAbsent bool
}

// New creates an Engine from cfg.
func New(cfg Config) *Engine {
	logrus.Infof("engine: constructed (start_time=%v end_time=%v axis_count=%d h=%d predictions=%v)",
		cfg.StartTime, cfg.EndTime, cfg.AxisCount, cfg.H, cfg.EnablePredictions)
	return &Engine{
		cfg:       cfg,
		scheduler: NewScheduler(cfg),
		points:    make(map[point.ID]*point.Point),
	}
}

// AddPoint creates a point with the engine's configured axis count and
// history capacity, attaches node (calling node.AttachPoint), and
// subscribes the localized-mode hook to its PositionChanged channel
// (spec.md §4.7's localized mode / §9 Open Question 3: the hook fires once
// per AddLastPosition call, after every axis of the point has been written,
// and must not re-enter the round driver — it only ever receives the point
// and the time, never the Engine).
func (e *Engine) AddPoint(id point.ID, node point.Node) *point.Point {
	p := point.New(id, e.cfg.AxisCount, e.cfg.H)
	p.Node = node
	if node != nil {
		node.AttachPoint(p)
	}

	p.OnPositionChanged("localized-mode", func(pp *point.Point, _ []float64, now float64) {
		if e.algorithm == nil || e.algoSinglePointAbsent {
			return
		}
		e.algorithm.RunAfterSinglePointMoved(pp, now)
	})

	e.points[id] = p
	e.order = append(e.order, id)
	return p
}

// Point looks up a point by id.
func (e *Engine) Point(id point.ID) (*point.Point, bool) {
	p, ok := e.points[id]
	return p, ok
}

func (e *Engine) orderedPoints() []*point.Point {
	out := make([]*point.Point, len(e.order))
	for i, id := range e.order {
		out[i] = e.points[id]
	}
	return out
}

// SetMover installs the movement capability.
func (e *Engine) SetMover(m capability.Mover) { e.mover = m }

// SetAlgorithm installs the algorithm capability, memoizing which hooks it
// implements.
func (e *Engine) SetAlgorithm(a capability.AlgorithmCode) {
	e.algorithm = a
	if a == nil {
		return
	}
	e.algoPerPointAbsent = a.NotImplementedPerPoint()
	e.algoAllPointsAbsent = a.NotImplementedRunAfterAllPointsMoved()
	e.algoSinglePointAbsent = a.NotImplementedRunAfterSinglePointMoved()
}

// SetCertificateGenerator installs the certificate-rebuild capability,
// memoizing which hooks it implements.
func (e *Engine) SetCertificateGenerator(g capability.CertificateGenerator) {
	e.certGen = g
	if g == nil {
		return
	}
	e.certGenRebuildAllAbsent = g.NotImplementedRebuildAll()
	e.certGenRebuildForPointAbsent = g.NotImplementedRebuildForPoint()
}

// SetAudit installs the audit capability.
func (e *Engine) SetAudit(a capability.Audit) { e.audit = a }

func (e *Engine) anyAxisStatic() bool {
	for _, p := range e.points {
		for _, a := range p.Axes {
			if a.IsStatic {
				return true
			}
		}
	}
	return false
}

// Run drives the engine from the scheduler's current time to EndTime,
// executing the nine-step instant sequence of spec.md §4.7 each
// iteration. Returns the first error raised by the mover, the certificate
// generator, or the audit — per spec.md §7, these propagate and terminate
// the run rather than being retried.
func (e *Engine) Run(ctx context.Context) (err error) {
	logrus.Infof("engine: run starting with %d points", len(e.order))
	defer func() {
		if err != nil {
			logrus.Warnf("engine: run stopped with error: %v", err)
		} else {
			logrus.Infof("engine: run stopped at time=%v", e.scheduler.CurrentTime)
		}
	}()

	// Seed the initial certificate universe before the first advance_time,
	// so the very first scheduling decision has a real candidate set to
	// choose from rather than jumping straight to EndTime.
	if e.certGen != nil && !e.certGenRebuildAllAbsent {
		if err := e.certGen.RebuildAll(e.orderedPoints(), e.cfg.StartTime); err != nil {
			return fmt.Errorf("engine: initial rebuild: %w", err)
		}
	}

	for {
		now := e.scheduler.AdvanceTime(e.orderedPoints())
		pts := e.orderedPoints()

		// Step 2: movement (skipped entirely in the fully-dynamic case).
		if e.anyAxisStatic() && e.mover != nil {
			var prev *float64
			if e.havePreviousNow {
				p := e.previousNow
				prev = &p
			}
			if err := e.mover.MovePoints(ctx, pts, now, prev); err != nil {
				return fmt.Errorf("engine: mover: %w", err)
			}
			e.previousNow = now
			e.havePreviousNow = true
		}

		// Step 3: global pass.
		var allFailed []certificate.Certificate
		for _, p := range pts {
			allFailed = append(allFailed, p.GetFailedCertificates(now)...)
		}
		for _, p := range pts {
			p.ClearMessageQueue()
		}
		if e.algorithm != nil && !e.algoAllPointsAbsent {
			e.algorithm.RunAfterAllPointsMoved(allFailed, pts, now)
		}

		// Step 4: per-point rounds.
		if e.algorithm != nil && !e.algoPerPointAbsent {
			rounds := e.maxIterationCount()
			for round := 0; round < rounds; round++ {
				forEachPoint(len(pts), e.cfg.MaxWorkers, func(i int) {
					p := pts[i]
					p.RunAlgorithmRound(round, now, func(roundIndex int, failed []certificate.Certificate, pp *point.Point, t float64) {
						e.algorithm.PerPoint(roundIndex, failed, pp, t)
					})
				})
			}
		}

		// Step 5: certificate GC.
		for _, p := range pts {
			graveyard := p.RemovedCertificatesList
			for _, c := range graveyard {
				p.RemoveCertificate(c)
				c.Dispose()
			}
			p.RemovedCertificatesList = nil
		}

		// Step 6: event classification.
		var changed []*point.Point
		for _, p := range pts {
			ext := 0
			if p.Node != nil {
				ext = p.Node.NumberOfChanges()
			}
			switch {
			case p.RemovedCertificates > ext:
				p.ExternalEvents += ext
				p.InternalEvents += p.RemovedCertificates - ext
			case e.cfg.ClassifyExcessAsExternal:
				p.ExternalEvents += p.RemovedCertificates
			}
			p.ResetInstantCounters()
			p.Changed = ext != 0
			if p.Changed {
				changed = append(changed, p)
			}
		}

		// Step 7: rebuild.
		if e.certGen != nil {
			if !e.certGenRebuildAllAbsent {
				if err := e.certGen.RebuildAll(pts, now); err != nil {
					return fmt.Errorf("engine: rebuild all: %w", err)
				}
			}
			if !e.certGenRebuildForPointAbsent {
				var mu sync.Mutex
				var firstErr error
				forEachPoint(len(pts), e.cfg.MaxWorkers, func(i int) {
					p := pts[i]
					if err := e.certGen.RebuildForPoint(p, p.Node, now); err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
					}
				})
				if firstErr != nil {
					return fmt.Errorf("engine: rebuild for point: %w", firstErr)
				}
			}
		}

		// Step 8: audit.
		if e.audit != nil {
			if err := e.audit.Audit(pts); err != nil {
				return fmt.Errorf("engine: audit: %w", err)
			}
		}

		// Step 9: emit.
		e.fireTick(now)
		e.firePointsChanged(now, changed)

		if now >= e.cfg.EndTime {
			return nil
		}
	}
}

func (e *Engine) maxIterationCount() int {
	if e.algorithm != nil {
		if n := e.algorithm.MaxIterationCount(); n > 0 {
			return n
		}
	}
	if e.cfg.MaxIterationCount > 0 {
		return e.cfg.MaxIterationCount
	}
	return 1
}

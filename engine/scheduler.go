package engine

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/kinetic-sim/kinetic-sim/certificate"
	"github.com/kinetic-sim/kinetic-sim/point"
)

// Scheduler selects the engine's next simulated instant (spec.md §4.6):
// the soonest live certificate failure in event-driven mode, or a fixed
// TimeStep advance in discrete mode, falling back to the horizon when the
// certificate universe is empty and predictions are enabled.
//
// This plays the role the teacher's sim/scheduler.go policy objects play
// (a named strategy selected once, applied every step) but is rendered as
// a single struct with an internal mode decision per spec.md §4.6, rather
// than the teacher's interchangeable-named-policy registry, because the
// spec defines one algorithm with two modes, not a pluggable strategy set.
type Scheduler struct {
	cfg         Config
	CurrentTime float64
}

// NewScheduler creates a Scheduler positioned at cfg.StartTime.
func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg, CurrentTime: cfg.StartTime}
}

// AdvanceTime implements spec.md §4.6's advance_time: it inspects every
// point's axes and every live certificate to decide between an
// event-driven jump to the soonest certificate failure and a stepped
// fallback, then updates and returns CurrentTime.
func (s *Scheduler) AdvanceTime(points []*point.Point) float64 {
	prev := s.CurrentTime

	if s.allHavePredictions(points) || s.noStatics(points) {
		if next, ok := s.soonestFailure(points); ok {
			logrus.Debugf("scheduler: event-driven jump %v -> %v", prev, next)
			s.CurrentTime = next
		} else {
			logrus.Debugf("scheduler: no live certificate candidates, jumping to end_time %v", s.cfg.EndTime)
			s.CurrentTime = s.cfg.EndTime
		}
	} else {
		s.CurrentTime = prev + s.cfg.TimeStep
		logrus.Debugf("scheduler: stepped advance %v -> %v", prev, s.CurrentTime)
	}

	if s.CurrentTime < prev {
		panic(fmt.Sprintf("scheduler: clock went backwards: %v < %v", s.CurrentTime, prev))
	}
	return s.CurrentTime
}

func (s *Scheduler) allHavePredictions(points []*point.Point) bool {
	for _, p := range points {
		for _, a := range p.Axes {
			if !a.HasPrediction {
				return false
			}
		}
	}
	return true
}

func (s *Scheduler) noStatics(points []*point.Point) bool {
	for _, p := range points {
		for _, a := range p.Axes {
			if a.IsStatic {
				return false
			}
		}
	}
	return true
}

// candidate pairs a certificate's cached failure time with the certificate
// itself, so ties can be broken by the stable total order on certificates
// (spec.md §4.6's tie-break rule), the same timestamp→tie-break comparator
// shape as the teacher's EventHeap.Less (sim/cluster/event_heap.go).
type candidate struct {
	failAt float64
	cert   certificate.Certificate
}

func (s *Scheduler) soonestFailure(points []*point.Point) (float64, bool) {
	var cands []candidate
	for _, p := range points {
		for _, c := range p.Certificates.All() {
			at, ok := c.FailureTimeAtCreation()
			if !ok || at <= s.CurrentTime {
				continue
			}
			cands = append(cands, candidate{failAt: at, cert: c})
		}
	}
	if len(cands) == 0 {
		return 0, false
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].failAt != cands[j].failAt {
			return cands[i].failAt < cands[j].failAt
		}
		return cands[i].cert.ID() < cands[j].cert.ID()
	})
	return cands[0].failAt, true
}

package engine

import "github.com/kinetic-sim/kinetic-sim/point"

// TickListener is notified once every instant (spec.md §6's
// SimulationTick).
type TickListener func(now float64, points []*point.Point)

// PointsChangedListener is notified only on instants where at least one
// point changed (spec.md §6's SimulationPointsChanged).
type PointsChangedListener func(now float64, points []*point.Point, changed []*point.Point)

// listeners holds the engine's two observer channels (spec.md §9's
// "explicit observer list" guidance, generalized from per-point to
// per-engine since SimulationTick/SimulationPointsChanged are host-facing,
// not point-facing, channels) — the same BaseEvent-typed-channel shape as
// the teacher's sim/cluster/events.go, simplified to callbacks since there
// is no per-event dispatch table needed at this level.
type listeners struct {
	tick          []TickListener
	pointsChanged []PointsChangedListener
}

// OnTick registers a SimulationTick observer.
func (e *Engine) OnTick(l TickListener) {
	e.listeners.tick = append(e.listeners.tick, l)
}

// OnPointsChanged registers a SimulationPointsChanged observer.
func (e *Engine) OnPointsChanged(l PointsChangedListener) {
	e.listeners.pointsChanged = append(e.listeners.pointsChanged, l)
}

func (e *Engine) fireTick(now float64) {
	for _, l := range e.listeners.tick {
		l(now, e.orderedPoints())
	}
}

func (e *Engine) firePointsChanged(now float64, changed []*point.Point) {
	if len(changed) == 0 {
		return
	}
	for _, l := range e.listeners.pointsChanged {
		l(now, e.orderedPoints(), changed)
	}
}

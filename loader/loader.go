// Package loader provides the default capability.Mover and
// capability.NodeInitializer: a CSV trajectory file read at construction
// time and replayed instant by instant (spec.md §6's "default point-file
// loader"). It is grounded on the teacher's trace-v2 CSV reader
// (sim/workload/tracev2.go's LoadTraceV2/parseTraceRecord: os.Open +
// encoding/csv.Reader, skip header row, per-row strconv parsing with
// column-indexed error messages).
package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/kinetic-sim/kinetic-sim/point"
)

// Sample is one (time, point id, axis values) row of a trajectory file.
type Sample struct {
	Time   float64
	Point  point.ID
	Values []float64
}

// Trajectories holds the parsed rows of a trajectory CSV, grouped by point
// and sorted by time, ready to be replayed by a Mover.
type Trajectories struct {
	byPoint map[point.ID][]Sample
}

// LoadCSV reads a trajectory file with header "time,point_id,axis0,axis1,...".
// axisCount fixes the expected number of axis columns; rows with fewer
// columns are rejected the way parseTraceRecord rejects a short row, and
// columns beyond the expected count are ignored.
func LoadCSV(path string, axisCount int) (*Trajectories, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: opening trajectory file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("loader: reading header row: %w", err)
	}

	byPoint := make(map[point.ID][]Sample)
	wantCols := 2 + axisCount
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loader: reading row: %w", err)
		}
		if len(row) < wantCols {
			return nil, fmt.Errorf("loader: row has %d columns, expected %d", len(row), wantCols)
		}

		t, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("loader: parsing time %q: %w", row[0], err)
		}
		id := point.ID(row[1])

		values := make([]float64, axisCount)
		for i := 0; i < axisCount; i++ {
			v, err := strconv.ParseFloat(row[2+i], 64)
			if err != nil {
				return nil, fmt.Errorf("loader: parsing axis %d value %q: %w", i, row[2+i], err)
			}
			values[i] = v
		}

		byPoint[id] = append(byPoint[id], Sample{Time: t, Point: id, Values: values})
	}

	for id := range byPoint {
		rows := byPoint[id]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Time < rows[j].Time })
		byPoint[id] = rows
	}

	return &Trajectories{byPoint: byPoint}, nil
}

// IDs returns the set of point ids present in the file.
func (t *Trajectories) IDs() []point.ID {
	ids := make([]point.ID, 0, len(t.byPoint))
	for id := range t.byPoint {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Mover replays a Trajectories file into the engine's points: every call
// to MovePoints writes, for each point with a recorded sample at exactly
// now, that sample's axis values (spec.md §6's capability.Mover contract).
// Points with no sample at now are left untouched for the instant.
type Mover struct {
	trajectories *Trajectories
	cursor       map[point.ID]int
	enablePred   bool
	epsilon      float64
}

// NewMover builds a Mover over trajectories. enablePredictions and epsilon
// are forwarded to every point.AddLastPosition call (spec.md §4.2).
func NewMover(trajectories *Trajectories, enablePredictions bool, epsilon float64) *Mover {
	return &Mover{
		trajectories: trajectories,
		cursor:       make(map[point.ID]int),
		enablePred:   enablePredictions,
		epsilon:      epsilon,
	}
}

// MovePoints implements capability.Mover.
func (m *Mover) MovePoints(_ context.Context, points []*point.Point, now float64, _ *float64) error {
	for _, p := range points {
		rows, ok := m.trajectories.byPoint[p.PointID()]
		if !ok {
			continue
		}
		idx := m.cursor[p.PointID()]
		for idx < len(rows) && rows[idx].Time < now {
			idx++
		}
		if idx < len(rows) && rows[idx].Time == now {
			p.AddLastPosition(now, rows[idx].Values, m.enablePred, m.epsilon)
			idx++
		}
		m.cursor[p.PointID()] = idx
	}
	return nil
}

// Initializer seeds every point's first sample from the earliest row in a
// Trajectories file (capability.NodeInitializer).
type Initializer struct {
	trajectories *Trajectories
}

// NewInitializer builds an Initializer over trajectories.
func NewInitializer(trajectories *Trajectories) *Initializer {
	return &Initializer{trajectories: trajectories}
}

// ComputeInitialValues writes the first recorded sample for each point that
// has one.
func (init *Initializer) ComputeInitialValues(points []*point.Point) error {
	for _, p := range points {
		rows, ok := init.trajectories.byPoint[p.PointID()]
		if !ok || len(rows) == 0 {
			continue
		}
		first := rows[0]
		p.AddLastPosition(first.Time, first.Values, false, 0)
	}
	return nil
}

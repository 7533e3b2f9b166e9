// Package solver defines the interface an outer nonlinear solver consumes
// from the contact subsystem and provides a contact-aware backtracking line
// search that drives the subsystem's lifecycle hooks in the contractual
// order.
package solver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrLineSearchFailed is returned when no trial step satisfies the descent
// condition within the trial budget.
var ErrLineSearchFailed = errors.New("line search exhausted its trial budget")

// Objective is a smooth scalar objective over the full displacement vector.
// Callers must announce the evaluation point through the ContactAware hooks
// before querying value or gradient; the contact subsystem does not refresh
// its constraint set on its own.
type Objective interface {
	Value(x []float64) float64
	Gradient(x []float64) []float64
}

// ContactAware is the lifecycle surface the line search drives. Begin/End
// always pair; SolutionChanged precedes every evaluation at a new point.
type ContactAware interface {
	LineSearchBegin(x0, x1 []float64)
	LineSearchEnd()
	SolutionChanged(x []float64)
	MaxStepSize(x0, x1 []float64) (float64, error)
}

// CentroidSeriesProvider is an optional capability: objectives that track a
// series of surface centroids expose it for debug reporting, instead of the
// driver inspecting concrete types.
type CentroidSeriesProvider interface {
	CentroidSeries() []mgl64.Vec3
}

// NamedMarkerProvider is an optional capability: objectives that track named
// marker positions expose them for debug reporting.
type NamedMarkerProvider interface {
	NamedMarkers() map[string]mgl64.Vec3
}

// LineSearch is a backtracking Armijo line search whose first trial step is
// bounded by the contact subsystem's collision-free step limit.
type LineSearch struct {
	// Shrink is the backtracking factor; zero means 0.5.
	Shrink float64
	// ArmijoC is the sufficient-decrease constant; zero means 1e-4.
	ArmijoC float64
	// MaxTrials bounds the number of backtracking steps; zero means 32.
	MaxTrials int
	// Log, when non-nil, receives debug reports.
	Log *slog.Logger
}

// Search finds a step along dir from x that satisfies the Armijo condition,
// never exceeding the collision-free bound. On success it returns the step
// fraction and the accepted point; the contact state is left refreshed at the
// accepted point. On failure the contact state is restored to x.
func (ls LineSearch) Search(obj Objective, contact ContactAware, x, dir []float64) (float64, []float64, error) {
	shrink := ls.Shrink
	if shrink == 0 {
		shrink = 0.5
	}
	armijo := ls.ArmijoC
	if armijo == 0 {
		armijo = 1e-4
	}
	maxTrials := ls.MaxTrials
	if maxTrials == 0 {
		maxTrials = 32
	}

	x1 := make([]float64, len(x))
	for i := range x {
		x1[i] = x[i] + dir[i]
	}

	contact.LineSearchBegin(x, x1)
	defer contact.LineSearchEnd()

	step, err := contact.MaxStepSize(x, x1)
	if err != nil {
		return 0, nil, fmt.Errorf("bounding line-search step: %w", err)
	}

	f0 := obj.Value(x)
	grad := obj.Gradient(x)
	slope := 0.0
	for i := range grad {
		slope += grad[i] * dir[i]
	}

	trial := make([]float64, len(x))
	for trials := 0; trials < maxTrials; trials++ {
		for i := range x {
			trial[i] = x[i] + step*dir[i]
		}
		contact.SolutionChanged(trial)
		ft := obj.Value(trial)

		if ft <= f0+armijo*step*slope {
			ls.report(obj, step, ft)
			return step, trial, nil
		}
		step *= shrink
	}

	contact.SolutionChanged(x)
	return 0, nil, ErrLineSearchFailed
}

func (ls LineSearch) report(obj Objective, step, value float64) {
	if ls.Log == nil {
		return
	}
	ls.Log.Debug("accepted line-search step", "step", step, "value", value)
	if p, ok := obj.(CentroidSeriesProvider); ok {
		series := p.CentroidSeries()
		if n := len(series); n > 0 {
			ls.Log.Debug("centroid series", "points", n, "last", series[n-1])
		}
	}
	if p, ok := obj.(NamedMarkerProvider); ok {
		for name, pos := range p.NamedMarkers() {
			ls.Log.Debug("marker", "name", name, "position", pos)
		}
	}
}

package solver

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadratic is a smooth objective with minimum at target.
type quadratic struct {
	target []float64
}

func (q *quadratic) Value(x []float64) float64 {
	v := 0.0
	for i := range x {
		d := x[i] - q.target[i]
		v += 0.5 * d * d
	}
	return v
}

func (q *quadratic) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for i := range x {
		g[i] = x[i] - q.target[i]
	}
	return g
}

// recorder captures the hook call sequence and plays back a canned step bound.
type recorder struct {
	calls   []string
	maxStep float64
	stepErr error
}

func (r *recorder) LineSearchBegin(x0, x1 []float64) { r.calls = append(r.calls, "begin") }
func (r *recorder) LineSearchEnd()                   { r.calls = append(r.calls, "end") }
func (r *recorder) SolutionChanged(x []float64)      { r.calls = append(r.calls, "changed") }
func (r *recorder) MaxStepSize(x0, x1 []float64) (float64, error) {
	r.calls = append(r.calls, "max_step")
	return r.maxStep, r.stepErr
}

func TestSearchHookOrder(t *testing.T) {
	obj := &quadratic{target: []float64{1, 1}}
	rec := &recorder{maxStep: 1}

	step, x, err := LineSearch{}.Search(obj, rec, []float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, step)
	assert.InDelta(t, 1.0, x[0], 1e-15)

	require.NotEmpty(t, rec.calls)
	assert.Equal(t, "begin", rec.calls[0])
	assert.Equal(t, "max_step", rec.calls[1])
	assert.Equal(t, "end", rec.calls[len(rec.calls)-1])
	// Every evaluation point was announced before use
	assert.Contains(t, rec.calls, "changed")
}

func TestSearchRespectsStepBound(t *testing.T) {
	obj := &quadratic{target: []float64{10}}
	rec := &recorder{maxStep: 0.25}

	step, x, err := LineSearch{}.Search(obj, rec, []float64{0}, []float64{1})
	require.NoError(t, err)
	assert.LessOrEqual(t, step, 0.25)
	assert.InDelta(t, step, x[0], 1e-15)
}

func TestSearchBacktracks(t *testing.T) {
	// Full step overshoots the minimum at 1 badly enough to fail Armijo;
	// backtracking must settle below it.
	obj := &quadratic{target: []float64{1}}
	rec := &recorder{maxStep: 1}

	step, _, err := LineSearch{}.Search(obj, rec, []float64{0}, []float64{4})
	require.NoError(t, err)
	assert.Less(t, step, 1.0)
	assert.Greater(t, step, 0.0)
}

func TestSearchPropagatesStepError(t *testing.T) {
	obj := &quadratic{target: []float64{1}}
	wantErr := errors.New("unable to find an intersection-free step size")
	rec := &recorder{stepErr: wantErr}

	_, _, err := LineSearch{}.Search(obj, rec, []float64{0}, []float64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	// The pairing contract holds even on failure
	assert.Equal(t, "end", rec.calls[len(rec.calls)-1])
}

func TestSearchFailureRestoresState(t *testing.T) {
	// An ascent direction never satisfies Armijo.
	obj := &quadratic{target: []float64{0}}
	rec := &recorder{maxStep: 1}

	_, _, err := LineSearch{MaxTrials: 4}.Search(obj, rec, []float64{1}, []float64{1})
	require.ErrorIs(t, err, ErrLineSearchFailed)

	// The last announced configuration is the starting point again.
	assert.Equal(t, "end", rec.calls[len(rec.calls)-1])
	assert.Equal(t, "changed", rec.calls[len(rec.calls)-2])
}

// markerObjective exposes the optional debug capabilities.
type markerObjective struct {
	quadratic
}

func (m *markerObjective) CentroidSeries() []mgl64.Vec3 {
	return []mgl64.Vec3{{0, 0, 0}, {0.5, 0, 0}}
}

func (m *markerObjective) NamedMarkers() map[string]mgl64.Vec3 {
	return map[string]mgl64.Vec3{"tip": {1, 0, 0}}
}

func TestCapabilityInterfaces(t *testing.T) {
	obj := &markerObjective{quadratic{target: []float64{1}}}

	var asObjective Objective = obj
	_, ok := asObjective.(CentroidSeriesProvider)
	assert.True(t, ok, "marker objective should expose centroid series")
	_, ok = asObjective.(NamedMarkerProvider)
	assert.True(t, ok, "marker objective should expose named markers")

	plain := &quadratic{target: []float64{1}}
	var asPlain Objective = plain
	_, ok = asPlain.(CentroidSeriesProvider)
	assert.False(t, ok, "plain objective should not expose capabilities")

	// Reporting through capabilities must not disturb the search.
	rec := &recorder{maxStep: 1}
	_, _, err := LineSearch{}.Search(obj, rec, []float64{0}, []float64{1})
	require.NoError(t, err)
}

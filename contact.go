// Package contact implements frictionless contact between deformable bodies
// with a smooth barrier potential, and bounds a nonlinear solver's trial
// steps so surfaces never interpenetrate.
//
// The central type is Form: the outer solver announces configurations through
// SolutionChanged and the line-search hooks, reads the barrier value, gradient
// and Hessian for its linearization, and clamps every trial step to the
// collision-free fraction reported by MaxStepSize. An adaptive controller
// owns the barrier stiffness and retunes it from the trend of the minimum
// separation distance after each accepted step.
//
// The Form is meant for single-threaded, synchronous use inside one solver
// loop. Geometric scans parallelize internally over independent primitive
// pairs; that is invisible at this surface.
package contact

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solverforge/contact/broadphase"
	"github.com/solverforge/contact/ccd"
	"github.com/solverforge/contact/constraint"
	"github.com/solverforge/contact/geom"
	"github.com/solverforge/contact/logx"
	"github.com/solverforge/contact/mesh"
)

// lineSearchInflation divides the activation distance to get the candidate
// inflation radius for a whole line-search interval. Slightly below 2 so the
// cached candidate list stays a strict superset of every narrow-phase query
// inside the interval.
const lineSearchInflation = 1.99

// Elasticity is what the contact subsystem consumes from the elastic/PDE
// solver. Gradient must return the elastic energy gradient in full
// degree-of-freedom space; Mass is the lumped per-DOF mass diagonal.
type Elasticity struct {
	Gradient     func(x []float64) []float64
	BodyGradient func(x []float64) []float64
	Mass         []float64
	AvgMass      float64
}

// Form is the contact barrier subsystem bound to one collision mesh and one
// simulation run. It owns the active constraint set, the line-search
// candidate cache, the barrier stiffness, and the minimum-distance history;
// none of that state is shared between instances.
type Form struct {
	mesh       *mesh.CollisionMesh
	opts       Options
	elasticity Elasticity
	broadPhase broadphase.Interface
	log        *slog.Logger

	stiffness    float64
	maxStiffness float64
	// prevDistance is the minimum separation after the last accepted step;
	// -1 means no history yet.
	prevDistance float64

	set constraint.Set
	// cachedSurface is the surface the constraint set was built against.
	// Rebuilds are skipped for bit-identical surfaces.
	cachedSurface []mgl64.Vec3

	candidates          broadphase.Candidates
	useCachedCandidates bool
}

// NewForm validates the options and binds a form to a collision mesh and its
// elastic collaborator.
func NewForm(m *mesh.CollisionMesh, elasticity Elasticity, opts Options) (*Form, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if elasticity.Gradient == nil {
		return nil, fmt.Errorf("adaptive stiffness requires an elastic gradient")
	}
	if elasticity.AvgMass <= 0 {
		return nil, fmt.Errorf("average mass must be positive, got %g", elasticity.AvgMass)
	}

	f := &Form{
		mesh:         m,
		opts:         opts,
		elasticity:   elasticity,
		broadPhase:   broadphase.New(opts.BroadPhaseMethod),
		log:          logx.Logger(),
		stiffness:    1,
		prevDistance: -1,
	}
	f.log.Debug("using adaptive barrier stiffness")
	return f, nil
}

// SetBroadPhase replaces the broad-phase strategy. Meant for custom spatial
// partitioning backends; the strategy must report candidates for malformed
// geometry itself.
func (f *Form) SetBroadPhase(bp broadphase.Interface) {
	f.broadPhase = bp
}

// SetLogger redirects the form's reporting.
func (f *Form) SetLogger(log *slog.Logger) {
	f.log = log
}

// BarrierStiffness returns the current stiffness coefficient.
func (f *Form) BarrierStiffness() float64 {
	return f.stiffness
}

// MaxBarrierStiffness returns the cap recorded at the last initialization.
func (f *Form) MaxBarrierStiffness() float64 {
	return f.maxStiffness
}

// ConstraintCount returns the size of the active constraint set.
func (f *Form) ConstraintCount() int {
	return f.set.Len()
}

// DisplacedSurface maps a full displacement vector to world-space surface
// positions.
func (f *Form) DisplacedSurface(x []float64) []mgl64.Vec3 {
	return f.mesh.DisplacedSurface(x)
}

// Init prepares the form for the first solve at configuration x.
func (f *Form) Init(x []float64) {
	f.initializeBarrierStiffness(x)
}

// UpdateConstraintSet rebuilds the active constraint set against a deformed
// surface. A surface identical to the last one used is a no-op: repeated
// calls with the same configuration must not repeat the geometric search.
// Inside a line search the narrow phase is restricted to the cached candidate
// list; otherwise a full broad-phase query runs first.
func (f *Form) UpdateConstraintSet(surface []mgl64.Vec3) {
	if mesh.SurfacesEqual(f.cachedSurface, surface) {
		return
	}

	var cands broadphase.Candidates
	if f.useCachedCandidates {
		cands = f.candidates
	} else {
		cands = f.broadPhase.FindCandidates(f.mesh, surface, surface, f.opts.Dhat/2)
	}

	f.set = f.buildSet(surface, cands)
	f.cachedSurface = slices.Clone(surface)
}

// buildSet is the narrow phase: keep a candidate iff its primitives are
// closer than the activation distance.
func (f *Form) buildSet(surface []mgl64.Vec3, cands broadphase.Candidates) constraint.Set {
	dhatSq := f.opts.Dhat * f.opts.Dhat

	type scored struct {
		cons constraint.Constraint
		keep bool
	}
	vt := task(f.opts.Workers, cands.VertexTriangles, func(c broadphase.VertexTriangle) scored {
		cons := constraint.VertexTriangle{V: c.VI, F: f.mesh.Faces[c.FI]}
		return scored{cons: cons, keep: cons.Eval(surface).DistSq < dhatSq}
	})
	ee := task(f.opts.Workers, cands.EdgeEdges, func(c broadphase.EdgeEdge) scored {
		cons := constraint.EdgeEdge{A: f.mesh.Edges[c.EA], B: f.mesh.Edges[c.EB]}
		return scored{cons: cons, keep: cons.Eval(surface).DistSq < dhatSq}
	})

	var set constraint.Set
	for _, s := range vt {
		if s.keep {
			set.Constraints = append(set.Constraints, s.cons)
		}
	}
	for _, s := range ee {
		if s.keep {
			set.Constraints = append(set.Constraints, s.cons)
		}
	}
	return set
}

// SolutionChanged refreshes the constraint set for a new trial or accepted
// configuration. It must be called before Value, Gradient or Hessian at that
// configuration; the evaluators never refresh on their own.
func (f *Form) SolutionChanged(x []float64) {
	f.UpdateConstraintSet(f.DisplacedSurface(x))
}

// Value returns the stiffness-scaled barrier potential at x, evaluated over
// the currently cached constraint set.
func (f *Form) Value(x []float64) float64 {
	return f.stiffness * f.set.Potential(f.DisplacedSurface(x), f.opts.Dhat)
}

// Gradient returns the stiffness-scaled barrier gradient in full
// degree-of-freedom space.
func (f *Form) Gradient(x []float64) []float64 {
	grad := f.mesh.ToFullDOF(f.set.PotentialGradient(f.DisplacedSurface(x), f.opts.Dhat))
	for i := range grad {
		grad[i] *= f.stiffness
	}
	return grad
}

// Hessian returns the stiffness-scaled barrier Hessian as sparse triplets in
// full degree-of-freedom space, with per-constraint blocks projected to
// positive semi-definite when the form is configured to.
func (f *Form) Hessian(x []float64) []constraint.Triplet {
	triplets := f.set.PotentialHessian(f.mesh, f.DisplacedSurface(x), f.opts.Dhat, f.opts.ProjectToPSD)
	for i := range triplets {
		triplets[i].Val *= f.stiffness
	}
	return triplets
}

// initializeBarrierStiffness derives the stiffness from the ratio of elastic
// to barrier gradient magnitudes, and records the cap it must stay under.
func (f *Form) initializeBarrierStiffness(x []float64) {
	surface := f.DisplacedSurface(x)
	f.UpdateConstraintSet(surface)

	gradEnergy := slices.Clone(f.elasticity.Gradient(x))
	if f.elasticity.Mass != nil {
		for i := range gradEnergy {
			gradEnergy[i] += f.elasticity.Mass[i] * x[i] / f.opts.AccelerationScaling
		}
	}
	if f.elasticity.BodyGradient != nil {
		body := f.elasticity.BodyGradient(x)
		for i := range gradEnergy {
			gradEnergy[i] += body[i]
		}
	}

	gradBarrier := f.mesh.ToFullDOF(f.set.PotentialGradient(surface, f.opts.Dhat))

	f.stiffness, f.maxStiffness = geom.InitialStiffness(
		mesh.BBoxDiagonal(surface), f.opts.Dhat, f.elasticity.AvgMass, gradEnergy, gradBarrier)

	f.log.Debug("adaptive barrier stiffness", "stiffness", f.stiffness, "max", f.maxStiffness)
}

// MaxStepSize returns the largest fraction in (0, 1] such that moving the
// surface linearly from x0 toward x1 by that fraction stays collision-free.
// Inside a line search the scan is restricted to the cached candidate list.
//
// When the safe-step failsafe is enabled, the interpolated surface at the
// returned fraction is checked for residual static intersections; any found
// halve the fraction until they disappear, and if the fraction or the
// displacement underflows to zero first the error is a *StepSizeError, which
// the caller must treat as fatal for the current nonlinear step.
func (f *Form) MaxStepSize(x0, x1 []float64) (float64, error) {
	v0 := f.DisplacedSurface(x0)
	v1 := f.DisplacedSurface(x1)

	var cands broadphase.Candidates
	if f.useCachedCandidates {
		cands = f.candidates
	} else {
		cands = f.broadPhase.FindCandidates(f.mesh, v0, v1, 0)
	}

	maxStep := ccd.MaxStepSize(f.mesh, v0, v1, cands, f.opts.CCDTolerance, f.opts.CCDMaxIterations, f.opts.Workers)

	if f.opts.SafeStepCheck {
		interp := func(t float64) []mgl64.Vec3 {
			out := make([]mgl64.Vec3, len(v0))
			for i := range v0 {
				out[i] = v0[i].Add(v1[i].Sub(v0[i]).Mul(t))
			}
			return out
		}

		vtoi := interp(maxStep)
		for geom.HasIntersections(f.mesh.Edges, f.mesh.Faces, vtoi) {
			f.log.Error("taking max step results in intersections", "max_step", maxStep)
			maxStep /= 2

			linf := mesh.MaxDisplacementNorm(v0, vtoi)
			if maxStep <= 0 || linf == 0 {
				return 0, &StepSizeError{Step: maxStep, LInf: linf}
			}
			vtoi = interp(maxStep)
		}
	}

	return maxStep, nil
}

// LineSearchBegin builds the candidate list covering the whole interval from
// x0 to x1, inflated conservatively so every intermediate narrow-phase query
// can be restricted to it. Must be paired with exactly one LineSearchEnd.
func (f *Form) LineSearchBegin(x0, x1 []float64) {
	f.candidates = f.broadPhase.FindCandidates(
		f.mesh, f.DisplacedSurface(x0), f.DisplacedSurface(x1), f.opts.Dhat/lineSearchInflation)
	f.useCachedCandidates = true
}

// LineSearchEnd drops the candidate cache and reverts to full recomputation.
func (f *Form) LineSearchEnd() {
	f.candidates.Clear()
	f.useCachedCandidates = false
}

// PostStep records the minimum separation after an accepted step and feeds
// the stiffness controller. For time-dependent problems the stiffness doubles
// toward its cap while contacts keep tightening below the trend threshold;
// quasi-static problems re-initialize it from scratch instead. A change is
// reported; stable distances leave the stiffness untouched.
func (f *Form) PostStep(iterNum int, x []float64) {
	surface := f.DisplacedSurface(x)
	currDistance := f.set.MinDistance(surface)

	if f.prevDistance >= 0 {
		if f.opts.TimeDependent {
			prev := f.stiffness
			f.stiffness = geom.UpdateStiffness(
				f.prevDistance, currDistance, f.maxStiffness, f.stiffness, mesh.BBoxDiagonal(surface))
			if prev != f.stiffness {
				f.log.Debug("updated barrier stiffness", "iter", iterNum, "from", prev, "to", f.stiffness)
			}
		} else {
			f.initializeBarrierStiffness(x)
		}
	}

	f.prevDistance = currDistance
}

// UpdateQuantities re-initializes the stiffness for a new quasi-static or
// continuation step at time t.
func (f *Form) UpdateQuantities(t float64, x []float64) {
	f.initializeBarrierStiffness(x)
}

// MinDistance returns the smallest active separation at x, or +Inf with no
// active constraints. The constraint set must be current for x.
func (f *Form) MinDistance(x []float64) float64 {
	return f.set.MinDistance(f.DisplacedSurface(x))
}

package contact

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/solverforge/contact/broadphase"
)

// ErrFixedStiffness is returned when the fixed barrier-stiffness regime is
// selected. The regime is part of the recognized configuration surface but
// has never been implemented; the adaptive controller is the supported path.
var ErrFixedStiffness = errors.New("fixed barrier stiffness not implemented")

// StepSizeError is the fatal failure of the step limiter's intersection
// failsafe: no positive step fraction leaves the surface intersection-free.
// Callers must reject the current nonlinear step; there is no retry inside
// the subsystem.
type StepSizeError struct {
	Step float64
	LInf float64
}

func (e *StepSizeError) Error() string {
	return fmt.Sprintf("unable to find an intersection-free step size (max_step=%g L∞=%g)", e.Step, e.LInf)
}

// Options is the recognized configuration surface of the contact subsystem.
type Options struct {
	// Dhat is the barrier activation distance: separations beyond it
	// contribute nothing to the potential. Must be positive.
	Dhat float64 `toml:"dhat"`
	// AdaptiveStiffness selects the adaptive barrier-stiffness controller.
	// The fixed regime is recognized but unsupported.
	AdaptiveStiffness bool `toml:"adaptive_stiffness"`
	// FixedStiffness would be the constant stiffness of the fixed regime.
	FixedStiffness float64 `toml:"fixed_stiffness"`
	// TimeDependent enables the per-step stiffness trend update; otherwise
	// every accepted step re-initializes the stiffness from scratch.
	TimeDependent bool `toml:"time_dependent"`
	// BroadPhaseMethod selects the spatial partitioning strategy.
	BroadPhaseMethod broadphase.Method `toml:"broad_phase"`
	// CCDTolerance is the convergence tolerance of the step limiter. Must
	// be positive.
	CCDTolerance float64 `toml:"ccd_tolerance"`
	// CCDMaxIterations bounds the conservative-advancement loop per pair.
	CCDMaxIterations int `toml:"ccd_max_iterations"`
	// AccelerationScaling scales the inertial term of the elastic gradient
	// during stiffness initialization.
	AccelerationScaling float64 `toml:"acceleration_scaling"`
	// ProjectToPSD clamps per-constraint Hessian blocks to positive
	// semi-definite, as second-order solvers assuming convexity require.
	ProjectToPSD bool `toml:"project_to_psd"`
	// SafeStepCheck enables the post-CCD static-intersection failsafe with
	// its step-halving loop. Costs one intersection scan per line search.
	SafeStepCheck bool `toml:"safe_step_check"`
	// Workers bounds internal parallelism over independent primitive
	// pairs. At most one goroutine per worker; zero means sequential.
	Workers int `toml:"workers"`
}

// DefaultOptions returns the options used when a field is not set explicitly.
func DefaultOptions() Options {
	return Options{
		Dhat:                1e-3,
		AdaptiveStiffness:   true,
		BroadPhaseMethod:    broadphase.SpatialGridMethod,
		CCDTolerance:        1e-6,
		CCDMaxIterations:    1_000_000,
		AccelerationScaling: 1,
		ProjectToPSD:        true,
		SafeStepCheck:       true,
		Workers:             1,
	}
}

// ParseOptions decodes TOML over the defaults.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	if err := toml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parsing contact options: %w", err)
	}
	return opts, nil
}

// Validate rejects configurations the subsystem cannot honor.
func (o Options) Validate() error {
	if o.Dhat <= 0 {
		return fmt.Errorf("dhat must be positive, got %g", o.Dhat)
	}
	if o.CCDTolerance <= 0 {
		return fmt.Errorf("ccd tolerance must be positive, got %g", o.CCDTolerance)
	}
	if o.CCDMaxIterations <= 0 {
		return fmt.Errorf("ccd max iterations must be positive, got %d", o.CCDMaxIterations)
	}
	if o.AccelerationScaling <= 0 {
		return fmt.Errorf("acceleration scaling must be positive, got %g", o.AccelerationScaling)
	}
	if !o.AdaptiveStiffness {
		return ErrFixedStiffness
	}
	return nil
}

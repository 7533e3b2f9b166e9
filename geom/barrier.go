package geom

import (
	"math"
)

const (
	// MinStiffnessScale scales the lower bound of the initial barrier
	// stiffness so the barrier Hessian at the near-contact distance d₀ is
	// comparable to the elastic stiffness scale of the problem.
	MinStiffnessScale = 1e11

	// MaxStiffnessFactor bounds the stiffness cap relative to its lower
	// bound. The controller never pushes the stiffness above this cap.
	MaxStiffnessFactor = 100

	// NearContactScale sets the near-contact reference distance d₀ as a
	// fraction of the world bounding-box diagonal.
	NearContactScale = 1e-8

	// DistanceTrendScale sets the separation threshold, as a fraction of
	// the bounding-box diagonal, below which a shrinking minimum distance
	// triggers a stiffness increase.
	DistanceTrendScale = 1e-9
)

// Barrier evaluates the smooth barrier kernel on a squared distance:
//
//	b(d²) = -(d² - d̂²)² ln(d²/d̂²)   for 0 < d² < d̂²
//	b(d²) = 0                        for d² ≥ d̂²
//
// The kernel is C² at d² = d̂² and grows without bound as d² → 0, which is
// what lets a line search with a collision-free step limiter keep iterates
// strictly separated.
func Barrier(dsq, dhatSq float64) float64 {
	if dsq >= dhatSq {
		return 0
	}
	diff := dsq - dhatSq
	return -diff * diff * math.Log(dsq/dhatSq)
}

// BarrierFirstDeriv returns db/d(d²).
func BarrierFirstDeriv(dsq, dhatSq float64) float64 {
	if dsq >= dhatSq {
		return 0
	}
	diff := dsq - dhatSq
	return -2*diff*math.Log(dsq/dhatSq) - diff*diff/dsq
}

// BarrierSecondDeriv returns d²b/d(d²)².
func BarrierSecondDeriv(dsq, dhatSq float64) float64 {
	if dsq >= dhatSq {
		return 0
	}
	diff := dsq - dhatSq
	return -2*math.Log(dsq/dhatSq) - 4*diff/dsq + diff*diff/(dsq*dsq)
}

// InitialStiffness derives the starting barrier stiffness from the relative
// magnitudes of the elastic and (un-scaled) barrier gradients, returning the
// stiffness and the cap it must never exceed.
//
// The returned stiffness makes the scaled barrier gradient comparable to the
// elastic gradient: κ₀ = -∇E·∇B / ‖∇B‖², clamped to [κ_min, 100 κ_min] where
// κ_min is chosen so the barrier Hessian at the near-contact distance matches
// the problem's mass scale. When the barrier gradient vanishes (no active
// contacts) the lower bound is returned.
func InitialStiffness(bboxDiag, dhat, avgMass float64, gradEnergy, gradBarrier []float64) (stiffness, maxStiffness float64) {
	dhatSq := dhat * dhat

	d0 := NearContactScale * bboxDiag
	d0 *= d0
	if d0 >= dhatSq {
		d0 = 0.5 * dhatSq
	}

	minStiffness := MinStiffnessScale * avgMass / BarrierSecondDeriv(d0, dhatSq)
	maxStiffness = MaxStiffnessFactor * minStiffness

	stiffness = minStiffness
	var gbSq, dot float64
	for i := range gradBarrier {
		gbSq += gradBarrier[i] * gradBarrier[i]
		dot += gradBarrier[i] * gradEnergy[i]
	}
	if gbSq > 0 {
		stiffness = math.Min(maxStiffness, math.Max(minStiffness, -dot/gbSq))
	}
	return stiffness, maxStiffness
}

// UpdateStiffness applies the per-step stiffness rule: when the minimum
// separation is below the trend threshold and still shrinking, the contacts
// are tightening and the stiffness doubles, capped at maxStiffness. In every
// other situation the stiffness is returned unchanged, so stable distance
// histories make this a no-op.
func UpdateStiffness(prevDist, currDist, maxStiffness, stiffness, bboxDiag float64) float64 {
	threshold := DistanceTrendScale * bboxDiag
	if prevDist < threshold && currDist < threshold && currDist < prevDist {
		return math.Min(maxStiffness, 2*stiffness)
	}
	return stiffness
}

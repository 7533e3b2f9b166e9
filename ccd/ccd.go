// Package ccd bounds line-search steps so linearly interpolated surface
// motion stays free of primitive-pair intersections.
//
// Each candidate pair is advanced conservatively: at the current interpolation
// fraction the pair's separation is measured, a gap of a fixed fraction of the
// initial separation is held back, and the fraction advances by the remaining
// separation divided by an upper bound on the pair's approach speed. The pair
// therefore never closes below the held-back gap, so the returned fraction is
// collision-free by construction.
package ccd

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solverforge/contact/broadphase"
	"github.com/solverforge/contact/geom"
	"github.com/solverforge/contact/mesh"
)

// gapFraction is the share of the initial separation held back as a safety
// gap. The remaining (1 - gapFraction) of the separation is what a pair may
// consume over the step.
const gapFraction = 0.1

// pair is one CCD query: four stacked vertices where the first `split`
// belong to the first primitive.
type pair struct {
	idx   [4]int
	split int
}

func (p pair) distSq(pos [4]mgl64.Vec3) float64 {
	if p.split == 1 {
		dsq, _ := geom.PointTriangleDistSq(pos[0], pos[1], pos[2], pos[3])
		return dsq
	}
	dsq, _, _ := geom.EdgeEdgeDistSq(pos[0], pos[1], pos[2], pos[3])
	return dsq
}

// approachBound is an upper bound on the closing speed of the two primitives
// over the unit interpolation interval: the largest displacement magnitude on
// each side, summed.
func (p pair) approachBound(disp [4]mgl64.Vec3) float64 {
	var first, second float64
	for k := 0; k < p.split; k++ {
		first = math.Max(first, disp[k].Len())
	}
	for k := p.split; k < 4; k++ {
		second = math.Max(second, disp[k].Len())
	}
	return first + second
}

// stepSize returns the largest certified collision-free fraction in [0, 1]
// for one pair. A pair that starts in contact returns 0; a pair with no
// relative motion returns 1.
func (p pair) stepSize(pos0, disp [4]mgl64.Vec3, tol float64, maxIter int) float64 {
	d0 := math.Sqrt(p.distSq(pos0))
	if d0 <= 0 {
		return 0
	}
	l := p.approachBound(disp)
	if l == 0 {
		return 1
	}
	gap := gapFraction * d0

	t := 0.0
	var cur [4]mgl64.Vec3
	for iter := 0; iter < maxIter; iter++ {
		for k := range cur {
			cur[k] = pos0[k].Add(disp[k].Mul(t))
		}
		step := (math.Sqrt(p.distSq(cur)) - gap) / l
		if step <= 0 {
			break
		}
		t += step
		if t >= 1 {
			return 1
		}
		if step < tol {
			break
		}
	}
	return t
}

// MaxStepSize returns the largest fraction in [0, 1] such that interpolating
// every candidate pair from v0 toward v1 by that fraction keeps all pairs
// separated. With no candidates, or identical endpoints, it returns 1.
// Workers below 2 run the scan sequentially.
func MaxStepSize(m *mesh.CollisionMesh, v0, v1 []mgl64.Vec3, cands broadphase.Candidates, tol float64, maxIter, workers int) float64 {
	pairs := make([]pair, 0, cands.Len())
	for _, vt := range cands.VertexTriangles {
		f := m.Faces[vt.FI]
		pairs = append(pairs, pair{idx: [4]int{vt.VI, f[0], f[1], f[2]}, split: 1})
	}
	for _, ee := range cands.EdgeEdges {
		a, b := m.Edges[ee.EA], m.Edges[ee.EB]
		pairs = append(pairs, pair{idx: [4]int{a[0], a[1], b[0], b[1]}, split: 2})
	}
	if len(pairs) == 0 {
		return 1
	}

	eval := func(start, end int) float64 {
		minStep := 1.0
		var pos0, disp [4]mgl64.Vec3
		for _, p := range pairs[start:end] {
			for k, vi := range p.idx {
				pos0[k] = v0[vi]
				disp[k] = v1[vi].Sub(v0[vi])
			}
			if s := p.stepSize(pos0, disp, tol, maxIter); s < minStep {
				minStep = s
			}
		}
		return minStep
	}

	if workers < 2 || len(pairs) < workers {
		return eval(0, len(pairs))
	}

	mins := make([]float64, workers)
	chunk := (len(pairs) + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := min(w*chunk, len(pairs))
		end := min(start+chunk, len(pairs))
		mins[w] = 1
		if start == end {
			continue
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			mins[w] = eval(start, end)
		}(w, start, end)
	}
	wg.Wait()

	minStep := 1.0
	for _, s := range mins {
		minStep = math.Min(minStep, s)
	}
	return minStep
}

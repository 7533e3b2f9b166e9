// Package constraint defines the active primitive-pair constraints of the
// barrier potential and evaluates the potential, its gradient, and its
// Hessian over a set of them.
//
// Every constraint couples exactly four surface vertices. Its evaluation
// produces the squared distance between the two primitives, the separation
// vector between their closest points, and four scalar weights: the gradient
// of the squared distance with respect to stacked vertex k is 2·W[k]·Diff.
// The weights come out of the closest-point parameterization; at the
// minimizer the parameter variation does not contribute, so the gradient is
// exact even on clamped sub-features.
package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solverforge/contact/geom"
	"github.com/solverforge/contact/mesh"
	"gonum.org/v1/gonum/mat"
)

// Eval is the result of evaluating one constraint against a surface.
type Eval struct {
	// DistSq is the squared distance between the two primitives.
	DistSq float64
	// Diff is the vector from the closest point of the second primitive to
	// the closest point of the first.
	Diff mgl64.Vec3
	// W holds the closest-point weights of the four stacked vertices.
	W [4]float64
}

// Gradient returns ∇d² with respect to stacked vertex k.
func (e Eval) Gradient(k int) mgl64.Vec3 {
	return e.Diff.Mul(2 * e.W[k])
}

// Constraint is one active primitive pair of the barrier potential.
type Constraint interface {
	// Vertices returns the four surface vertex indices the constraint
	// couples, in stacking order.
	Vertices() [4]int
	// Eval computes distance, separation and weights against a surface.
	Eval(surface []mgl64.Vec3) Eval
}

// VertexTriangle is a point-triangle constraint. Clamped barycentric weights
// let it degenerate gracefully to point-edge and point-point proximity.
type VertexTriangle struct {
	V int
	F [3]int
}

// Vertices implements Constraint.
func (c VertexTriangle) Vertices() [4]int {
	return [4]int{c.V, c.F[0], c.F[1], c.F[2]}
}

// Eval implements Constraint.
func (c VertexTriangle) Eval(surface []mgl64.Vec3) Eval {
	p := surface[c.V]
	a, b, cc := surface[c.F[0]], surface[c.F[1]], surface[c.F[2]]
	dsq, w := geom.PointTriangleDistSq(p, a, b, cc)
	closest := a.Mul(w[0]).Add(b.Mul(w[1])).Add(cc.Mul(w[2]))
	return Eval{
		DistSq: dsq,
		Diff:   p.Sub(closest),
		W:      [4]float64{1, -w[0], -w[1], -w[2]},
	}
}

// EdgeEdge is an edge-edge constraint between two topologically disjoint
// surface edges.
type EdgeEdge struct {
	A [2]int
	B [2]int
}

// Vertices implements Constraint.
func (c EdgeEdge) Vertices() [4]int {
	return [4]int{c.A[0], c.A[1], c.B[0], c.B[1]}
}

// Eval implements Constraint.
func (c EdgeEdge) Eval(surface []mgl64.Vec3) Eval {
	p1, q1 := surface[c.A[0]], surface[c.A[1]]
	p2, q2 := surface[c.B[0]], surface[c.B[1]]
	dsq, s, t := geom.EdgeEdgeDistSq(p1, q1, p2, q2)
	c1 := p1.Add(q1.Sub(p1).Mul(s))
	c2 := p2.Add(q2.Sub(p2).Mul(t))
	return Eval{
		DistSq: dsq,
		Diff:   c1.Sub(c2),
		W:      [4]float64{1 - s, s, -(1 - t), -t},
	}
}

// Set is the ordered collection of active constraints. It is rebuilt by the
// contact form whenever the deformed surface changes and only read by the
// potential evaluators.
type Set struct {
	Constraints []Constraint
}

// Len returns the number of active constraints.
func (s Set) Len() int {
	return len(s.Constraints)
}

// IsEmpty reports whether no constraints are active.
func (s Set) IsEmpty() bool {
	return len(s.Constraints) == 0
}

// MinDistance returns the smallest primitive-pair distance over the set, or
// +Inf when the set is empty.
func (s Set) MinDistance(surface []mgl64.Vec3) float64 {
	minSq := math.Inf(1)
	for _, c := range s.Constraints {
		if dsq := c.Eval(surface).DistSq; dsq < minSq {
			minSq = dsq
		}
	}
	return math.Sqrt(minSq)
}

// Potential sums the barrier kernel over the set. The stiffness multiplier is
// applied by the caller.
func (s Set) Potential(surface []mgl64.Vec3, dhat float64) float64 {
	dhatSq := dhat * dhat
	total := 0.0
	for _, c := range s.Constraints {
		total += geom.Barrier(c.Eval(surface).DistSq, dhatSq)
	}
	return total
}

// PotentialGradient returns the surface-space gradient of the potential,
// three entries per surface vertex. Expansion to full degree-of-freedom space
// is the mesh's job.
func (s Set) PotentialGradient(surface []mgl64.Vec3, dhat float64) []float64 {
	dhatSq := dhat * dhat
	grad := make([]float64, 3*len(surface))
	for _, c := range s.Constraints {
		e := c.Eval(surface)
		b1 := geom.BarrierFirstDeriv(e.DistSq, dhatSq)
		if b1 == 0 {
			continue
		}
		verts := c.Vertices()
		for k, vi := range verts {
			g := e.Gradient(k)
			grad[3*vi] += b1 * g.X()
			grad[3*vi+1] += b1 * g.Y()
			grad[3*vi+2] += b1 * g.Z()
		}
	}
	return grad
}

// Triplet is one coordinate-format entry of a sparse matrix.
type Triplet struct {
	Row, Col int
	Val      float64
}

// PotentialHessian assembles the Hessian of the potential as COO triplets in
// full degree-of-freedom space. Per constraint the local 12×12 block is
//
//	H = b″(d²) ∇d² ∇d²ᵀ + b′(d²) ∇²d²
//
// with the Gauss-Newton curvature ∇²d² = 2·wwᵀ⊗I₃ of the frozen closest-point
// weights. With projectPSD the block is clamped to the nearest symmetric
// positive semi-definite matrix before scattering.
func (s Set) PotentialHessian(m *mesh.CollisionMesh, surface []mgl64.Vec3, dhat float64, projectPSD bool) []Triplet {
	dhatSq := dhat * dhat
	var triplets []Triplet
	local := mat.NewSymDense(12, nil)

	for _, c := range s.Constraints {
		e := c.Eval(surface)
		b1 := geom.BarrierFirstDeriv(e.DistSq, dhatSq)
		b2 := geom.BarrierSecondDeriv(e.DistSq, dhatSq)
		if b1 == 0 && b2 == 0 {
			continue
		}

		for i := 0; i < 12; i++ {
			ki, di := i/3, i%3
			for j := 0; j <= i; j++ {
				kj, dj := j/3, j%3
				v := 4 * b2 * e.W[ki] * e.Diff[di] * e.W[kj] * e.Diff[dj]
				if di == dj {
					v += 2 * b1 * e.W[ki] * e.W[kj]
				}
				local.SetSym(i, j, v)
			}
		}
		if projectPSD {
			geom.ProjectPSD(local)
		}

		verts := c.Vertices()
		for i := 0; i < 12; i++ {
			row := m.DofIndex[verts[i/3]] + i%3
			for j := 0; j < 12; j++ {
				col := m.DofIndex[verts[j/3]] + j%3
				if v := local.At(i, j); v != 0 {
					triplets = append(triplets, Triplet{Row: row, Col: col, Val: v})
				}
			}
		}
	}
	return triplets
}

// TripletsToDense accumulates triplets into a dense n×n matrix. Meant for
// tests and small problems; solvers consume the triplets directly.
func TripletsToDense(triplets []Triplet, n int) *mat.Dense {
	dense := mat.NewDense(n, n, nil)
	for _, t := range triplets {
		dense.Set(t.Row, t.Col, dense.At(t.Row, t.Col)+t.Val)
	}
	return dense
}

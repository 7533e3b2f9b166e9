package constraint

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solverforge/contact/mesh"
	"gonum.org/v1/gonum/mat"
)

// fourVertexMesh gives every vertex its own DOF block in order.
func fourVertexMesh(t *testing.T, rest []mgl64.Vec3) *mesh.CollisionMesh {
	t.Helper()
	dof := make([]int, len(rest))
	for i := range dof {
		dof[i] = 3 * i
	}
	m, err := mesh.New(rest, nil, nil, dof, 3*len(rest))
	if err != nil {
		t.Fatalf("mesh.New: %v", err)
	}
	return m
}

func perturb(surface []mgl64.Vec3, vi, axis int, h float64) []mgl64.Vec3 {
	out := append([]mgl64.Vec3{}, surface...)
	out[vi][axis] += h
	return out
}

// The analytic ∇d² must match central finite differences for every stacked
// vertex, in clamped and interior closest-point regions alike.
func TestEvalGradientFiniteDifference(t *testing.T) {
	tests := []struct {
		name    string
		cons    Constraint
		surface []mgl64.Vec3
	}{
		{
			name: "vertex-triangle interior region",
			cons: VertexTriangle{V: 0, F: [3]int{1, 2, 3}},
			surface: []mgl64.Vec3{
				{0.3, 0.25, 0.8},
				{0, 0, 0}, {2, 0, 0}, {0, 2, 0},
			},
		},
		{
			name: "vertex-triangle vertex region",
			cons: VertexTriangle{V: 0, F: [3]int{1, 2, 3}},
			surface: []mgl64.Vec3{
				{-1, -1, 0.5},
				{0, 0, 0}, {2, 0, 0}, {0, 2, 0},
			},
		},
		{
			name: "edge-edge interior",
			cons: EdgeEdge{A: [2]int{0, 1}, B: [2]int{2, 3}},
			surface: []mgl64.Vec3{
				{-1, 0.1, 0}, {1, 0.1, 0},
				{0.2, -1, 0.7}, {0.2, 1, 0.7},
			},
		},
		{
			name: "edge-edge clamped endpoints",
			cons: EdgeEdge{A: [2]int{0, 1}, B: [2]int{2, 3}},
			surface: []mgl64.Vec3{
				{0, 0, 0}, {1, 0, 0},
				{3, 0.5, 0.5}, {4, 0.5, 0.5},
			},
		},
	}

	const h = 1e-6
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.cons.Eval(tt.surface)
			verts := tt.cons.Vertices()
			for k, vi := range verts {
				grad := e.Gradient(k)
				for axis := 0; axis < 3; axis++ {
					plus := tt.cons.Eval(perturb(tt.surface, vi, axis, h)).DistSq
					minus := tt.cons.Eval(perturb(tt.surface, vi, axis, -h)).DistSq
					fd := (plus - minus) / (2 * h)
					if math.Abs(fd-grad[axis]) > 1e-6 {
						t.Errorf("vertex %d axis %d: analytic %g, finite diff %g", k, axis, grad[axis], fd)
					}
				}
			}
		})
	}
}

func TestSetPotentialActivation(t *testing.T) {
	surface := []mgl64.Vec3{
		{0.3, 0.25, 0.5},
		{0, 0, 0}, {2, 0, 0}, {0, 2, 0},
	}
	set := Set{Constraints: []Constraint{VertexTriangle{V: 0, F: [3]int{1, 2, 3}}}}

	// Separation 0.5 with activation below it contributes nothing
	if v := set.Potential(surface, 0.1); v != 0 {
		t.Errorf("potential beyond activation = %g, want 0", v)
	}
	grad := set.PotentialGradient(surface, 0.1)
	for i, g := range grad {
		if g != 0 {
			t.Errorf("gradient beyond activation: entry %d = %g", i, g)
		}
	}

	// Activation above the separation produces a positive, repulsive term
	if v := set.Potential(surface, 0.8); v <= 0 {
		t.Errorf("potential inside activation = %g, want > 0", v)
	}
	grad = set.PotentialGradient(surface, 0.8)
	// Descent direction -∇ pushes the free vertex up, away from the triangle
	if -grad[2] <= 0 {
		t.Errorf("barrier does not separate: -dΦ/dz = %g for the near vertex", -grad[2])
	}
}

func TestPotentialGradientFiniteDifference(t *testing.T) {
	surface := []mgl64.Vec3{
		{0.3, 0.25, 0.5},
		{0, 0, 0}, {2, 0, 0}, {0, 2, 0},
	}
	set := Set{Constraints: []Constraint{VertexTriangle{V: 0, F: [3]int{1, 2, 3}}}}
	const dhat = 0.8
	const h = 1e-7

	grad := set.PotentialGradient(surface, dhat)
	for vi := range surface {
		for axis := 0; axis < 3; axis++ {
			plus := set.Potential(perturb(surface, vi, axis, h), dhat)
			minus := set.Potential(perturb(surface, vi, axis, -h), dhat)
			fd := (plus - minus) / (2 * h)
			if relErr := math.Abs(fd-grad[3*vi+axis]) / math.Max(1, math.Abs(fd)); relErr > 1e-5 {
				t.Errorf("vertex %d axis %d: analytic %g, finite diff %g", vi, axis, grad[3*vi+axis], fd)
			}
		}
	}
}

// In the vertex closest-point region the weights are locally constant, so the
// frozen-weight Hessian is exact and must match finite differences of the
// gradient.
func TestPotentialHessianFiniteDifference(t *testing.T) {
	surface := []mgl64.Vec3{
		{-0.5, -0.5, 0.2},
		{0, 0, 0}, {2, 0, 0}, {0, 2, 0},
	}
	m := fourVertexMesh(t, surface)
	set := Set{Constraints: []Constraint{VertexTriangle{V: 0, F: [3]int{1, 2, 3}}}}
	const dhat = 1.0
	const h = 1e-6

	dense := TripletsToDense(set.PotentialHessian(m, surface, dhat, false), m.NumDof)

	for vi := range surface {
		for axis := 0; axis < 3; axis++ {
			plus := set.PotentialGradient(perturb(surface, vi, axis, h), dhat)
			minus := set.PotentialGradient(perturb(surface, vi, axis, -h), dhat)
			col := 3*vi + axis
			for row := 0; row < m.NumDof; row++ {
				fd := (plus[row] - minus[row]) / (2 * h)
				got := dense.At(row, col)
				if math.Abs(fd-got) > 1e-4*math.Max(1, math.Abs(fd)) {
					t.Errorf("H[%d,%d]: analytic %g, finite diff %g", row, col, got, fd)
				}
			}
		}
	}
}

func TestPotentialHessianPSDProjection(t *testing.T) {
	// Near-contact interior configuration where the b′ curvature term makes
	// the unprojected block indefinite.
	surface := []mgl64.Vec3{
		{0.3, 0.25, 0.05},
		{0, 0, 0}, {2, 0, 0}, {0, 2, 0},
	}
	m := fourVertexMesh(t, surface)
	set := Set{Constraints: []Constraint{VertexTriangle{V: 0, F: [3]int{1, 2, 3}}}}
	const dhat = 1.0

	toSym := func(project bool) *mat.SymDense {
		dense := TripletsToDense(set.PotentialHessian(m, surface, dhat, project), m.NumDof)
		sym := mat.NewSymDense(m.NumDof, nil)
		for i := 0; i < m.NumDof; i++ {
			for j := i; j < m.NumDof; j++ {
				sym.SetSym(i, j, 0.5*(dense.At(i, j)+dense.At(j, i)))
			}
		}
		return sym
	}

	minEigen := func(sym *mat.SymDense) float64 {
		var eig mat.EigenSym
		if !eig.Factorize(sym, false) {
			t.Fatalf("eigen factorization failed")
		}
		vals := eig.Values(nil)
		minVal := vals[0]
		for _, v := range vals {
			minVal = math.Min(minVal, v)
		}
		return minVal
	}

	if minEigen(toSym(false)) >= -1e-10 {
		t.Fatalf("fixture is not indefinite; projection untested")
	}
	if got := minEigen(toSym(true)); got < -1e-10 {
		t.Errorf("projected Hessian has negative eigenvalue %g", got)
	}
}

func TestMinDistance(t *testing.T) {
	surface := []mgl64.Vec3{
		{0.3, 0.25, 0.5},
		{0, 0, 0}, {2, 0, 0}, {0, 2, 0},
	}

	var empty Set
	if d := empty.MinDistance(surface); !math.IsInf(d, 1) {
		t.Errorf("empty set min distance = %g, want +Inf", d)
	}

	set := Set{Constraints: []Constraint{VertexTriangle{V: 0, F: [3]int{1, 2, 3}}}}
	if d := set.MinDistance(surface); math.Abs(d-0.5) > 1e-12 {
		t.Errorf("min distance = %g, want 0.5", d)
	}
}

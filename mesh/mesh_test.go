package mesh

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func triangleMesh(t *testing.T) *CollisionMesh {
	t.Helper()
	rest := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	m, err := New(rest, [][2]int{{0, 1}, {1, 2}, {2, 0}}, [][3]int{{0, 1, 2}}, []int{0, 3, 6}, 9)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestNewValidation(t *testing.T) {
	rest := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}}

	tests := []struct {
		name     string
		rest     []mgl64.Vec3
		edges    [][2]int
		faces    [][3]int
		dofIndex []int
		numDof   int
	}{
		{name: "no vertices", rest: nil, dofIndex: nil, numDof: 0},
		{name: "dof count mismatch", rest: rest, dofIndex: []int{0}, numDof: 6},
		{name: "dof out of range", rest: rest, dofIndex: []int{0, 4}, numDof: 6},
		{name: "edge out of range", rest: rest, edges: [][2]int{{0, 2}}, dofIndex: []int{0, 3}, numDof: 6},
		{name: "face out of range", rest: rest, faces: [][3]int{{0, 1, 2}}, dofIndex: []int{0, 3}, numDof: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.rest, tt.edges, tt.faces, tt.dofIndex, tt.numDof); err == nil {
				t.Errorf("New accepted malformed topology")
			}
		})
	}
}

func TestDisplacedSurface(t *testing.T) {
	m := triangleMesh(t)

	x := make([]float64, 9)
	x[3], x[4], x[5] = 0.5, -0.5, 2 // vertex 1

	surface := m.DisplacedSurface(x)
	want := []mgl64.Vec3{{0, 0, 0}, {1.5, -0.5, 2}, {0, 1, 0}}
	for i := range want {
		if surface[i] != want[i] {
			t.Errorf("vertex %d = %v, want %v", i, surface[i], want[i])
		}
	}

	// Zero displacement reproduces the rest pose
	rest := m.DisplacedSurface(make([]float64, 9))
	if !SurfacesEqual(rest, m.Rest) {
		t.Errorf("zero displacement should reproduce rest positions")
	}
}

// ToFullDOF is the adjoint of the surface restriction: <restrict(x), g> must
// equal <x, scatter(g)> for any x and g.
func TestToFullDOFAdjoint(t *testing.T) {
	rest := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}}
	// Vertices read non-contiguous DOF blocks, some DOFs are interior.
	m, err := New(rest, nil, nil, []int{6, 0}, 12)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	g := []float64{0.5, -1, 2, 3, 0.25, -0.75}

	surface := m.DisplacedSurface(x)
	restricted := 0.0
	for i, p := range surface {
		d := p.Sub(m.Rest[i])
		restricted += d.X()*g[3*i] + d.Y()*g[3*i+1] + d.Z()*g[3*i+2]
	}

	full := m.ToFullDOF(g)
	scattered := 0.0
	for i := range x {
		scattered += x[i] * full[i]
	}

	if math.Abs(restricted-scattered) > 1e-12 {
		t.Errorf("adjoint mismatch: %g vs %g", restricted, scattered)
	}
}

func TestSurfacesEqual(t *testing.T) {
	a := []mgl64.Vec3{{1, 2, 3}, {4, 5, 6}}

	tests := []struct {
		name     string
		b        []mgl64.Vec3
		expected bool
	}{
		{"identical", []mgl64.Vec3{{1, 2, 3}, {4, 5, 6}}, true},
		{"different value", []mgl64.Vec3{{1, 2, 3}, {4, 5, 6.0000001}}, false},
		{"different size", []mgl64.Vec3{{1, 2, 3}}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SurfacesEqual(a, tt.b); got != tt.expected {
				t.Errorf("SurfacesEqual = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBBoxDiagonal(t *testing.T) {
	surface := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0.5, 2, 0}, {0, 0, 2}}
	want := math.Sqrt(1 + 4 + 4)
	if got := BBoxDiagonal(surface); math.Abs(got-want) > 1e-12 {
		t.Errorf("BBoxDiagonal = %g, want %g", got, want)
	}
	if got := BBoxDiagonal(nil); got != 0 {
		t.Errorf("BBoxDiagonal(nil) = %g, want 0", got)
	}
}

func TestMaxDisplacementNorm(t *testing.T) {
	a := []mgl64.Vec3{{0, 0, 0}, {1, 1, 1}}
	b := []mgl64.Vec3{{0.5, 0, 0}, {1, 1, -2}}
	if got := MaxDisplacementNorm(a, b); got != 3 {
		t.Errorf("MaxDisplacementNorm = %g, want 3", got)
	}
	if got := MaxDisplacementNorm(a, a); got != 0 {
		t.Errorf("MaxDisplacementNorm of identical surfaces = %g, want 0", got)
	}
}

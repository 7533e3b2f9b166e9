// Package mesh holds the static collision-surface topology and the mapping
// between the simulation's full displacement vector and world-space surface
// positions.
//
// A CollisionMesh is immutable for the lifetime of a simulation: it is built
// once from the surface extraction of the volumetric discretization and only
// read afterwards. All mutable contact state (constraint sets, candidate
// caches, stiffness) lives in the contact package.
package mesh

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// CollisionMesh is the surface topology participating in contact.
//
// Rest holds the rest-pose world position of every surface vertex. DofIndex
// maps surface vertex i to the base index of its three degrees of freedom in
// the full displacement vector, so vertex i reads x[DofIndex[i]:DofIndex[i]+3].
type CollisionMesh struct {
	Rest     []mgl64.Vec3
	Edges    [][2]int
	Faces    [][3]int
	DofIndex []int
	// NumDof is the size of the full displacement vector, including
	// interior degrees of freedom that never touch the surface.
	NumDof int
}

// New validates the topology and returns a CollisionMesh.
func New(rest []mgl64.Vec3, edges [][2]int, faces [][3]int, dofIndex []int, numDof int) (*CollisionMesh, error) {
	nv := len(rest)
	if nv == 0 {
		return nil, fmt.Errorf("collision mesh has no vertices")
	}
	if len(dofIndex) != nv {
		return nil, fmt.Errorf("dof index count %d does not match vertex count %d", len(dofIndex), nv)
	}
	for i, d := range dofIndex {
		if d < 0 || d+3 > numDof {
			return nil, fmt.Errorf("vertex %d: dof index %d out of range [0, %d)", i, d, numDof)
		}
	}
	for i, e := range edges {
		if e[0] < 0 || e[0] >= nv || e[1] < 0 || e[1] >= nv {
			return nil, fmt.Errorf("edge %d references vertex out of range", i)
		}
	}
	for i, f := range faces {
		for _, v := range f {
			if v < 0 || v >= nv {
				return nil, fmt.Errorf("face %d references vertex out of range", i)
			}
		}
	}
	return &CollisionMesh{Rest: rest, Edges: edges, Faces: faces, DofIndex: dofIndex, NumDof: numDof}, nil
}

// NumVertices returns the surface vertex count.
func (m *CollisionMesh) NumVertices() int {
	return len(m.Rest)
}

// DisplacedSurface maps a full displacement vector to world-space surface
// positions: rest position plus the restriction of x to surface degrees of
// freedom. Pure and deterministic; called on every candidate step of a line
// search, so it allocates exactly one slice and does no other work.
func (m *CollisionMesh) DisplacedSurface(x []float64) []mgl64.Vec3 {
	surface := make([]mgl64.Vec3, len(m.Rest))
	for i, rest := range m.Rest {
		d := m.DofIndex[i]
		surface[i] = rest.Add(mgl64.Vec3{x[d], x[d+1], x[d+2]})
	}
	return surface
}

// ToFullDOF scatters a surface-space gradient (three entries per surface
// vertex, vertex order) into full degree-of-freedom space. This is the adjoint
// of the restriction performed by DisplacedSurface.
func (m *CollisionMesh) ToFullDOF(surfaceGrad []float64) []float64 {
	full := make([]float64, m.NumDof)
	for i, d := range m.DofIndex {
		full[d] += surfaceGrad[3*i]
		full[d+1] += surfaceGrad[3*i+1]
		full[d+2] += surfaceGrad[3*i+2]
	}
	return full
}

// SurfacesEqual reports whether two surface snapshots match exactly, size and
// value. Exact comparison is intentional: the constraint-set cache must only
// skip recomputation for bit-identical surfaces.
func SurfacesEqual(a, b []mgl64.Vec3) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BBoxDiagonal returns the diagonal length of the world axis-aligned bounding
// box of the surface.
func BBoxDiagonal(surface []mgl64.Vec3) float64 {
	if len(surface) == 0 {
		return 0
	}
	box := AABB{Min: surface[0], Max: surface[0]}
	for _, p := range surface[1:] {
		box = box.Union(AABB{Min: p, Max: p})
	}
	return box.Max.Sub(box.Min).Len()
}

// MaxDisplacementNorm returns the L∞ norm of the per-vertex displacement
// between two surface snapshots of equal size.
func MaxDisplacementNorm(a, b []mgl64.Vec3) float64 {
	linf := 0.0
	for i := range a {
		d := b[i].Sub(a[i])
		linf = math.Max(linf, math.Max(math.Abs(d.X()), math.Max(math.Abs(d.Y()), math.Abs(d.Z()))))
	}
	return linf
}

// Package broadphase generates conservative candidate lists of near-contact
// primitive pairs: surface vertices against triangles and edges against edges.
//
// Candidates are a superset of the active constraint set. The narrow phase
// filters them by exact distance; the CCD step limiter scans all of them. Two
// strategies are provided behind a common interface: a hashed uniform grid and
// a brute-force reference used for small problems and cross-checking.
package broadphase

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solverforge/contact/mesh"
)

// Method selects the spatial partitioning strategy.
type Method int

const (
	SpatialGridMethod Method = iota
	BruteForceMethod
)

func (m Method) String() string {
	switch m {
	case SpatialGridMethod:
		return "spatial_grid"
	case BruteForceMethod:
		return "brute_force"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler for config files.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for config files.
func (m *Method) UnmarshalText(text []byte) error {
	switch string(text) {
	case "spatial_grid":
		*m = SpatialGridMethod
	case "brute_force":
		*m = BruteForceMethod
	default:
		return errUnknownMethod(text)
	}
	return nil
}

type errUnknownMethod []byte

func (e errUnknownMethod) Error() string {
	return "unknown broad-phase method " + string(e)
}

// VertexTriangle is a candidate pair of a surface vertex and a face index.
type VertexTriangle struct {
	VI, FI int
}

// EdgeEdge is a candidate pair of edge indices with EA < EB.
type EdgeEdge struct {
	EA, EB int
}

// Candidates is a coarse superset of the active constraint set, valid for
// every configuration between the two surface snapshots it was built from.
type Candidates struct {
	VertexTriangles []VertexTriangle
	EdgeEdges       []EdgeEdge
}

// Len returns the total candidate count.
func (c *Candidates) Len() int {
	return len(c.VertexTriangles) + len(c.EdgeEdges)
}

// Clear empties the candidate list, keeping capacity.
func (c *Candidates) Clear() {
	c.VertexTriangles = c.VertexTriangles[:0]
	c.EdgeEdges = c.EdgeEdges[:0]
}

// Interface is a pluggable broad-phase strategy. FindCandidates bounds every
// primitive over the motion from surface v0 to v1 (pass the same snapshot
// twice for a static query), inflates the bounds by the given radius, and
// returns all non-adjacent overlapping pairs in deterministic order.
type Interface interface {
	FindCandidates(m *mesh.CollisionMesh, v0, v1 []mgl64.Vec3, inflation float64) Candidates
}

// New returns the strategy for the given method.
func New(method Method) Interface {
	if method == BruteForceMethod {
		return Brute{}
	}
	return Grid{}
}

// vertexInFace reports whether surface vertex v is a corner of face f; such
// pairs are topologically adjacent and never candidates.
func vertexInFace(v int, f [3]int) bool {
	return v == f[0] || v == f[1] || v == f[2]
}

// edgesShareVertex reports whether two edges share an endpoint.
func edgesShareVertex(a, b [2]int) bool {
	return a[0] == b[0] || a[0] == b[1] || a[1] == b[0] || a[1] == b[1]
}

func sortCandidates(c *Candidates) {
	slices.SortFunc(c.VertexTriangles, func(a, b VertexTriangle) int {
		if a.VI != b.VI {
			return a.VI - b.VI
		}
		return a.FI - b.FI
	})
	slices.SortFunc(c.EdgeEdges, func(a, b EdgeEdge) int {
		if a.EA != b.EA {
			return a.EA - b.EA
		}
		return a.EB - b.EB
	})
}

// Brute is the O(n·m) reference strategy: every vertex against every face,
// every edge against every later edge. The grid must agree with it.
type Brute struct{}

// FindCandidates implements Interface.
func (Brute) FindCandidates(m *mesh.CollisionMesh, v0, v1 []mgl64.Vec3, inflation float64) Candidates {
	var out Candidates

	faceBoxes := make([]mesh.AABB, len(m.Faces))
	for fi, f := range m.Faces {
		faceBoxes[fi] = mesh.TriangleAABB(v0, v1, f, inflation)
	}
	for vi := range v0 {
		box := mesh.VertexAABB(v0, v1, vi, inflation)
		for fi, f := range m.Faces {
			if vertexInFace(vi, f) {
				continue
			}
			if box.Overlaps(faceBoxes[fi]) {
				out.VertexTriangles = append(out.VertexTriangles, VertexTriangle{VI: vi, FI: fi})
			}
		}
	}

	edgeBoxes := make([]mesh.AABB, len(m.Edges))
	for ei, e := range m.Edges {
		edgeBoxes[ei] = mesh.EdgeAABB(v0, v1, e, inflation)
	}
	for ea := range m.Edges {
		for eb := ea + 1; eb < len(m.Edges); eb++ {
			if edgesShareVertex(m.Edges[ea], m.Edges[eb]) {
				continue
			}
			if edgeBoxes[ea].Overlaps(edgeBoxes[eb]) {
				out.EdgeEdges = append(out.EdgeEdges, EdgeEdge{EA: ea, EB: eb})
			}
		}
	}

	sortCandidates(&out)
	return out
}

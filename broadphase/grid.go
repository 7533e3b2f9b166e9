package broadphase

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/solverforge/contact/mesh"
)

// DefaultGridCells is the default size of the hashed cell array. Rounded up
// to a power of two so cell hashing reduces to a mask.
const DefaultGridCells = 4096

// Grid is a hashed uniform grid broad phase. A fresh cell array is built per
// query from the primitive bounding boxes, so the strategy itself is stateless
// and safe to share.
type Grid struct {
	// NumCells overrides the hashed cell count; zero means DefaultGridCells.
	NumCells int
}

// cellKey - coordinates of a cell in 3D space
type cellKey struct {
	x, y, z int
}

type cell struct {
	items []int
}

type hashGrid struct {
	cellSize float64
	cells    []cell
	cellMask int
}

func newHashGrid(cellSize float64, numCells int) *hashGrid {
	numCells = nextPowerOfTwo(numCells)
	return &hashGrid{
		cellSize: cellSize,
		cells:    make([]cell, numCells),
		cellMask: numCells - 1,
	}
}

// nextPowerOfTwo rounds up to the next power of 2
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// worldToCell converts a world position into cell coordinates
func (hg *hashGrid) worldToCell(pos mgl64.Vec3) cellKey {
	return cellKey{
		x: int(math.Floor(pos.X() / hg.cellSize)),
		y: int(math.Floor(pos.Y() / hg.cellSize)),
		z: int(math.Floor(pos.Z() / hg.cellSize)),
	}
}

// hashCell hashes a cell into an index of the cell array
func (hg *hashGrid) hashCell(key cellKey) int {
	h := (key.x * 73856093) ^ (key.y * 19349663) ^ (key.z * 83492791)
	return h & hg.cellMask
}

// insert adds a primitive index to every cell its AABB covers
func (hg *hashGrid) insert(index int, box mesh.AABB) {
	minCell := hg.worldToCell(box.Min)
	maxCell := hg.worldToCell(box.Max)

	for x := minCell.x; x <= maxCell.x; x++ {
		for y := minCell.y; y <= maxCell.y; y++ {
			for z := minCell.z; z <= maxCell.z; z++ {
				idx := hg.hashCell(cellKey{x, y, z})
				hg.cells[idx].items = append(hg.cells[idx].items, index)
			}
		}
	}
}

// query calls fn once per distinct primitive index whose cells overlap the
// box. seen is an epoch buffer sized to the primitive count; stamp must be
// unique per query so the buffer never needs clearing.
func (hg *hashGrid) query(box mesh.AABB, seen []int, stamp int, fn func(index int)) {
	minCell := hg.worldToCell(box.Min)
	maxCell := hg.worldToCell(box.Max)

	for x := minCell.x; x <= maxCell.x; x++ {
		for y := minCell.y; y <= maxCell.y; y++ {
			for z := minCell.z; z <= maxCell.z; z++ {
				idx := hg.hashCell(cellKey{x, y, z})
				for _, item := range hg.cells[idx].items {
					if seen[item] == stamp {
						continue
					}
					seen[item] = stamp
					fn(item)
				}
			}
		}
	}
}

// averageExtent picks a cell size from the mean largest side of the boxes.
// Cells comparable to the primitives keep both occupancy and the number of
// cells per insertion small.
func averageExtent(boxes []mesh.AABB) float64 {
	total := 0.0
	for _, b := range boxes {
		total += b.MaxExtent()
	}
	avg := total / float64(len(boxes))
	if avg <= 0 {
		return 1
	}
	return avg
}

// FindCandidates implements Interface.
func (g Grid) FindCandidates(m *mesh.CollisionMesh, v0, v1 []mgl64.Vec3, inflation float64) Candidates {
	numCells := g.NumCells
	if numCells <= 0 {
		numCells = DefaultGridCells
	}

	var out Candidates

	faceBoxes := make([]mesh.AABB, len(m.Faces))
	for fi, f := range m.Faces {
		faceBoxes[fi] = mesh.TriangleAABB(v0, v1, f, inflation)
	}
	edgeBoxes := make([]mesh.AABB, len(m.Edges))
	for ei, e := range m.Edges {
		edgeBoxes[ei] = mesh.EdgeAABB(v0, v1, e, inflation)
	}

	if len(m.Faces) > 0 {
		fg := newHashGrid(averageExtent(faceBoxes), numCells)
		for fi, box := range faceBoxes {
			fg.insert(fi, box)
		}
		seen := make([]int, len(m.Faces))
		for i := range seen {
			seen[i] = -1
		}
		for vi := range v0 {
			box := mesh.VertexAABB(v0, v1, vi, inflation)
			fg.query(box, seen, vi, func(fi int) {
				if vertexInFace(vi, m.Faces[fi]) {
					return
				}
				if box.Overlaps(faceBoxes[fi]) {
					out.VertexTriangles = append(out.VertexTriangles, VertexTriangle{VI: vi, FI: fi})
				}
			})
		}
	}

	if len(m.Edges) > 1 {
		eg := newHashGrid(averageExtent(edgeBoxes), numCells)
		for ei, box := range edgeBoxes {
			eg.insert(ei, box)
		}
		seen := make([]int, len(m.Edges))
		for i := range seen {
			seen[i] = -1
		}
		for ea := range m.Edges {
			eg.query(edgeBoxes[ea], seen, ea, func(eb int) {
				// Deterministic order, no duplicates
				if eb <= ea {
					return
				}
				if edgesShareVertex(m.Edges[ea], m.Edges[eb]) {
					return
				}
				if edgeBoxes[ea].Overlaps(edgeBoxes[eb]) {
					out.EdgeEdges = append(out.EdgeEdges, EdgeEdge{EA: ea, EB: eb})
				}
			})
		}
	}

	sortCandidates(&out)
	return out
}

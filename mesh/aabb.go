package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Overlaps checks if two AABBs overlap
func (a AABB) Overlaps(other AABB) bool {
	// AABBs overlap if they overlap on all three axes
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// Union returns the smallest AABB enclosing both boxes.
func (a AABB) Union(other AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{
			math.Min(a.Min.X(), other.Min.X()),
			math.Min(a.Min.Y(), other.Min.Y()),
			math.Min(a.Min.Z(), other.Min.Z()),
		},
		Max: mgl64.Vec3{
			math.Max(a.Max.X(), other.Max.X()),
			math.Max(a.Max.Y(), other.Max.Y()),
			math.Max(a.Max.Z(), other.Max.Z()),
		},
	}
}

// Inflated grows the box by r on every side.
func (a AABB) Inflated(r float64) AABB {
	d := mgl64.Vec3{r, r, r}
	return AABB{Min: a.Min.Sub(d), Max: a.Max.Add(d)}
}

// MaxExtent returns the largest side length of the box.
func (a AABB) MaxExtent() float64 {
	d := a.Max.Sub(a.Min)
	return math.Max(d.X(), math.Max(d.Y(), d.Z()))
}

// FromPoints returns the tight AABB of a set of points.
func FromPoints(points ...mgl64.Vec3) AABB {
	box := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box = box.Union(AABB{Min: p, Max: p})
	}
	return box
}

// VertexAABB bounds the trajectory of vertex i between two surface snapshots,
// inflated by r. Passing the same snapshot twice bounds the static vertex.
func VertexAABB(v0, v1 []mgl64.Vec3, i int, r float64) AABB {
	return FromPoints(v0[i], v1[i]).Inflated(r)
}

// EdgeAABB bounds the trajectory of an edge between two surface snapshots.
func EdgeAABB(v0, v1 []mgl64.Vec3, e [2]int, r float64) AABB {
	return FromPoints(v0[e[0]], v0[e[1]], v1[e[0]], v1[e[1]]).Inflated(r)
}

// TriangleAABB bounds the trajectory of a face between two surface snapshots.
func TriangleAABB(v0, v1 []mgl64.Vec3, f [3]int, r float64) AABB {
	return FromPoints(v0[f[0]], v0[f[1]], v0[f[2]], v1[f[0]], v1[f[1]], v1[f[2]]).Inflated(r)
}

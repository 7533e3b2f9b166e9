package geom

import (
	"github.com/go-gl/mathgl/mgl64"
)

// rayEpsilon rejects determinants of segment/triangle systems that are too
// close to singular to classify reliably. Coplanar segments are treated as
// non-intersecting, which is the conservative choice for a failsafe check on
// surfaces that started out separated.
const rayEpsilon = 1e-14

// SegmentTriangleIntersects reports whether segment (p, q) crosses triangle
// (a, b, c). Möller–Trumbore restricted to the segment parameter range.
func SegmentTriangleIntersects(p, q, a, b, c mgl64.Vec3) bool {
	dir := q.Sub(p)
	e1 := b.Sub(a)
	e2 := c.Sub(a)

	h := dir.Cross(e2)
	det := e1.Dot(h)
	if det > -rayEpsilon && det < rayEpsilon {
		return false
	}
	inv := 1.0 / det

	s := p.Sub(a)
	u := inv * s.Dot(h)
	if u < 0 || u > 1 {
		return false
	}

	sxe1 := s.Cross(e1)
	v := inv * dir.Dot(sxe1)
	if v < 0 || u+v > 1 {
		return false
	}

	t := inv * e2.Dot(sxe1)
	return t >= 0 && t <= 1
}

// HasIntersections reports whether any edge of the surface crosses any face
// it does not share a vertex with. This is the static failsafe behind the
// step limiter's halving loop; it runs over all edge/face pairs, which is
// acceptable for a safety check that fires once per line search.
func HasIntersections(edges [][2]int, faces [][3]int, surface []mgl64.Vec3) bool {
	for _, e := range edges {
		for _, f := range faces {
			if edgeTouchesFace(e, f) {
				continue
			}
			if SegmentTriangleIntersects(surface[e[0]], surface[e[1]], surface[f[0]], surface[f[1]], surface[f[2]]) {
				return true
			}
		}
	}
	return false
}

func edgeTouchesFace(e [2]int, f [3]int) bool {
	for _, v := range f {
		if e[0] == v || e[1] == v {
			return true
		}
	}
	return false
}

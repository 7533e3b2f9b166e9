// Package geom provides the narrow-phase geometric primitives of the contact
// subsystem: squared-distance kernels with closest-point weights, the smooth
// barrier kernel and its derivatives, the adaptive-stiffness closed forms, and
// a static segment/triangle intersection predicate.
//
// All distance kernels work on squared distances. The barrier derivatives are
// therefore taken with respect to d², which keeps every gradient polynomial in
// the vertex positions.
package geom

import (
	"github.com/go-gl/mathgl/mgl64"
)

// segEpsilon guards against division by near-zero segment lengths in the
// degenerate branches of the segment-segment kernel.
const segEpsilon = 1e-30

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PointTriangleDistSq returns the squared distance between point p and
// triangle (a, b, c), together with the barycentric weights (u, v, w) of the
// closest point u*a + v*b + w*c. Degenerate query regions clamp to the nearest
// vertex or edge sub-feature.
//
// Region classification follows the standard closest-point decomposition of
// the triangle's Voronoi diagram.
func PointTriangleDistSq(p, a, b, c mgl64.Vec3) (dsq float64, w [3]float64) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		// Vertex region a
		return p.Sub(a).LenSqr(), [3]float64{1, 0, 0}
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		// Vertex region b
		return p.Sub(b).LenSqr(), [3]float64{0, 1, 0}
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		// Edge region ab
		t := d1 / (d1 - d3)
		closest := a.Add(ab.Mul(t))
		return p.Sub(closest).LenSqr(), [3]float64{1 - t, t, 0}
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		// Vertex region c
		return p.Sub(c).LenSqr(), [3]float64{0, 0, 1}
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		// Edge region ac
		t := d2 / (d2 - d6)
		closest := a.Add(ac.Mul(t))
		return p.Sub(closest).LenSqr(), [3]float64{1 - t, 0, t}
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		// Edge region bc
		t := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		closest := b.Add(c.Sub(b).Mul(t))
		return p.Sub(closest).LenSqr(), [3]float64{0, 1 - t, t}
	}

	// Interior region
	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	wc := vc * denom
	closest := a.Add(ab.Mul(v)).Add(ac.Mul(wc))
	return p.Sub(closest).LenSqr(), [3]float64{1 - v - wc, v, wc}
}

// EdgeEdgeDistSq returns the squared distance between segments (p1, q1) and
// (p2, q2) together with the closest-point parameters s on the first segment
// and t on the second, both clamped to [0, 1]. Degenerate (near zero length)
// segments collapse to their start point.
func EdgeEdgeDistSq(p1, q1, p2, q2 mgl64.Vec3) (dsq, s, t float64) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	switch {
	case a <= segEpsilon && e <= segEpsilon:
		s, t = 0, 0
	case a <= segEpsilon:
		s = 0
		t = clamp01(f / e)
	default:
		c := d1.Dot(r)
		if e <= segEpsilon {
			t = 0
			s = clamp01(-c / a)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom != 0 {
				s = clamp01((b*f - c*e) / denom)
			} else {
				// Parallel segments: any point on the overlap works
				s = 0
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clamp01(-c / a)
			} else if t > 1 {
				t = 1
				s = clamp01((b - c) / a)
			}
		}
	}

	c1 := p1.Add(d1.Mul(s))
	c2 := p2.Add(d2.Mul(t))
	return c1.Sub(c2).LenSqr(), s, t
}

package geom

import (
	"gonum.org/v1/gonum/mat"
)

// ProjectPSD replaces the symmetric matrix h with its nearest (Frobenius)
// symmetric positive semi-definite matrix by clamping negative eigenvalues to
// zero. Second-order solvers that assume a convex model require this on the
// per-constraint barrier Hessians, whose b′-weighted curvature term is
// indefinite near contact.
//
// A matrix that is already PSD is left untouched.
func ProjectPSD(h *mat.SymDense) {
	var eig mat.EigenSym
	if !eig.Factorize(h, true) {
		// Factorization failures only happen for non-finite input; leave
		// the matrix alone and let the solver surface the NaNs.
		return
	}

	vals := eig.Values(nil)
	negative := false
	for _, v := range vals {
		if v < 0 {
			negative = true
			break
		}
	}
	if !negative {
		return
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	n := h.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := 0.0
			for k := 0; k < n; k++ {
				if vals[k] <= 0 {
					continue
				}
				sum += vals[k] * vecs.At(i, k) * vecs.At(j, k)
			}
			h.SetSym(i, j, sum)
		}
	}
}

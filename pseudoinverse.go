package dsimpedance

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// pinvDamping is the Tikhonov damping factor applied to singular values when
// the damped pseudo-inverse is requested. Near a kinematic singularity the
// smallest singular values approach zero and an exact inverse would amplify
// noise without bound; damping caps the gain of the inverse at 1/(2λ).
const pinvDamping = 0.2

// PseudoInverse computes the Moore-Penrose pseudo-inverse of m through a full
// singular value decomposition. With damped set, each singular value σ is
// inverted as σ/(σ²+λ²) instead of 1/σ. Default usage throughout the
// controller is damped.
func PseudoInverse(m mat.Matrix, damped bool) (*mat.Dense, error) {
	lambda := 0.0
	if damped {
		lambda = pinvDamping
	}

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, errors.New("svd factorization failed")
	}

	rows, cols := m.Dims()
	sigma := svd.Values(nil)

	// Σ⁺ has the shape of mᵀ, with damped reciprocal singular values on the
	// diagonal.
	sigmaPlus := mat.NewDense(cols, rows, nil)
	for i, s := range sigma {
		if s == 0 && lambda == 0 {
			continue
		}
		sigmaPlus.Set(i, i, s/(s*s+lambda*lambda))
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	pinv := mat.NewDense(cols, rows, nil)
	var tmp mat.Dense
	tmp.Mul(&v, sigmaPlus)
	pinv.Mul(&tmp, u.T())
	return pinv, nil
}

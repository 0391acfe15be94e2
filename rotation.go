package dsimpedance

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Quaternions follow the gonum convention: Real is the scalar part, with
// Imag/Jmag/Kmag as the vector part. All rotation matrices are 3x3,
// orthonormal with determinant +1.

// smallAxisNorm is the threshold below which the vector part of a quaternion
// is considered a near-zero rotation and left unnormalized.
const smallAxisNorm = 1e-3

// QuatToRotationMatrix converts a unit quaternion to a 3x3 rotation matrix
// using the double-angle closed form. The caller guarantees near-unit norm.
func QuatToRotationMatrix(q quat.Number) *mat.Dense {
	q0, q1, q2, q3 := q.Real, q.Imag, q.Jmag, q.Kmag

	return mat.NewDense(3, 3, []float64{
		q0*q0 + q1*q1 - q2*q2 - q3*q3, 2 * (q1*q2 - q0*q3), 2 * (q1*q3 + q0*q2),
		2 * (q1*q2 + q0*q3), q0*q0 - q1*q1 + q2*q2 - q3*q3, 2 * (q2*q3 - q0*q1),
		2 * (q1*q3 - q0*q2), 2 * (q2*q3 + q0*q1), q0*q0 - q1*q1 - q2*q2 + q3*q3,
	})
}

// quatBranch tags which denominator the matrix-to-quaternion conversion
// divides by. Exactly one branch is active per call.
type quatBranch int

const (
	branchTrace quatBranch = iota // 1+r11+r22+r33 dominates
	branchX                      // 1+r11-r22-r33 dominates
	branchY                      // 1-r11+r22-r33 dominates
	branchZ                      // 1-r11-r22+r33 dominates
)

// selectQuatBranch picks the conversion branch with the largest denominator,
// avoiding division by a near-zero term.
func selectQuatBranch(tr, tr1, tr2, tr3 float64) quatBranch {
	switch {
	case tr > 0:
		return branchTrace
	case tr1 > tr2 && tr1 > tr3:
		return branchX
	case tr2 > tr1 && tr2 > tr3:
		return branchY
	default:
		return branchZ
	}
}

// RotationMatrixToQuaternion converts a rotation matrix to a unit quaternion.
// The result is defined up to sign (quaternion double cover).
func RotationMatrixToQuaternion(r mat.Matrix) quat.Number {
	r11, r12, r13 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	r21, r22, r23 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	r31, r32, r33 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	tr := r11 + r22 + r33
	tr1 := r11 - r22 - r33
	tr2 := -r11 + r22 - r33
	tr3 := -r11 - r22 + r33

	var q quat.Number
	switch selectQuatBranch(tr, tr1, tr2, tr3) {
	case branchTrace:
		q.Real = math.Sqrt(1+tr) / 2
		q.Imag = (r32 - r23) / (4 * q.Real)
		q.Jmag = (r13 - r31) / (4 * q.Real)
		q.Kmag = (r21 - r12) / (4 * q.Real)
	case branchX:
		q.Imag = math.Sqrt(1+tr1) / 2
		q.Real = (r32 - r23) / (4 * q.Imag)
		q.Jmag = (r21 + r12) / (4 * q.Imag)
		q.Kmag = (r31 + r13) / (4 * q.Imag)
	case branchY:
		q.Jmag = math.Sqrt(1+tr2) / 2
		q.Real = (r13 - r31) / (4 * q.Jmag)
		q.Imag = (r21 + r12) / (4 * q.Jmag)
		q.Kmag = (r32 + r23) / (4 * q.Jmag)
	case branchZ:
		q.Kmag = math.Sqrt(1+tr3) / 2
		q.Real = (r21 - r12) / (4 * q.Kmag)
		q.Imag = (r31 + r13) / (4 * q.Kmag)
		q.Jmag = (r32 + r23) / (4 * q.Kmag)
	}
	return q
}

// QuatToAxisAngle extracts the rotation axis and angle from a unit
// quaternion. The angle is 2*acos(scalar part), always in [0, 2π). When the
// vector part is below smallAxisNorm the unnormalized vector part is returned
// as the axis; its direction is meaningless but every component is finite.
func QuatToAxisAngle(q quat.Number) (r3.Vector, float64) {
	axis := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	if n := axis.Norm(); n >= smallAxisNorm {
		axis = axis.Mul(1 / n)
	}
	return axis, 2 * math.Acos(clamp(q.Real, -1, 1))
}

// NormalizeQuat scales q to unit norm. A zero quaternion is returned as is.
func NormalizeQuat(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return q
	}
	return quat.Scale(1/n, q)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

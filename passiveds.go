package dsimpedance

import (
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// minTargetSpeed is the target speed below which the damping basis from the
// previous update is retained instead of being rebuilt from a degenerate
// direction.
const minTargetSpeed = 1e-6

// PassiveDS is a first-order passive dissipative velocity law. It maps the
// error between a measured and a target linear velocity to a force through a
// damping matrix whose eigenbasis tracks the target direction: eigenvalue 0
// acts along the normalized target velocity, eigenvalues 1 and 2 along the
// orthogonal complement. With positive eigenvalues the law only removes
// kinetic energy from the system it drives.
//
// The law starts idle and emits a zero force until the first target is set;
// once active it never returns to idle. Eigenvalue reconfiguration may happen
// at any time from another goroutine and takes effect atomically before the
// next Update.
type PassiveDS struct {
	mu     sync.Mutex
	eig    [3]float64
	target r3.Vector
	basis  [3]r3.Vector
	active bool
}

// NewPassiveDS builds the law with the given damping eigenvalues.
func NewPassiveDS(eigenvalues [3]float64) (*PassiveDS, error) {
	ds := &PassiveDS{
		basis: [3]r3.Vector{{X: 1}, {Y: 1}, {Z: 1}},
	}
	if err := ds.SetEigenvalues(eigenvalues); err != nil {
		return nil, err
	}
	return ds, nil
}

// SetEigenvalues replaces the three damping eigenvalues. All must be
// strictly positive to preserve passivity.
func (ds *PassiveDS) SetEigenvalues(eigenvalues [3]float64) error {
	for i, ev := range eigenvalues {
		if ev <= 0 || math.IsNaN(ev) || math.IsInf(ev, 0) {
			return errors.Errorf("passive-ds eigenvalue %d must be positive, got %v", i, ev)
		}
	}
	ds.mu.Lock()
	ds.eig = eigenvalues
	ds.mu.Unlock()
	return nil
}

// SetTarget sets the desired linear velocity and activates the law.
func (ds *PassiveDS) SetTarget(v r3.Vector) {
	ds.mu.Lock()
	ds.target = v
	ds.active = true
	ds.mu.Unlock()
}

// Active reports whether a target has ever been set.
func (ds *PassiveDS) Active() bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.active
}

// Update computes the dissipative force for the measured velocity against the
// current target. Idle state yields a zero force.
func (ds *PassiveDS) Update(measured r3.Vector) r3.Vector {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.active {
		return r3.Vector{}
	}

	if speed := ds.target.Norm(); speed >= minTargetSpeed {
		ds.basis = orthonormalBasis(ds.target.Mul(1 / speed))
	}

	// force = -Σ λᵢ eᵢ eᵢᵀ (v - vd)
	err := measured.Sub(ds.target)
	var force r3.Vector
	for i, e := range ds.basis {
		force = force.Add(e.Mul(-ds.eig[i] * err.Dot(e)))
	}
	return force
}

// orthonormalBasis completes the unit vector e1 into a right-handed
// orthonormal basis via Gram-Schmidt against the world axis least aligned
// with it.
func orthonormalBasis(e1 r3.Vector) [3]r3.Vector {
	helper := r3.Vector{X: 1}
	if math.Abs(e1.Y) < math.Abs(e1.X) {
		helper = r3.Vector{Y: 1}
	}
	if math.Abs(e1.Z) < math.Abs(e1.X) && math.Abs(e1.Z) < math.Abs(e1.Y) {
		helper = r3.Vector{Z: 1}
	}
	e2 := helper.Sub(e1.Mul(helper.Dot(e1))).Normalize()
	e3 := e1.Cross(e2)
	return [3]r3.Vector{e1, e2, e3}
}

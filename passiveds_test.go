package dsimpedance

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestPassiveDSIdle(t *testing.T) {
	ds, err := NewPassiveDS([3]float64{1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}

	if ds.Active() {
		t.Fatal("law should start idle")
	}
	force := ds.Update(r3.Vector{X: 1, Y: -2, Z: 3})
	if force != (r3.Vector{}) {
		t.Fatalf("idle law produced force %v, want zero", force)
	}

	ds.SetTarget(r3.Vector{X: 0.1})
	if !ds.Active() {
		t.Fatal("law should be active after first target")
	}
}

func TestPassiveDSEigenvalueValidation(t *testing.T) {
	for _, eig := range [][3]float64{
		{0, 1, 1},
		{1, -2, 1},
		{1, 1, 0},
	} {
		if _, err := NewPassiveDS(eig); err == nil {
			t.Errorf("expected error for eigenvalues %v", eig)
		}
	}
}

func TestPassiveDSZeroForceAtTarget(t *testing.T) {
	targets := []r3.Vector{
		{X: 0.2},
		{X: 0.1, Y: -0.3, Z: 0.05},
		{},
	}
	eigs := [][3]float64{
		{1, 1, 1},
		{10, 2, 0.5},
		{0.01, 100, 3},
	}

	for _, eig := range eigs {
		ds, err := NewPassiveDS(eig)
		if err != nil {
			t.Fatal(err)
		}
		for _, target := range targets {
			ds.SetTarget(target)
			force := ds.Update(target)
			assert.InDelta(t, 0, force.Norm(), 1e-12,
				"eig %v target %v", eig, target)
		}
	}
}

func TestPassiveDSDissipative(t *testing.T) {
	ds, err := NewPassiveDS([3]float64{4, 1.5, 0.7})
	if err != nil {
		t.Fatal(err)
	}
	ds.SetTarget(r3.Vector{X: 0.3, Y: 0.1, Z: -0.2})

	measured := []r3.Vector{
		{X: 0.5, Y: 0.1, Z: -0.2},
		{X: -1, Y: 2, Z: 0.4},
		{X: 0.3, Y: 0.1, Z: 5},
		{X: 1e-4},
	}
	for _, v := range measured {
		force := ds.Update(v)
		err := v.Sub(r3.Vector{X: 0.3, Y: 0.1, Z: -0.2})
		if power := force.Dot(err); power > 1e-12 {
			t.Fatalf("law injected energy: F·(v-vd) = %v for v=%v", power, v)
		}
	}
}

func TestPassiveDSEigenbasisFollowsTarget(t *testing.T) {
	ds, err := NewPassiveDS([3]float64{5, 2, 2})
	if err != nil {
		t.Fatal(err)
	}

	// Target along x: eigenvalue 0 acts on x error, eigenvalue 1 on the
	// orthogonal complement.
	ds.SetTarget(r3.Vector{X: 0.5})

	force := ds.Update(r3.Vector{X: 0.7})
	assert.InDelta(t, -5*0.2, force.X, 1e-12)
	assert.InDelta(t, 0, force.Y, 1e-12)
	assert.InDelta(t, 0, force.Z, 1e-12)

	force = ds.Update(r3.Vector{X: 0.5, Y: 0.1, Z: -0.3})
	assert.InDelta(t, 0, force.X, 1e-12)
	assert.InDelta(t, -2*0.1, force.Y, 1e-12)
	assert.InDelta(t, 2*0.3, force.Z, 1e-12)
}

func TestPassiveDSReconfiguration(t *testing.T) {
	ds, err := NewPassiveDS([3]float64{1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	ds.SetTarget(r3.Vector{X: 1})

	if err := ds.SetEigenvalues([3]float64{8, 1, 1}); err != nil {
		t.Fatal(err)
	}
	force := ds.Update(r3.Vector{X: 1.5})
	assert.InDelta(t, -8*0.5, force.X, 1e-12)

	if err := ds.SetEigenvalues([3]float64{1, 0, 1}); err == nil {
		t.Fatal("expected rejection of a zero eigenvalue")
	}
	// Rejected update must leave the previous set in place.
	force = ds.Update(r3.Vector{X: 1.5})
	assert.InDelta(t, -8*0.5, force.X, 1e-12)
}

func TestPassiveDSZeroTargetKeepsBasis(t *testing.T) {
	ds, err := NewPassiveDS([3]float64{3, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	ds.SetTarget(r3.Vector{X: 1})
	ds.Update(r3.Vector{})

	// Dropping the target to zero keeps the last well-defined basis, so the
	// x direction still sees eigenvalue 0.
	ds.SetTarget(r3.Vector{})
	force := ds.Update(r3.Vector{X: 0.5})
	assert.InDelta(t, -3*0.5, force.X, 1e-12)
}

package dsimpedance

import (
	"path/filepath"
	"testing"

	"go.viam.com/rdk/logging"
)

func TestDefaultParameters(t *testing.T) {
	p := DefaultParameters()
	if err := p.Validate(); err != nil {
		t.Fatalf("default parameters invalid: %v", err)
	}
	if p.Eigenvalues != [3]float64{1, 1, 1} {
		t.Fatalf("unexpected default eigenvalues %v", p.Eigenvalues)
	}
	if p.UseNullSpace {
		t.Fatal("null space should default to disabled")
	}
}

func TestParametersValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Parameters)
	}{
		{"negative stiffness", func(p *Parameters) { p.RotationalStiffness = -1 }},
		{"negative damping", func(p *Parameters) { p.RotationalDamping = -0.1 }},
		{"negative posture gain", func(p *Parameters) { p.DesiredPostureGain = -2 }},
		{"zero eigenvalue", func(p *Parameters) { p.Eigenvalues[1] = 0 }},
		{"negative eigenvalue", func(p *Parameters) { p.Eigenvalues[2] = -5 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := DefaultParameters()
			c.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParametersFileRoundTrip(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("absolute path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gains.json")

		want := DefaultParameters()
		want.RotationalStiffness = 12.5
		want.UseNullSpace = true
		want.Eigenvalues = [3]float64{60, 40, 35}
		if err := SaveParametersToFile(path, want); err != nil {
			t.Fatal(err)
		}

		got, err := LoadParametersFromFile(path, logger)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("loaded %+v, want %+v", got, want)
		}
	})

	t.Run("relative path resolves against module data dir", func(t *testing.T) {
		t.Setenv("VIAM_MODULE_DATA", t.TempDir())

		want := DefaultParameters()
		want.JointLimitsGain = 0.7
		if err := SaveParametersToFile("gains.json", want); err != nil {
			t.Fatal(err)
		}
		got, err := LoadParametersFromFile("gains.json", logger)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("loaded %+v, want %+v", got, want)
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		if _, err := LoadParametersFromFile("/nonexistent/gains.json", logger); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid gains rejected on load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		bad := DefaultParameters()
		bad.Eigenvalues[0] = -3
		if err := SaveParametersToFile(path, bad); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadParametersFromFile(path, logger); err == nil {
			t.Fatal("expected validation failure")
		}
	})
}

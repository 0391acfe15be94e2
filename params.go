package dsimpedance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.viam.com/rdk/logging"
)

// Parameters holds every gain the control step reads. A full set is swapped
// in atomically by the configuration channel and consumed at the start of
// each tick.
type Parameters struct {
	RotationalStiffness float64 `json:"rotational_stiffness"`
	RotationalDamping   float64 `json:"rotational_damping"`

	// Null-space gains: joint-limit avoidance, preferred-posture attraction,
	// joint-velocity damping.
	JointLimitsGain     float64 `json:"joint_limits_gain"`
	DesiredPostureGain  float64 `json:"desired_posture_gain"`
	JointVelocitiesGain float64 `json:"joint_velocities_gain"`
	UseNullSpace        bool    `json:"use_null_space"`

	// Passive-DS damping eigenvalues. All three are independently settable.
	Eigenvalues [3]float64 `json:"eigenvalues"`
}

// DefaultParameters mirrors the controller's startup state: all gains zero,
// unit DS eigenvalues, null space disabled.
func DefaultParameters() Parameters {
	return Parameters{Eigenvalues: [3]float64{1, 1, 1}}
}

// Validate rejects gain sets the control law cannot use.
func (p Parameters) Validate() error {
	if p.RotationalStiffness < 0 {
		return fmt.Errorf("rotational_stiffness must be >= 0, got %v", p.RotationalStiffness)
	}
	if p.RotationalDamping < 0 {
		return fmt.Errorf("rotational_damping must be >= 0, got %v", p.RotationalDamping)
	}
	if p.JointLimitsGain < 0 || p.DesiredPostureGain < 0 || p.JointVelocitiesGain < 0 {
		return fmt.Errorf("null-space gains must be >= 0, got {%v %v %v}",
			p.JointLimitsGain, p.DesiredPostureGain, p.JointVelocitiesGain)
	}
	for i, ev := range p.Eigenvalues {
		if ev <= 0 {
			return fmt.Errorf("eigenvalue %d must be positive, got %v", i, ev)
		}
	}
	return nil
}

// resolveDataPath makes a relative path absolute against VIAM_MODULE_DATA,
// the per-module data directory provided by the platform.
func resolveDataPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp"
	}
	return filepath.Join(moduleDataDir, path)
}

// LoadParametersFromFile reads and validates a gains file. Falling back to
// defaults on a missing or broken file is the caller's choice.
func LoadParametersFromFile(path string, logger logging.Logger) (Parameters, error) {
	data, err := os.ReadFile(resolveDataPath(path))
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to read gains file: %w", err)
	}

	p := DefaultParameters()
	if err := json.Unmarshal(data, &p); err != nil {
		return Parameters{}, fmt.Errorf("failed to parse gains JSON: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Parameters{}, fmt.Errorf("gains validation failed: %w", err)
	}

	if logger != nil {
		logger.Infof("Loaded controller gains from %s", path)
	}
	return p, nil
}

// SaveParametersToFile writes a gains file next to where
// LoadParametersFromFile will find it.
func SaveParametersToFile(path string, p Parameters) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal gains: %w", err)
	}
	if err := os.WriteFile(resolveDataPath(path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write gains file: %w", err)
	}
	return nil
}

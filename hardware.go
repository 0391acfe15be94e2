package dsimpedance

import (
	"math"
	"sync"

	"github.com/pkg/errors"
)

// EffortJoints is the hardware joint interface the controller drives: read
// access to per-joint position/velocity and write access to commanded
// torques. Joint ordering is fixed at initialization and shared by every
// vector in this package.
type EffortJoints interface {
	DoF() int
	// State returns the current joint positions (rad) and velocities (rad/s).
	State() (positions, velocities []float64, err error)
	// SetTorques commands one torque (N·m) per joint.
	SetTorques(torques []float64) error
}

// Hardware bundles the joint interface with the kinematic model describing
// it. Host programs register hardware under a name before the component
// referencing it is constructed.
type Hardware struct {
	Joints EffortJoints
	Model  KinematicModel
}

var (
	hardwareMu       sync.RWMutex
	hardwareRegistry = map[string]Hardware{}
)

// RegisterHardware makes a hardware set available to controller configs under
// the given name. Registering the same name twice is an error.
func RegisterHardware(name string, hw Hardware) error {
	if hw.Joints == nil || hw.Model == nil {
		return errors.Errorf("hardware %q must provide both joints and a kinematic model", name)
	}
	if hw.Joints.DoF() != hw.Model.DoF() {
		return errors.Errorf("hardware %q joint count %d does not match model DoF %d",
			name, hw.Joints.DoF(), hw.Model.DoF())
	}
	hardwareMu.Lock()
	defer hardwareMu.Unlock()
	if _, exists := hardwareRegistry[name]; exists {
		return errors.Errorf("hardware %q already registered", name)
	}
	hardwareRegistry[name] = hw
	return nil
}

func lookupHardware(name string) (Hardware, bool) {
	hardwareMu.RLock()
	defer hardwareMu.RUnlock()
	hw, ok := hardwareRegistry[name]
	return hw, ok
}

// SimulatedArm is an in-process torque-driven robot: a chain of independent
// inertias with viscous friction, integrated explicitly. It backs the "sim"
// hardware name and the offline debug tool.
type SimulatedArm struct {
	mu         sync.Mutex
	positions  []float64
	velocities []float64
	torques    []float64
	inertia    float64
	friction   float64
}

// NewSimulatedArm builds an n-joint simulated robot at the given start
// posture (zeros when nil).
func NewSimulatedArm(n int, start []float64) (*SimulatedArm, error) {
	if n <= 0 {
		return nil, errors.Errorf("simulated arm needs at least one joint, got %d", n)
	}
	if start != nil && len(start) != n {
		return nil, errors.Errorf("start posture has %d joints, want %d", len(start), n)
	}
	a := &SimulatedArm{
		positions:  make([]float64, n),
		velocities: make([]float64, n),
		torques:    make([]float64, n),
		inertia:    1.0,
		friction:   0.5,
	}
	copy(a.positions, start)
	return a, nil
}

func (a *SimulatedArm) DoF() int { return len(a.positions) }

func (a *SimulatedArm) State() ([]float64, []float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos := make([]float64, len(a.positions))
	vel := make([]float64, len(a.velocities))
	copy(pos, a.positions)
	copy(vel, a.velocities)
	return pos, vel, nil
}

func (a *SimulatedArm) SetTorques(torques []float64) error {
	if len(torques) != len(a.torques) {
		return errors.Errorf("expected %d torques, got %d", len(a.torques), len(torques))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	copy(a.torques, torques)
	return nil
}

// Step advances the simulation by dt seconds under the last commanded
// torques.
func (a *SimulatedArm) Step(dt float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.positions {
		acc := (a.torques[i] - a.friction*a.velocities[i]) / a.inertia
		a.velocities[i] += acc * dt
		a.positions[i] += a.velocities[i] * dt
		if math.IsNaN(a.positions[i]) {
			a.positions[i] = 0
			a.velocities[i] = 0
		}
	}
}

// LastTorques returns a copy of the most recently commanded torques.
func (a *SimulatedArm) LastTorques() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]float64, len(a.torques))
	copy(out, a.torques)
	return out
}

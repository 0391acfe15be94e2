package dsimpedance

import "github.com/pkg/errors"

// JointLimits holds one symmetric effort bound per joint, loaded once at
// construction and immutable afterward.
type JointLimits []float64

// NewJointLimits validates the per-joint effort bounds.
func NewJointLimits(efforts []float64) (JointLimits, error) {
	if len(efforts) == 0 {
		return nil, errors.New("no joint effort limits provided")
	}
	for i, e := range efforts {
		if e <= 0 {
			return nil, errors.Errorf("effort limit for joint %d must be positive, got %v", i, e)
		}
	}
	limits := make(JointLimits, len(efforts))
	copy(limits, efforts)
	return limits, nil
}

// Enforce clamps each commanded torque into [-limit, +limit] in place.
// Out-of-range commands are clipped silently; this is a safety floor, not a
// reported fault.
func (l JointLimits) Enforce(torques []float64) {
	for i := range torques {
		if i >= len(l) {
			return
		}
		if torques[i] > l[i] {
			torques[i] = l[i]
		} else if torques[i] < -l[i] {
			torques[i] = -l[i]
		}
	}
}

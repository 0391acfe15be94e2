package dsimpedance

import (
	"math"
	"sync/atomic"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// CommandLength is the number of elements in a velocity command: desired
// linear velocity (3), desired angular velocity (3), desired orientation
// quaternion (4, scalar first).
const CommandLength = 10

// Command is one decoded velocity command.
type Command struct {
	LinearVelocity  r3.Vector
	AngularVelocity r3.Vector
	Orientation     quat.Number
}

// ParseCommand decodes and validates a raw command vector. The orientation
// quaternion is renormalized; a zero quaternion is rejected.
func ParseCommand(values []float64) (Command, error) {
	if len(values) != CommandLength {
		return Command{}, errors.Errorf("dimension of command (%d) is not correct, want %d", len(values), CommandLength)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Command{}, errors.Errorf("command element %d is not finite", i)
		}
	}
	q := quat.Number{Real: values[6], Imag: values[7], Jmag: values[8], Kmag: values[9]}
	if quat.Abs(q) == 0 {
		return Command{}, errors.New("command orientation quaternion has zero norm")
	}
	return Command{
		LinearVelocity:  r3.Vector{X: values[0], Y: values[1], Z: values[2]},
		AngularVelocity: r3.Vector{X: values[3], Y: values[4], Z: values[5]},
		Orientation:     NormalizeQuat(q),
	}, nil
}

// commandCell is the exchange point between the non-real-time command writer
// and the control loop. The writer publishes a fully-formed command; the
// reader observes either the previous or the new value in full, without
// blocking.
type commandCell struct {
	ptr atomic.Pointer[Command]
}

func (c *commandCell) store(cmd Command) {
	c.ptr.Store(&cmd)
}

// load returns the most recent command, or false while no command has been
// published yet.
func (c *commandCell) load() (Command, bool) {
	p := c.ptr.Load()
	if p == nil {
		return Command{}, false
	}
	return *p, true
}

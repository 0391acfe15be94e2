package dsimpedance

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// DefaultHomePosture is the preferred null-space posture for a 7-axis arm,
// in radians.
var DefaultHomePosture = []float64{0, 0.75, 0, -1.65, 0, 0.76, 0}

// DefaultEffortLimits are per-joint torque bounds for a KUKA iiwa 14, in N·m.
var DefaultEffortLimits = []float64{320, 320, 176, 176, 110, 40, 40}

// Controller renders a passive dissipative Cartesian impedance on a
// torque-controlled arm. A single control goroutine runs the tick logic on a
// fixed period; commands and gain updates arrive from other goroutines
// through lock-free atomic swaps and take effect on the next tick.
type Controller struct {
	logger logging.Logger
	joints EffortJoints
	model  KinematicModel
	limits JointLimits
	home   []float64
	n      int

	ds      *PassiveDS
	command commandCell
	params  atomic.Pointer[Parameters]

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	workers sync.WaitGroup
}

// NewController wires the control law to its collaborators. Construction
// fails fast on an empty joint set, a missing kinematic model, or unresolved
// effort limits; there is no partial activation.
func NewController(joints EffortJoints, model KinematicModel, limits JointLimits, home []float64, logger logging.Logger) (*Controller, error) {
	if joints == nil {
		return nil, errors.New("no joint interface provided")
	}
	if model == nil {
		return nil, errors.New("no kinematic model provided")
	}
	n := joints.DoF()
	if n == 0 {
		return nil, errors.New("list of joints is empty")
	}
	if model.DoF() != n {
		return nil, errors.Errorf("kinematic model has %d DoF but hardware has %d joints", model.DoF(), n)
	}
	if len(limits) != n {
		return nil, errors.Errorf("have effort limits for %d joints, need %d", len(limits), n)
	}
	if home == nil {
		if n == len(DefaultHomePosture) {
			home = DefaultHomePosture
		} else {
			home = make([]float64, n)
		}
	}
	if len(home) != n {
		return nil, errors.Errorf("home posture has %d joints, need %d", len(home), n)
	}

	p := DefaultParameters()
	ds, err := NewPassiveDS(p.Eigenvalues)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		logger: logger,
		joints: joints,
		model:  model,
		limits: limits,
		home:   append([]float64(nil), home...),
		n:      n,
		ds:     ds,
	}
	c.params.Store(&p)
	logger.Infof("impedance controller initialized with %d joints", n)
	return c, nil
}

// DoF returns the number of actuated joints.
func (c *Controller) DoF() int { return c.n }

// Active reports whether a valid command has ever been received. Before
// that, every tick emits zero torque.
func (c *Controller) Active() bool {
	_, ok := c.command.load()
	return ok
}

// Parameters returns the gain set the next tick will use.
func (c *Controller) Parameters() Parameters {
	return *c.params.Load()
}

// UpdateParameters swaps in a new gain set. The full set becomes visible to
// the control loop atomically, never mid-tick.
func (c *Controller) UpdateParameters(p Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := c.ds.SetEigenvalues(p.Eigenvalues); err != nil {
		return err
	}
	c.params.Store(&p)
	return nil
}

// SendCommand publishes a raw 10-element command. A malformed command is
// rejected with no state change; the previous command keeps driving the
// controller.
func (c *Controller) SendCommand(values []float64) error {
	cmd, err := ParseCommand(values)
	if err != nil {
		return err
	}
	wasActive := c.Active()
	c.command.store(cmd)
	if !wasActive {
		c.logger.Info("first command received, controller active")
	}
	return nil
}

// Tick executes one control step: read state, evaluate the impedance law,
// command clamped torques. Faults never escape a tick; any failure inside it
// defaults to commanding zero torque for every joint.
func (c *Controller) Tick() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("control tick panic: %v, commanding zero torque", r)
			c.commandZero()
		}
	}()

	cmd, ok := c.command.load()
	if !ok {
		c.commandZero()
		return
	}
	params := *c.params.Load()

	positions, velocities, err := c.joints.State()
	if err != nil {
		c.logger.Errorf("failed to read joint state: %v", err)
		c.commandZero()
		return
	}

	pose, err := c.model.EndEffector(positions)
	if err != nil {
		c.logger.Errorf("forward kinematics failed: %v", err)
		c.commandZero()
		return
	}
	jac, err := c.model.Jacobian(positions)
	if err != nil {
		c.logger.Errorf("jacobian query failed: %v", err)
		c.commandZero()
		return
	}

	// Measured Cartesian twist, angular rows on top.
	var twist mat.VecDense
	twist.MulVec(jac, mat.NewVecDense(c.n, velocities))
	omega := r3.Vector{X: twist.AtVec(0), Y: twist.AtVec(1), Z: twist.AtVec(2)}
	vel := r3.Vector{X: twist.AtVec(3), Y: twist.AtVec(4), Z: twist.AtVec(5)}

	// Linear force from the passive-DS law.
	c.ds.SetTarget(cmd.LinearVelocity)
	flin := c.ds.Update(vel)

	// Rotational restoring force from the orientation error Re = Rd·R⁻¹;
	// the inverse of a rotation is its transpose.
	r := QuatToRotationMatrix(pose.Orientation)
	rd := QuatToRotationMatrix(cmd.Orientation)
	var re mat.Dense
	re.Mul(rd, r.T())
	qe := RotationMatrixToQuaternion(&re)
	axis, _ := QuatToAxisAngle(qe)
	angle := 2 * math.Acos(clamp(qe.Real, -1, 1))
	frot := axis.Mul(params.RotationalStiffness * angle).
		Add(cmd.AngularVelocity.Sub(omega).Mul(params.RotationalDamping))

	wrench := mat.NewVecDense(6, []float64{frot.X, frot.Y, frot.Z, flin.X, flin.Y, flin.Z})

	var torques mat.VecDense
	torques.MulVec(jac.T(), wrench)

	if params.UseNullSpace {
		if ns, err := c.nullSpaceTorques(jac, positions, velocities, params); err != nil {
			c.logger.Warnf("skipping null-space torques: %v", err)
		} else {
			torques.AddVec(&torques, ns)
		}
	}

	out := make([]float64, c.n)
	for i := range out {
		out[i] = torques.AtVec(i)
	}
	c.limits.Enforce(out)
	if err := c.joints.SetTorques(out); err != nil {
		c.logger.Errorf("failed to command torques: %v", err)
	}
}

// nullSpaceTorques projects the posture bias into the null space of the
// task: N = I - Jᵀ·pinv(Jᵀ). The damped pseudo-inverse keeps the projection
// bounded at kinematic singularities.
func (c *Controller) nullSpaceTorques(jac *mat.Dense, positions, velocities []float64, params Parameters) (*mat.VecDense, error) {
	jacT := mat.DenseCopyOf(jac.T())
	pinv, err := PseudoInverse(jacT, true)
	if err != nil {
		return nil, err
	}

	var proj mat.Dense
	proj.Mul(jacT, pinv)
	nullProj := mat.NewDense(c.n, c.n, nil)
	for i := 0; i < c.n; i++ {
		nullProj.Set(i, i, 1)
	}
	nullProj.Sub(nullProj, &proj)

	secondary := make([]float64, c.n)
	for i := range secondary {
		secondary[i] = -params.JointLimitsGain*positions[i] -
			params.DesiredPostureGain*(positions[i]-c.home[i]) -
			params.JointVelocitiesGain*velocities[i]
	}

	var ns mat.VecDense
	ns.MulVec(nullProj, mat.NewVecDense(c.n, secondary))
	return &ns, nil
}

func (c *Controller) commandZero() {
	if err := c.joints.SetTorques(make([]float64, c.n)); err != nil {
		c.logger.Errorf("failed to command zero torques: %v", err)
	}
}

// Start runs the control loop at the given frequency until Stop or context
// cancellation. The loop never blocks on command or parameter writers; on
// shutdown it exits after completing its current tick.
func (c *Controller) Start(ctx context.Context, frequency float64) error {
	if frequency <= 0 || frequency > 1000 {
		return errors.Errorf("loop frequency must be in (0, 1000] Hz, got %v", frequency)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("control loop already running")
	}

	period := time.Duration(float64(time.Second) / frequency)
	c.stop = make(chan struct{})
	c.running = true
	c.logger.Infof("running impedance loop at %.1f Hz (period %v)", frequency, period)

	stop := c.stop
	c.workers.Add(1)
	utils.ManagedGo(func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Tick()
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}, c.workers.Done)
	return nil
}

// Stop halts the control loop and waits for the in-flight tick, if any, to
// finish. No tick is aborted mid-computation.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	close(c.stop)
	c.workers.Wait()
	c.running = false
	c.logger.Debug("impedance loop stopped")
}

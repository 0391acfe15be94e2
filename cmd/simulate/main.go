// Offline run of the impedance controller against the simulated robot.
// Useful for eyeballing torque profiles without a robot or a viam-server.
package main

import (
	"flag"
	"fmt"
	"os"

	dsimpedance "ds_impedance"

	"go.viam.com/rdk/logging"
)

func main() {
	frequency := flag.Float64("hz", 200, "control rate in Hz")
	duration := flag.Float64("seconds", 2.0, "simulated duration")
	stiffness := flag.Float64("stiffness", 5.0, "rotational stiffness")
	damping := flag.Float64("damping", 1.0, "rotational damping")
	nullspace := flag.Bool("nullspace", true, "enable null-space posture bias")
	flag.Parse()

	logger := logging.NewLogger("simulate")

	model, err := dsimpedance.NewEmbeddedIiwaModel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "model: %v\n", err)
		os.Exit(1)
	}
	arm, err := dsimpedance.NewSimulatedArm(model.DoF(), dsimpedance.DefaultHomePosture)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arm: %v\n", err)
		os.Exit(1)
	}
	limits, err := dsimpedance.NewJointLimits(dsimpedance.DefaultEffortLimits)
	if err != nil {
		fmt.Fprintf(os.Stderr, "limits: %v\n", err)
		os.Exit(1)
	}
	ctrl, err := dsimpedance.NewController(arm, model, limits, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "controller: %v\n", err)
		os.Exit(1)
	}

	params := dsimpedance.DefaultParameters()
	params.RotationalStiffness = *stiffness
	params.RotationalDamping = *damping
	params.UseNullSpace = *nullspace
	params.DesiredPostureGain = 2.0
	params.JointVelocitiesGain = 0.5
	params.Eigenvalues = [3]float64{60, 40, 40}
	if err := ctrl.UpdateParameters(params); err != nil {
		fmt.Fprintf(os.Stderr, "gains: %v\n", err)
		os.Exit(1)
	}

	// Drive the end effector at 5 cm/s along x while holding the identity
	// orientation.
	cmd := []float64{0.05, 0, 0, 0, 0, 0, 1, 0, 0, 0}
	if err := ctrl.SendCommand(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "command: %v\n", err)
		os.Exit(1)
	}

	dt := 1.0 / *frequency
	steps := int(*duration * *frequency)
	for i := 0; i < steps; i++ {
		ctrl.Tick()
		arm.Step(dt)
		if i%int(*frequency/10) == 0 {
			torques := arm.LastTorques()
			fmt.Printf("t=%6.3fs torques=", float64(i)*dt)
			for _, tau := range torques {
				fmt.Printf(" %7.3f", tau)
			}
			fmt.Println()
		}
	}
}

package dsimpedance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/utils"
)

// DSImpedanceModel is the modular resource model served by cmd/module.
var DSImpedanceModel = resource.NewModel("lasa", "controller", "ds-impedance")

func init() {
	resource.RegisterComponent(generic.API, DSImpedanceModel,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newDSImpedance,
		},
	)
}

// simHardwareName selects the built-in simulated robot when no hardware has
// been registered by the host program.
const simHardwareName = "sim"

// Config is the component configuration.
type Config struct {
	// Hardware names a registered hardware set; "sim" selects the built-in
	// simulated 7-joint robot.
	Hardware string `json:"hardware,omitempty"`

	// Frequency is the control loop rate in Hz.
	Frequency float64 `json:"frequency,omitempty"`

	// EffortLimits are per-joint symmetric torque bounds in N·m. Must match
	// the joint count of the selected hardware.
	EffortLimits []float64 `json:"effort_limits,omitempty"`

	// HomePosture is the preferred null-space joint configuration in
	// radians.
	HomePosture []float64 `json:"home_posture,omitempty"`

	// GainsFile points at a controller gains JSON file, resolved against
	// VIAM_MODULE_DATA when relative.
	GainsFile string `json:"gains_file,omitempty"`
}

// Validate ensures all parts of the config are valid and fills defaults.
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.Hardware == "" {
		cfg.Hardware = simHardwareName
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = 200
	}
	if cfg.Frequency < 0 || cfg.Frequency > 1000 {
		return nil, nil, fmt.Errorf("frequency must be in (0, 1000] Hz, got %v", cfg.Frequency)
	}
	if len(cfg.EffortLimits) == 0 {
		cfg.EffortLimits = DefaultEffortLimits
	}
	return nil, nil, nil
}

type dsImpedance struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger
	cfg    *Config

	ctrl *Controller
	sim  *SimulatedArm

	cancelCtx  context.Context
	cancelFunc func()
	workers    sync.WaitGroup
}

func newDSImpedance(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}
	return NewDSImpedance(ctx, rawConf.ResourceName(), conf, logger)
}

// NewDSImpedance builds the component and starts its control loop.
func NewDSImpedance(ctx context.Context, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())

	d := &dsImpedance{
		name:       name,
		logger:     logger,
		cfg:        conf,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}

	hw, ok := lookupHardware(conf.Hardware)
	if !ok {
		if conf.Hardware != simHardwareName {
			cancelFunc()
			return nil, fmt.Errorf("no hardware registered under %q", conf.Hardware)
		}
		model, err := NewEmbeddedIiwaModel()
		if err != nil {
			cancelFunc()
			return nil, fmt.Errorf("failed to load embedded kinematic model: %w", err)
		}
		sim, err := NewSimulatedArm(model.DoF(), conf.HomePosture)
		if err != nil {
			cancelFunc()
			return nil, err
		}
		d.sim = sim
		hw = Hardware{Joints: sim, Model: model}
	}

	limits, err := NewJointLimits(conf.EffortLimits)
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to resolve joint effort limits: %w", err)
	}

	ctrl, err := NewController(hw.Joints, hw.Model, limits, conf.HomePosture, logger)
	if err != nil {
		cancelFunc()
		return nil, err
	}
	d.ctrl = ctrl

	if conf.GainsFile != "" {
		params, err := LoadParametersFromFile(conf.GainsFile, logger)
		if err != nil {
			logger.Warnf("Failed to load gains from %s: %v, using defaults", conf.GainsFile, err)
		} else if err := ctrl.UpdateParameters(params); err != nil {
			cancelFunc()
			return nil, err
		}
	}

	if err := ctrl.Start(cancelCtx, conf.Frequency); err != nil {
		cancelFunc()
		return nil, err
	}

	if d.sim != nil {
		d.startSimStepper(conf.Frequency)
	}

	logger.Infof("ds-impedance controller serving hardware %q at %.0f Hz", conf.Hardware, conf.Frequency)
	return d, nil
}

// startSimStepper integrates the built-in simulated robot alongside the
// control loop.
func (d *dsImpedance) startSimStepper(frequency float64) {
	period := time.Duration(float64(time.Second) / frequency)
	d.workers.Add(1)
	utils.ManagedGo(func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.sim.Step(period.Seconds())
			case <-d.cancelCtx.Done():
				return
			}
		}
	}, d.workers.Done)
}

func (d *dsImpedance) Name() resource.Name {
	return d.name
}

func (d *dsImpedance) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "command":
		raw, ok := cmd["data"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("command requires a 'data' array of %d numbers", CommandLength)
		}
		values := make([]float64, 0, len(raw))
		for i, v := range raw {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("command element %d is not a number", i)
			}
			values = append(values, f)
		}
		if err := d.ctrl.SendCommand(values); err != nil {
			d.logger.Errorf("rejected command: %v", err)
			return nil, err
		}
		return map[string]interface{}{"accepted": true}, nil

	case "set_gains":
		// Merge the provided fields over the current gain set.
		params := d.ctrl.Parameters()
		data, err := json.Marshal(cmd["gains"])
		if err != nil {
			return nil, fmt.Errorf("set_gains requires a 'gains' object: %w", err)
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("failed to parse gains: %w", err)
		}
		if err := d.ctrl.UpdateParameters(params); err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true}, nil

	case "save_gains":
		path, ok := cmd["path"].(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("save_gains requires a 'path' string")
		}
		if err := SaveParametersToFile(path, d.ctrl.Parameters()); err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true}, nil

	case "status":
		return map[string]interface{}{
			"active": d.ctrl.Active(),
			"joints": d.ctrl.DoF(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown command: %v", cmd["command"])
	}
}

func (d *dsImpedance) Close(context.Context) error {
	d.logger.Info("Closing ds-impedance controller")
	d.ctrl.Stop()
	d.cancelFunc()
	d.workers.Wait()
	return nil
}

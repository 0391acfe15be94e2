package dsimpedance

import (
	"context"
	"testing"

	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

func TestConfigValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := &Config{}
		if _, _, err := cfg.Validate(""); err != nil {
			t.Fatal(err)
		}
		if cfg.Hardware != simHardwareName {
			t.Fatalf("expected sim hardware default, got %q", cfg.Hardware)
		}
		if cfg.Frequency != 200 {
			t.Fatalf("expected 200 Hz default, got %v", cfg.Frequency)
		}
		if len(cfg.EffortLimits) != len(DefaultEffortLimits) {
			t.Fatal("expected default effort limits")
		}
	})

	t.Run("rejects excessive frequency", func(t *testing.T) {
		cfg := &Config{Frequency: 5000}
		if _, _, err := cfg.Validate(""); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestComponentLifecycle(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	cfg := &Config{}
	if _, _, err := cfg.Validate(""); err != nil {
		t.Fatal(err)
	}

	res, err := NewDSImpedance(ctx, resource.NewName(generic.API, "controller"), cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := res.Close(ctx); err != nil {
			t.Fatal(err)
		}
	}()

	status, err := res.DoCommand(ctx, map[string]interface{}{"command": "status"})
	if err != nil {
		t.Fatal(err)
	}
	if status["active"] != false {
		t.Fatal("controller should start idle")
	}

	data := make([]interface{}, 0, CommandLength)
	for _, v := range []float64{0.05, 0, 0, 0, 0, 0, 1, 0, 0, 0} {
		data = append(data, v)
	}
	if _, err := res.DoCommand(ctx, map[string]interface{}{"command": "command", "data": data}); err != nil {
		t.Fatal(err)
	}

	status, err = res.DoCommand(ctx, map[string]interface{}{"command": "status"})
	if err != nil {
		t.Fatal(err)
	}
	if status["active"] != true {
		t.Fatal("controller should be active after a valid command")
	}

	t.Run("malformed command rejected", func(t *testing.T) {
		short := []interface{}{1.0, 2.0, 3.0}
		if _, err := res.DoCommand(ctx, map[string]interface{}{"command": "command", "data": short}); err == nil {
			t.Fatal("expected rejection")
		}
	})

	t.Run("gains update", func(t *testing.T) {
		gains := map[string]interface{}{
			"rotational_stiffness": 8.0,
			"use_null_space":       true,
		}
		if _, err := res.DoCommand(ctx, map[string]interface{}{"command": "set_gains", "gains": gains}); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("unknown verb", func(t *testing.T) {
		if _, err := res.DoCommand(ctx, map[string]interface{}{"command": "fly"}); err == nil {
			t.Fatal("expected error")
		}
	})
}

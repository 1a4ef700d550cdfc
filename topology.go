package duokit

import (
	"github.com/brutella/hap/accessory"
	"github.com/pkg/errors"
)

// CreateComponents resolves the persisted configuration into the
// component and accessory graph. The graph already holds the
// bridge-primary accessory at index 0; the resolver attaches services
// to it or appends bridged accessories.
//
// Dispatch is terminal per mode: a branch either wires its components
// or returns an error, it never falls through to another mode.
func CreateComponents(cfg *Config, reg *Registry, g *AccessoryGraph) error {
	mode, err := cfg.OperatingMode()
	if err != nil {
		return err
	}

	switch mode {
	case ModeRollerShutter:
		return createCoveringComponents(cfg, reg, g)
	case ModeGarageDoor:
		return createGarageComponents(cfg, reg, g)
	case ModeNormal:
		return createSwitchComponents(cfg, reg, g)
	}
	return errors.Wrapf(ErrConfigurationInconsistent, "unhandled operating mode %v", mode)
}

func createCoveringComponents(cfg *Config, reg *Registry, g *AccessoryGraph) error {
	wcCfg := cfg.WC1

	in1, _ := reg.FindInput(1)
	in2, _ := reg.FindInput(2)
	out1, _ := reg.FindOutput(1)
	out2, _ := reg.FindOutput(2)
	// metering is optional for the covering
	pm1, _ := reg.FindPowerMeter(1)
	pm2, _ := reg.FindPowerMeter(2)

	wc, err := NewWindowCovering(1, in1, in2, out1, out2, pm1, pm2, wcCfg)
	if err != nil {
		return err
	}
	if err := wc.Init(); err != nil {
		return err
	}
	wc.setPrimary(true)

	switch CoveringInMode(wcCfg.InMode) {
	case CoveringInSeparateMomentary, CoveringInSeparateToggle:
		// single accessory, covering is the bridge's primary service
		if err := g.Bridge().SetCategory(accessory.TypeWindowCovering); err != nil {
			return err
		}
		g.Bridge().AddService(wc.svc.S)

	case CoveringInSingle, CoveringInDetached:
		acc := NewBridgedAccessory(aidBaseWindowCovering+uint64(wc.Index), wcCfg.Name)
		acc.AddService(wc.svc.S)
		g.appendAccessory(acc)

		if CoveringInMode(wcCfg.InMode) == CoveringInDetached {
			if err := CreateInputService(1, cfg.IN1, reg, g); err != nil {
				return err
			}
			if err := CreateInputService(2, cfg.IN2, reg, g); err != nil {
				return err
			}
		} else if wcCfg.SwapInputs {
			if err := CreateInputService(1, cfg.IN1, reg, g); err != nil {
				return err
			}
		} else {
			if err := CreateInputService(2, cfg.IN2, reg, g); err != nil {
				return err
			}
		}

	default:
		return errors.Wrapf(ErrConfigurationInconsistent, "unknown covering input mode %d", wcCfg.InMode)
	}

	g.appendComponent(wc)
	return nil
}

func createGarageComponents(cfg *Config, reg *Registry, g *AccessoryGraph) error {
	in1, _ := reg.FindInput(1)
	in2, _ := reg.FindInput(2)
	out1, _ := reg.FindOutput(1)
	out2, _ := reg.FindOutput(2)

	gdo, err := NewGarageDoorOpener(1, in1, in2, out1, out2, cfg.GDO1)
	if err != nil {
		return err
	}
	if err := gdo.Init(); err != nil {
		return err
	}
	gdo.setPrimary(true)

	if err := g.Bridge().SetCategory(accessory.TypeGarageDoorOpener); err != nil {
		return err
	}
	g.Bridge().AddService(gdo.svc.S)
	g.appendComponent(gdo)
	return nil
}

func createSwitchComponents(cfg *Config, reg *Registry, g *AccessoryGraph) error {
	// Devices upgraded from the previous firmware generation keep the
	// old service layout so pairings stay intact: both switches on the
	// bridge accessory, enumerated in reverse. Detached input wiring on
	// either switch overrides it.
	legacy := cfg.LegacyHAPLayout &&
		SwitchInMode(cfg.SW1.InMode) != SwitchInDetached &&
		SwitchInMode(cfg.SW2.InMode) != SwitchInDetached

	if !legacy {
		if err := CreateSwitchService(1, cfg.SW1, cfg.IN1, reg, g, false); err != nil {
			return err
		}
		return CreateSwitchService(2, cfg.SW2, cfg.IN2, reg, g, false)
	}

	if err := g.Bridge().SetCategory(accessory.TypeSwitch); err != nil {
		return err
	}
	if err := CreateSwitchService(2, cfg.SW2, cfg.IN2, reg, g, true); err != nil {
		return err
	}
	if err := CreateSwitchService(1, cfg.SW1, cfg.IN1, reg, g, true); err != nil {
		return err
	}
	g.reverseComponents()
	return nil
}

package duokit

import (
	"github.com/brutella/hap/service"
	"github.com/pkg/errors"

	"github.com/duokit/duokit/drivers"
)

// RelaySwitch binds one relay output and, unless detached, one wall
// switch input to an exposed switch service.
type RelaySwitch struct {
	component

	Index int

	cfg *SwitchConfig
	in  *Input
	out *Output
	pm  *PowerMeter

	svc *service.Switch

	lastInState bool
	haveInState bool
}

// NewRelaySwitch keeps non-owning references only; the registry owns
// the peripherals. The input and meter may be nil.
func NewRelaySwitch(index int, cfg *SwitchConfig, in *Input, out *Output, pm *PowerMeter) (*RelaySwitch, error) {
	if out == nil {
		return nil, errors.Wrapf(ErrConfigurationInconsistent, "switch %d has no output", index)
	}
	return &RelaySwitch{
		component: component{name: cfg.Name},
		Index:     index,
		cfg:       cfg,
		in:        in,
		out:       out,
		pm:        pm,
	}, nil
}

func (rs *RelaySwitch) Init() error {
	err := rs.out.Set(rs.cfg.InitialOn)
	if err != nil {
		return errors.Wrapf(ErrInitializationFailed, "switch %d: %v", rs.Index, err)
	}

	rs.svc = service.NewSwitch()
	rs.svc.On.SetValue(rs.cfg.InitialOn)
	rs.svc.On.OnValueRemoteUpdate(func(on bool) {
		rs.out.Set(on)
	})

	if rs.in != nil && SwitchInMode(rs.cfg.InMode) == SwitchInMomentary {
		rs.in.AddHandler(func(event drivers.PushEvent) {
			if event == drivers.PushEventSinglePress {
				rs.toggle()
			}
		})
	}

	return nil
}

// SetOn drives the relay and the exposed state together.
func (rs *RelaySwitch) SetOn(on bool) {
	rs.out.Set(on)
	rs.svc.On.SetValue(on)
}

func (rs *RelaySwitch) toggle() {
	on, err := rs.out.GetState()
	if err != nil {
		return
	}
	rs.out.Set(!on)
	rs.svc.On.SetValue(!on)
}

// Sync follows the wall input in toggle and edge wiring and refreshes
// the exposed state.
func (rs *RelaySwitch) Sync() error {
	mode := SwitchInMode(rs.cfg.InMode)
	if rs.in != nil && (mode == SwitchInToggle || mode == SwitchInEdge) {
		inState, err := rs.in.GetState()
		if err == nil {
			if rs.haveInState && inState != rs.lastInState {
				if mode == SwitchInToggle {
					rs.out.Set(inState)
				} else {
					rs.toggle()
				}
			}
			rs.lastInState = inState
			rs.haveInState = true
		}
	}

	on, err := rs.out.GetState()
	if err != nil {
		return errors.Wrapf(err, "switch %d sync failed", rs.Index)
	}
	rs.svc.On.SetValue(on)
	return nil
}

func (rs *RelaySwitch) Service() *service.Switch {
	return rs.svc
}

// PowerW reports the measured active power, zero without metering.
func (rs *RelaySwitch) PowerW() float64 {
	if rs.pm == nil {
		return 0
	}
	w, err := rs.pm.PowerW()
	if err != nil {
		return 0
	}
	return w
}

// CreateSwitchService constructs the relay switch for the given index
// and wires it into the graph: onto the bridge-primary accessory when
// toPriAcc is set, otherwise onto its own bridged accessory. A switch
// with detached input wiring additionally exposes that input as a
// separate accessory.
//
// Appends only; never removes existing entries. Switch 1 is the
// device's primary service in normal mode.
func CreateSwitchService(index int, swCfg *SwitchConfig, inCfg *InputConfig, reg *Registry, g *AccessoryGraph, toPriAcc bool) error {
	out, err := reg.FindOutput(index)
	if err != nil {
		return errors.Wrapf(ErrConfigurationInconsistent, "switch %d: %v", index, err)
	}

	detached := SwitchInMode(swCfg.InMode) == SwitchInDetached

	var in *Input
	if !detached {
		in, _ = reg.FindInput(index)
	}
	pm, _ := reg.FindPowerMeter(index)

	rs, err := NewRelaySwitch(index, swCfg, in, out, pm)
	if err != nil {
		return err
	}
	if err := rs.Init(); err != nil {
		return err
	}
	rs.setPrimary(index == 1)

	if toPriAcc {
		g.Bridge().AddService(rs.svc.S)
	} else {
		acc := NewBridgedAccessory(aidBaseSwitch+uint64(index), swCfg.Name)
		acc.AddService(rs.svc.S)
		g.appendAccessory(acc)
	}
	g.appendComponent(rs)

	if detached {
		return CreateInputService(index, inCfg, reg, g)
	}
	return nil
}

package duokit

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"

	"github.com/duokit/duokit/drivers"
)

// Pin map for the dual relay hardware variant. Fixed at compile time.
const (
	pinOutput1 = 4
	pinOutput2 = 15
	pinInput1  = 13
	pinInput2  = 5

	tempChannel = 0
)

// The long-hold reset sequence on input 1 is only allowed to act on
// output 1.
const resetOutputIndex = 1
const resetPulseTime = 200 * time.Millisecond

// DeviceIoSpecs returns the driver setup for this hardware variant.
// Outputs idle de-energized.
func DeviceIoSpecs() (inputs []drivers.InputSpec, outputs []drivers.OutputSpec) {
	outputs = []drivers.OutputSpec{
		{Pin: pinOutput1, IdleOn: false},
		{Pin: pinOutput2, IdleOn: false},
	}
	inputs = []drivers.InputSpec{
		{Pin: pinInput1, Pull: drivers.PullNone},
		{Pin: pinInput2, Pull: drivers.PullNone},
	}
	return
}

// PeripheralFactory builds the fixed peripheral set for the hardware
// variant, once per device session. The two phase API makes the
// output-before-input constraint structural: CreateInputs refuses to
// run before CreateOutputs finished.
type PeripheralFactory struct {
	driver drivers.IoDriver
	analog drivers.AnalogReader
	bus    i2c.Bus
	power  PowerSubsystem
	logger *log.Logger

	factoryReset func() error

	outputsDone bool
	created     bool
}

func NewPeripheralFactory(driver drivers.IoDriver, analog drivers.AnalogReader, bus i2c.Bus, logger *log.Logger) *PeripheralFactory {
	if logger == nil {
		logger = log.Default()
	}
	return &PeripheralFactory{
		driver: driver,
		analog: analog,
		bus:    bus,
		logger: logger,
	}
}

// SetFactoryReset installs the action run when the reset sequence on
// input 1 fires. Must be called before CreateInputs.
func (pf *PeripheralFactory) SetFactoryReset(reset func() error) {
	pf.factoryReset = reset
}

// CreateOutputs constructs both relay outputs in ascending index order,
// each driven to its idle level.
func (pf *PeripheralFactory) CreateOutputs(reg *Registry) error {
	specs := []struct {
		index int
		pin   uint16
	}{
		{1, pinOutput1},
		{2, pinOutput2},
	}

	for _, spec := range specs {
		out := NewOutput(spec.index, spec.pin, false, false)
		if err := out.Init(pf.driver); err != nil {
			return err
		}
		reg.addOutput(out)
	}

	pf.outputsDone = true
	return nil
}

// CreateInputs constructs both inputs, binds the reset sequence to
// input 1, and arms each input. Outputs must exist first; arming an
// input while the relay bank is unconfigured pulses a relay.
func (pf *PeripheralFactory) CreateInputs(reg *Registry) error {
	if !pf.outputsDone {
		return errors.Wrap(ErrInitializationFailed, "inputs cannot be created before outputs")
	}

	in1 := NewInput(1, pinInput1, false, drivers.PullNone, true)
	pf.bindResetSequence(in1, resetOutputIndex, reg)
	if err := in1.Init(pf.driver); err != nil {
		return err
	}
	reg.addInput(in1)

	in2 := NewInput(2, pinInput2, false, drivers.PullNone, true)
	if err := in2.Init(pf.driver); err != nil {
		return err
	}
	reg.addInput(in2)

	return nil
}

// bindResetSequence attaches the long-hold factory reset to an input,
// parameterized by the single output index it may pulse.
func (pf *PeripheralFactory) bindResetSequence(in *Input, outIndex int, reg *Registry) {
	in.AddHandler(func(event drivers.PushEvent) {
		if event != drivers.PushEventLongPress {
			return
		}
		pf.logger.Warn("reset sequence triggered", "input", in.Index)

		out, err := reg.FindOutput(outIndex)
		if err == nil {
			out.Pulse(resetPulseTime)
		}
		if pf.factoryReset != nil {
			err = pf.factoryReset()
			if err != nil {
				pf.logger.Error("factory reset failed", "err", err)
			}
		}
	})
}

// CreatePeripherals runs the whole bring-up: outputs, inputs, power
// metering, temperature sensor. Metering failure is returned in the
// status, not as an error; the device works without it.
func (pf *PeripheralFactory) CreatePeripherals(reg *Registry) (MeteringStatus, error) {
	if pf.created {
		return MeteringUnknown, errors.Wrap(ErrInitializationFailed, "peripherals already created for this session")
	}
	pf.created = true

	if err := pf.CreateOutputs(reg); err != nil {
		return MeteringUnknown, err
	}
	if err := pf.CreateInputs(reg); err != nil {
		return MeteringUnknown, err
	}

	err := pf.power.BringUp(pf.bus, reg)
	if err != nil {
		pf.logger.Error("power metering unavailable, continuing without it", "err", err)
	}

	reg.setTempSensor(NewTempSensorNTC(0, tempChannel, pf.analog))

	status, _ := pf.power.Status()
	return status, nil
}

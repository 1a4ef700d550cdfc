package duokit

import (
	"time"

	"github.com/pkg/errors"

	"github.com/duokit/duokit/drivers"
)

// Output is one relay output of the device. Topology is immutable after
// construction; only the drive level changes.
type Output struct {
	Index  int
	Pin    uint16
	Invert bool
	IdleOn bool

	dout drivers.DigitalOutput
}

func NewOutput(index int, pin uint16, invert bool, idleOn bool) *Output {
	return &Output{
		Index:  index,
		Pin:    pin,
		Invert: invert,
		IdleOn: idleOn,
	}
}

// Init binds the output to the driver and drives it to the idle level.
func (out *Output) Init(driver drivers.IoDriver) error {
	if !driver.IsReady() {
		return errors.Wrapf(ErrInitializationFailed, "output %d: driver %s not ready", out.Index, driver)
	}

	dout, err := driver.GetOutput(out.Pin)
	if err != nil {
		return errors.Wrapf(err, "output %d init failed", out.Index)
	}
	out.dout = dout

	return errors.Wrapf(dout.Set(out.IdleOn), "output %d idle set failed", out.Index)
}

func (out *Output) Set(on bool) error {
	if out.dout == nil {
		return errors.Wrapf(ErrInitializationFailed, "output %d not initialized", out.Index)
	}
	return out.dout.Set(on)
}

func (out *Output) GetState() (bool, error) {
	if out.dout == nil {
		return false, errors.Wrapf(ErrInitializationFailed, "output %d not initialized", out.Index)
	}
	return out.dout.GetState()
}

// Pulse drives the output active for the given duration and returns it
// to idle.
func (out *Output) Pulse(d time.Duration) error {
	err := out.Set(!out.IdleOn)
	if err != nil {
		return err
	}
	time.AfterFunc(d, func() {
		out.Set(out.IdleOn)
	})
	return nil
}

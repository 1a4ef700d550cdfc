package duokit

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"

	"github.com/duokit/duokit/drivers"
)

// MeteringStatus tells whether power metering came up. It is the
// explicit result of bring-up, so callers do not have to grep logs.
type MeteringStatus int

const (
	MeteringUnknown MeteringStatus = iota
	MeteringActive
	MeteringUnavailable
)

func (ms MeteringStatus) String() string {
	switch ms {
	case MeteringActive:
		return "active"
	case MeteringUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Board calibration for the dual relay variant's ADE7953.
var meterCalibration = drivers.ADE7953Config{
	VoltageScale:  0.0000382602,
	VoltageOffset: -0.068,
	CurrentScale:  [2]float64{0.00000949523, 0.00000949523},
	CurrentOffset: [2]float64{-0.017, -0.017},
	APowerScale:   [2]float64{1 / 164.0, 1 / 164.0},
	AEnergyScale:  [2]float64{1 / 25240.0, 1 / 25240.0},
}

// PowerMeter reads one channel of the shared energy monitor chip. The
// chip handle is owned by the PowerSubsystem and outlives every meter.
type PowerMeter struct {
	Index int

	channel int
	chip    *drivers.ADE7953
}

func NewPowerMeter(index int, chip *drivers.ADE7953, channel int) *PowerMeter {
	return &PowerMeter{Index: index, chip: chip, channel: channel}
}

// Init probes the channel once so a dead chip is caught during bring-up
// instead of on the first telemetry tick.
func (pm *PowerMeter) Init() error {
	_, err := pm.chip.ActivePower(pm.channel)
	return errors.Wrapf(err, "power meter %d init probe failed", pm.Index)
}

func (pm *PowerMeter) PowerW() (float64, error) {
	return pm.chip.ActivePower(pm.channel)
}

func (pm *PowerMeter) EnergyWh() (float64, error) {
	return pm.chip.ActiveEnergy(pm.channel)
}

func (pm *PowerMeter) VoltageV() (float64, error) {
	return pm.chip.VoltageRMS()
}

func (pm *PowerMeter) CurrentA() (float64, error) {
	return pm.chip.CurrentRMS(pm.channel)
}

// PowerSubsystem owns the one process-wide ADE7953 handle.
type PowerSubsystem struct {
	chip    *drivers.ADE7953
	brought bool
	status  MeteringStatus
	cause   error
}

// Status returns the bring-up outcome, and the cause when degraded.
func (ps *PowerSubsystem) Status() (MeteringStatus, error) {
	return ps.status, ps.cause
}

// BringUp creates the chip handle once and registers exactly two power
// meters, one per hardware channel. If the chip cannot be created, or
// either meter fails its init, no meter is registered at all.
//
// Safe to call at most once per session; a second call is an error.
func (ps *PowerSubsystem) BringUp(bus i2c.Bus, reg *Registry) error {
	if ps.brought {
		return errors.Wrap(ErrInitializationFailed, "power subsystem bring-up called twice")
	}
	ps.brought = true

	err := ps.bringUp(bus, reg)
	if err != nil {
		reg.dropPowerMeters()
		ps.status = MeteringUnavailable
		ps.cause = err
		return err
	}

	ps.status = MeteringActive
	return nil
}

func (ps *PowerSubsystem) bringUp(bus i2c.Bus, reg *Registry) error {
	if bus == nil {
		return errors.Wrap(ErrUnavailable, "no i2c bus for energy monitor")
	}

	chip, err := drivers.NewADE7953(bus, meterCalibration)
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "failed to init ADE7953: %v", err)
	}
	ps.chip = chip

	// relay 1 measures on ade channel 1, relay 2 on channel 0
	pm1 := NewPowerMeter(1, chip, 1)
	if err := pm1.Init(); err != nil {
		return err
	}
	reg.addPowerMeter(pm1)

	pm2 := NewPowerMeter(2, chip, 0)
	if err := pm2.Init(); err != nil {
		return err
	}
	reg.addPowerMeter(pm2)

	return nil
}

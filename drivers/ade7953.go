package drivers

import (
	"math"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
)

const ade7953Addr = 0x38

// ADE7953 register map, the subset this driver touches.
const (
	adeRegLcycmode = 0x004 // 8 bit
	adeRegConfig   = 0x102 // 16 bit
	adeRegUnlock   = 0x0FE // 8 bit
	adeRegOptimum  = 0x120 // 16 bit, magic per datasheet
	adeRegAwatt    = 0x312 // 24 bit signed
	adeRegBwatt    = 0x313
	adeRegIrmsa    = 0x31A // 24 bit unsigned
	adeRegIrmsb    = 0x31B
	adeRegVrms     = 0x31C
	adeRegAenergya = 0x31E // 24 bit signed, reset on read
	adeRegAenergyb = 0x31F
)

const adeUnlockKey = 0xAD
const adeOptimumSetting = 0x0030
const adeLcycmodeRstRead = 0x40

// ADE7953Config holds board calibration constants. These are fixed per
// hardware variant, not user configurable.
type ADE7953Config struct {
	VoltageScale  float64
	VoltageOffset float64
	CurrentScale  [2]float64
	CurrentOffset [2]float64
	APowerScale   [2]float64
	AEnergyScale  [2]float64
}

// ADE7953 is a two channel energy monitor on the i2c bus. A single
// handle is shared by all meters derived from it.
type ADE7953 struct {
	dev i2c.Dev
	cfg ADE7953Config
}

// NewADE7953 opens the chip and applies the power-up sequence: unlock,
// datasheet optimum settings, energy read-with-reset.
func NewADE7953(bus i2c.Bus, cfg ADE7953Config) (*ADE7953, error) {
	a := &ADE7953{
		dev: i2c.Dev{Bus: bus, Addr: ade7953Addr},
		cfg: cfg,
	}

	if err := a.writeReg(adeRegUnlock, 1, adeUnlockKey); err != nil {
		return nil, errors.Wrap(err, "ade7953 unlock failed")
	}
	if err := a.writeReg(adeRegOptimum, 2, adeOptimumSetting); err != nil {
		return nil, errors.Wrap(err, "ade7953 optimum settings write failed")
	}
	lcyc, err := a.readReg(adeRegLcycmode, 1, false)
	if err != nil {
		return nil, errors.Wrap(err, "ade7953 lcycmode read failed")
	}
	if err := a.writeReg(adeRegLcycmode, 1, uint32(lcyc)|adeLcycmodeRstRead); err != nil {
		return nil, errors.Wrap(err, "ade7953 lcycmode write failed")
	}

	return a, nil
}

func (a *ADE7953) writeReg(reg uint16, size int, val uint32) error {
	buf := make([]byte, 2+size)
	buf[0] = byte(reg >> 8)
	buf[1] = byte(reg)
	for i := 0; i < size; i++ {
		buf[2+i] = byte(val >> (8 * (size - 1 - i)))
	}
	return a.dev.Tx(buf, nil)
}

func (a *ADE7953) readReg(reg uint16, size int, signed bool) (int64, error) {
	w := []byte{byte(reg >> 8), byte(reg)}
	r := make([]byte, size)
	if err := a.dev.Tx(w, r); err != nil {
		return 0, err
	}
	var val int64
	for _, b := range r {
		val = val<<8 | int64(b)
	}
	if signed {
		bits := uint(8 * size)
		if val >= 1<<(bits-1) {
			val -= 1 << bits
		}
	}
	return val, nil
}

func (a *ADE7953) checkChannel(channel int) error {
	if channel < 0 || channel > 1 {
		return errors.Errorf("ade7953 has channels 0 and 1, got %d", channel)
	}
	return nil
}

// VoltageRMS returns the mains voltage in volts. Both channels share
// one voltage input.
func (a *ADE7953) VoltageRMS() (float64, error) {
	raw, err := a.readReg(adeRegVrms, 3, false)
	if err != nil {
		return 0, errors.Wrap(err, "ade7953 vrms read failed")
	}
	return float64(raw)*a.cfg.VoltageScale + a.cfg.VoltageOffset, nil
}

// CurrentRMS returns channel current in amps.
func (a *ADE7953) CurrentRMS(channel int) (float64, error) {
	if err := a.checkChannel(channel); err != nil {
		return 0, err
	}
	reg := uint16(adeRegIrmsa)
	if channel == 1 {
		reg = adeRegIrmsb
	}
	raw, err := a.readReg(reg, 3, false)
	if err != nil {
		return 0, errors.Wrapf(err, "ade7953 irms read failed (channel %d)", channel)
	}
	amps := float64(raw)*a.cfg.CurrentScale[channel] + a.cfg.CurrentOffset[channel]
	return math.Max(amps, 0), nil
}

// ActivePower returns channel active power in watts.
func (a *ADE7953) ActivePower(channel int) (float64, error) {
	if err := a.checkChannel(channel); err != nil {
		return 0, err
	}
	reg := uint16(adeRegAwatt)
	if channel == 1 {
		reg = adeRegBwatt
	}
	raw, err := a.readReg(reg, 3, true)
	if err != nil {
		return 0, errors.Wrapf(err, "ade7953 awatt read failed (channel %d)", channel)
	}
	return math.Abs(float64(raw)) * a.cfg.APowerScale[channel], nil
}

// ActiveEnergy returns the energy in watt hours accumulated since the
// previous call. The register resets on read.
func (a *ADE7953) ActiveEnergy(channel int) (float64, error) {
	if err := a.checkChannel(channel); err != nil {
		return 0, err
	}
	reg := uint16(adeRegAenergya)
	if channel == 1 {
		reg = adeRegAenergyb
	}
	raw, err := a.readReg(reg, 3, true)
	if err != nil {
		return 0, errors.Wrapf(err, "ade7953 aenergy read failed (channel %d)", channel)
	}
	return math.Abs(float64(raw)) * a.cfg.AEnergyScale[channel], nil
}

package duokit

import (
	"time"

	"github.com/pkg/errors"
)

// OperatingMode selects the device topology. Persisted as an integer;
// unknown values are a decode error, there is no implicit fallback.
type OperatingMode int

const (
	ModeNormal        OperatingMode = 0
	ModeRollerShutter OperatingMode = 1
	ModeGarageDoor    OperatingMode = 2
)

func (m OperatingMode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeRollerShutter:
		return "roller-shutter"
	case ModeGarageDoor:
		return "garage-door"
	}
	return "unknown"
}

// CoveringInMode is the window covering input wiring sub-mode.
type CoveringInMode int

const (
	CoveringInSeparateMomentary CoveringInMode = 0
	CoveringInSeparateToggle    CoveringInMode = 1
	CoveringInSingle            CoveringInMode = 2
	CoveringInDetached          CoveringInMode = 3
)

// SwitchInMode is the per-switch input wiring sub-mode.
type SwitchInMode int

const (
	SwitchInMomentary SwitchInMode = 0
	SwitchInToggle    SwitchInMode = 1
	SwitchInEdge      SwitchInMode = 2
	SwitchInDetached  SwitchInMode = 3
)

type SwitchConfig struct {
	Name      string
	InMode    int
	InitialOn bool
}

type InputConfig struct {
	Name string
}

type CoveringConfig struct {
	Name       string
	InMode     int
	SwapInputs bool
	MoveTime   string
}

type GarageConfig struct {
	Name      string
	PulseTime string
	MoveTime  string
}

// Config is the persisted device configuration record. It is read only
// for the topology resolver; defaults are filled in once after load.
type Config struct {
	Mode            int
	LegacyHAPLayout bool

	SW1  *SwitchConfig
	SW2  *SwitchConfig
	IN1  *InputConfig
	IN2  *InputConfig
	WC1  *CoveringConfig
	GDO1 *GarageConfig
}

// FillDefaults replaces missing sections so accessors never return nil.
func (c *Config) FillDefaults() {
	if c.SW1 == nil {
		c.SW1 = &SwitchConfig{Name: "Switch 1"}
	}
	if c.SW2 == nil {
		c.SW2 = &SwitchConfig{Name: "Switch 2"}
	}
	if c.IN1 == nil {
		c.IN1 = &InputConfig{Name: "Input 1"}
	}
	if c.IN2 == nil {
		c.IN2 = &InputConfig{Name: "Input 2"}
	}
	if c.WC1 == nil {
		c.WC1 = &CoveringConfig{Name: "Covering 1"}
	}
	if c.GDO1 == nil {
		c.GDO1 = &GarageConfig{Name: "Garage Door"}
	}
}

// OperatingMode decodes the persisted mode integer.
func (c *Config) OperatingMode() (OperatingMode, error) {
	switch OperatingMode(c.Mode) {
	case ModeNormal, ModeRollerShutter, ModeGarageDoor:
		return OperatingMode(c.Mode), nil
	}
	return 0, errors.Wrapf(ErrConfigurationInconsistent, "unknown operating mode %d", c.Mode)
}

func (c *Config) switchConfig(index int) *SwitchConfig {
	if index == 1 {
		return c.SW1
	}
	return c.SW2
}

func (c *Config) inputConfig(index int) *InputConfig {
	if index == 1 {
		return c.IN1
	}
	return c.IN2
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

package duokit

import (
	"time"

	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	"github.com/pkg/errors"
)

const defaultGaragePulseTime = 500 * time.Millisecond
const defaultGarageMoveTime = 20 * time.Second

// GarageDoorOpener pulses a relay to trigger the door drive and reads
// the closed position sensor on input 1. Input 2 is an optional open
// position sensor; without it the open state is inferred by time.
type GarageDoorOpener struct {
	component

	Index int

	cfg      *GarageConfig
	inClosed *Input
	inOpen   *Input
	outTrig  *Output
	outAux   *Output

	svc *service.GarageDoorOpener

	pulseTime time.Duration
	moveTime  time.Duration
	movingTil time.Time
	target    int
}

func NewGarageDoorOpener(index int, in1, in2 *Input, out1, out2 *Output, cfg *GarageConfig) (*GarageDoorOpener, error) {
	if in1 == nil || in2 == nil {
		return nil, errors.Wrapf(ErrConfigurationInconsistent, "garage door %d requires both inputs", index)
	}
	if out1 == nil || out2 == nil {
		return nil, errors.Wrapf(ErrConfigurationInconsistent, "garage door %d requires both outputs", index)
	}

	return &GarageDoorOpener{
		component: component{name: cfg.Name},
		Index:     index,
		cfg:       cfg,
		inClosed:  in1,
		inOpen:    in2,
		outTrig:   out1,
		outAux:    out2,
		pulseTime: parseDurationOr(cfg.PulseTime, defaultGaragePulseTime),
		moveTime:  parseDurationOr(cfg.MoveTime, defaultGarageMoveTime),
	}, nil
}

func (gdo *GarageDoorOpener) Init() error {
	closed, err := gdo.inClosed.GetState()
	if err != nil {
		return errors.Wrapf(ErrInitializationFailed, "garage door %d closed sensor: %v", gdo.Index, err)
	}

	state := characteristic.CurrentDoorStateOpen
	if closed {
		state = characteristic.CurrentDoorStateClosed
	}
	gdo.target = state

	gdo.svc = service.NewGarageDoorOpener()
	gdo.svc.CurrentDoorState.SetValue(state)
	gdo.svc.TargetDoorState.SetValue(state)
	gdo.svc.ObstructionDetected.SetValue(false)
	gdo.svc.TargetDoorState.OnValueRemoteUpdate(gdo.setTarget)

	return nil
}

func (gdo *GarageDoorOpener) setTarget(target int) {
	if target == gdo.target {
		return
	}
	gdo.target = target
	gdo.movingTil = time.Now().Add(gdo.moveTime)
	gdo.outTrig.Pulse(gdo.pulseTime)

	if target == characteristic.TargetDoorStateOpen {
		gdo.svc.CurrentDoorState.SetValue(characteristic.CurrentDoorStateOpening)
	} else {
		gdo.svc.CurrentDoorState.SetValue(characteristic.CurrentDoorStateClosing)
	}
}

// Sync reads the position sensors and settles the current door state
// once movement time elapsed.
func (gdo *GarageDoorOpener) Sync() error {
	closed, err := gdo.inClosed.GetState()
	if err != nil {
		return errors.Wrapf(err, "garage door %d sensor sync failed", gdo.Index)
	}

	if closed {
		gdo.svc.CurrentDoorState.SetValue(characteristic.CurrentDoorStateClosed)
		return nil
	}

	open, err := gdo.inOpen.GetState()
	if err == nil && open {
		gdo.svc.CurrentDoorState.SetValue(characteristic.CurrentDoorStateOpen)
		return nil
	}

	if !gdo.movingTil.IsZero() && time.Now().After(gdo.movingTil) {
		gdo.movingTil = time.Time{}
		if gdo.target == characteristic.TargetDoorStateOpen {
			gdo.svc.CurrentDoorState.SetValue(characteristic.CurrentDoorStateOpen)
		} else {
			// drive finished but the closed sensor does not agree
			gdo.svc.ObstructionDetected.SetValue(true)
			gdo.svc.CurrentDoorState.SetValue(characteristic.CurrentDoorStateStopped)
		}
	}
	return nil
}

func (gdo *GarageDoorOpener) Service() *service.GarageDoorOpener {
	return gdo.svc
}

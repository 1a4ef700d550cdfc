package duokit

import (
	"time"

	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	"github.com/pkg/errors"

	"github.com/duokit/duokit/drivers"
)

const defaultCoveringMoveTime = 30 * time.Second

// WindowCovering drives a motorized covering through two interlocked
// relay outputs, with optional per-direction power metering. Position
// tracking is time based.
type WindowCovering struct {
	component

	Index int

	cfg      *CoveringConfig
	inOpen   *Input
	inClose  *Input
	outOpen  *Output
	outClose *Output
	pmOpen   *PowerMeter
	pmClose  *PowerMeter

	svc *service.WindowCovering

	curPos    int
	targetPos int
	moving    bool
	goingUp   bool
	moveStart time.Time
	startPos  int
	fullMove  time.Duration
}

// NewWindowCovering requires both inputs and both outputs; the power
// meters may be nil (metering is optional for the covering).
func NewWindowCovering(index int, in1, in2 *Input, out1, out2 *Output, pm1, pm2 *PowerMeter, cfg *CoveringConfig) (*WindowCovering, error) {
	if in1 == nil || in2 == nil {
		return nil, errors.Wrapf(ErrConfigurationInconsistent, "covering %d requires both inputs", index)
	}
	if out1 == nil || out2 == nil {
		return nil, errors.Wrapf(ErrConfigurationInconsistent, "covering %d requires both outputs", index)
	}

	wc := &WindowCovering{
		component: component{name: cfg.Name},
		Index:     index,
		cfg:       cfg,
		inOpen:    in1,
		inClose:   in2,
		outOpen:   out1,
		outClose:  out2,
		pmOpen:    pm1,
		pmClose:   pm2,
		fullMove:  parseDurationOr(cfg.MoveTime, defaultCoveringMoveTime),
	}
	if cfg.SwapInputs {
		wc.inOpen, wc.inClose = wc.inClose, wc.inOpen
	}
	return wc, nil
}

func (wc *WindowCovering) Init() error {
	wc.svc = service.NewWindowCovering()
	wc.svc.CurrentPosition.SetValue(wc.curPos)
	wc.svc.TargetPosition.SetValue(wc.curPos)
	wc.svc.PositionState.SetValue(characteristic.PositionStateStopped)
	wc.svc.TargetPosition.OnValueRemoteUpdate(wc.startMovement)

	switch CoveringInMode(wc.cfg.InMode) {
	case CoveringInSeparateMomentary:
		wc.inOpen.AddHandler(func(event drivers.PushEvent) {
			if event == drivers.PushEventSinglePress {
				wc.pressDirection(true)
			}
		})
		wc.inClose.AddHandler(func(event drivers.PushEvent) {
			if event == drivers.PushEventSinglePress {
				wc.pressDirection(false)
			}
		})
	case CoveringInSingle:
		wc.inOpen.AddHandler(func(event drivers.PushEvent) {
			if event == drivers.PushEventSinglePress {
				wc.cycle()
			}
		})
	case CoveringInSeparateToggle, CoveringInDetached:
		// toggle wiring is level driven in Sync, detached attaches nothing
	}

	return nil
}

// pressDirection starts movement in a direction, or stops an ongoing
// movement in the same direction.
func (wc *WindowCovering) pressDirection(up bool) {
	if wc.moving && wc.goingUp == up {
		wc.stopMovement()
		return
	}
	if up {
		wc.startMovement(100)
	} else {
		wc.startMovement(0)
	}
}

// cycle implements the single input rotation open, stop, close, stop.
func (wc *WindowCovering) cycle() {
	if wc.moving {
		wc.stopMovement()
		return
	}
	if wc.curPos < 100 && (wc.curPos == 0 || !wc.goingUp) {
		wc.startMovement(100)
	} else {
		wc.startMovement(0)
	}
}

func (wc *WindowCovering) startMovement(target int) {
	wc.targetPos = target
	if wc.curPos == target {
		wc.stopMovement()
		return
	}

	wc.moveStart = time.Now()
	wc.startPos = wc.curPos
	wc.goingUp = target > wc.curPos
	wc.moving = true

	state := characteristic.PositionStateDecreasing
	if wc.goingUp {
		state = characteristic.PositionStateIncreasing
	}
	wc.svc.PositionState.SetValue(state)
	wc.svc.TargetPosition.SetValue(target)
}

func (wc *WindowCovering) stopMovement() {
	wc.moving = false
	wc.moveStart = time.Time{}
	wc.svc.PositionState.SetValue(characteristic.PositionStateStopped)
	wc.svc.CurrentPosition.SetValue(wc.curPos)
	wc.svc.TargetPosition.SetValue(wc.curPos)
}

func (wc *WindowCovering) updatePosition() {
	if !wc.moving {
		return
	}
	moved := float64(100*time.Since(wc.moveStart)) / float64(wc.fullMove)
	pos := float64(wc.startPos)
	if wc.goingUp {
		pos += moved
	} else {
		pos -= moved
	}

	if pos >= 100 {
		wc.curPos = 100
		wc.stopMovement()
		return
	}
	if pos <= 0 {
		wc.curPos = 0
		wc.stopMovement()
		return
	}

	wc.curPos = int(pos)
	if wc.goingUp && wc.curPos >= wc.targetPos {
		wc.stopMovement()
		return
	}
	if !wc.goingUp && wc.curPos <= wc.targetPos {
		wc.stopMovement()
		return
	}
	wc.svc.CurrentPosition.SetValue(wc.curPos)
}

// Sync advances the timed position and drives the interlocked outputs.
func (wc *WindowCovering) Sync() error {
	if CoveringInMode(wc.cfg.InMode) == CoveringInSeparateToggle {
		wc.syncToggleInputs()
	}

	wc.updatePosition()

	var err error
	if wc.moving {
		if wc.goingUp {
			err = firstErr(wc.outClose.Set(false), wc.outOpen.Set(true))
		} else {
			err = firstErr(wc.outOpen.Set(false), wc.outClose.Set(true))
		}
	} else {
		err = firstErr(wc.outOpen.Set(false), wc.outClose.Set(false))
	}
	return errors.Wrapf(err, "covering %d output sync failed", wc.Index)
}

func (wc *WindowCovering) syncToggleInputs() {
	openOn, errO := wc.inOpen.GetState()
	closeOn, errC := wc.inClose.GetState()
	if errO != nil || errC != nil {
		return
	}

	switch {
	case openOn && !closeOn:
		if !wc.moving || !wc.goingUp {
			wc.startMovement(100)
		}
	case closeOn && !openOn:
		if !wc.moving || wc.goingUp {
			wc.startMovement(0)
		}
	default:
		if wc.moving {
			wc.stopMovement()
		}
	}
}

func (wc *WindowCovering) Service() *service.WindowCovering {
	return wc.svc
}

func (wc *WindowCovering) CurrentPosition() int {
	return wc.curPos
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

package drivers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

const cdevDriverName = "cdev"
const defaultChipName = "gpiochip0"
const debounceDuration = 20 * time.Millisecond
const longPressMin = 2 * time.Second
const doublePressWindow = 400 * time.Millisecond

// CdevIO drives io through the Linux GPIO character device. Unlike the
// memory mapped gpio driver it delivers edge events, so inputs support
// push event subscription.
type CdevIO struct {
	Chip string

	inputs  []*CdevInput
	outputs []*CdevOutput
	isReady bool
}

type CdevInput struct {
	pin    uint16
	invert bool
	line   *gpiocdev.Line

	mu         sync.Mutex
	listener   EventListener
	pressedAt  time.Time
	singleWait *time.Timer
}

type CdevOutput struct {
	pin    uint16
	invert bool
	line   *gpiocdev.Line
}

func (ci *CdevInput) GetState() (state bool, err error) {
	v, err := ci.line.Value()
	if err != nil {
		return false, errors.Wrapf(err, "cdev input %d read failed", ci.pin)
	}
	state = v != 0
	if ci.invert {
		state = !state
	}
	return
}

func (ci *CdevInput) SubscribeToPushEvent(listener EventListener) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.listener = listener
	return nil
}

func (ci *CdevInput) handleEdge(evt gpiocdev.LineEvent) {
	pressed := evt.Type == gpiocdev.LineEventRisingEdge
	if ci.invert {
		pressed = !pressed
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	if ci.listener == nil {
		return
	}

	if pressed {
		ci.pressedAt = time.Now()
		if ci.singleWait != nil {
			// second press inside the window, this is a double
			ci.singleWait.Stop()
			ci.singleWait = nil
			ci.listener.FireEvent(PushEventDoublePress)
			ci.pressedAt = time.Time{}
		}
		return
	}

	if ci.pressedAt.IsZero() {
		return
	}
	held := time.Since(ci.pressedAt)
	ci.pressedAt = time.Time{}

	if held >= longPressMin {
		ci.listener.FireEvent(PushEventLongPress)
		return
	}

	listener := ci.listener
	ci.singleWait = time.AfterFunc(doublePressWindow, func() {
		ci.mu.Lock()
		ci.singleWait = nil
		ci.mu.Unlock()
		listener.FireEvent(PushEventSinglePress)
	})
}

func (co *CdevOutput) Set(state bool) error {
	if co.invert {
		state = !state
	}
	v := 0
	if state {
		v = 1
	}
	return errors.Wrapf(co.line.SetValue(v), "cdev output %d set failed", co.pin)
}

func (co *CdevOutput) GetState() (state bool, err error) {
	v, err := co.line.Value()
	if err != nil {
		return false, errors.Wrapf(err, "cdev output %d read failed", co.pin)
	}
	state = v != 0
	if co.invert {
		state = !state
	}
	return
}

// Setup requests output lines first, each driven to its idle level,
// then input lines with edge detection and debounce. See IoDriver.
func (cd *CdevIO) Setup(ctx context.Context, inputs []InputSpec, outputs []OutputSpec) error {
	chip := cd.Chip
	if len(chip) == 0 {
		chip = defaultChipName
	}

	for _, out := range outputs {
		idle := out.IdleOn
		if out.Invert {
			idle = !idle
		}
		v := 0
		if idle {
			v = 1
		}
		line, err := gpiocdev.RequestLine(chip, int(out.Pin), gpiocdev.AsOutput(v))
		if err != nil {
			return errors.Wrapf(err, "cdev driver failed to request output line %d", out.Pin)
		}
		cd.outputs = append(cd.outputs, &CdevOutput{pin: out.Pin, invert: out.Invert, line: line})
	}

	for _, in := range inputs {
		input := &CdevInput{pin: in.Pin, invert: in.Invert}
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(debounceDuration),
			gpiocdev.WithEventHandler(input.handleEdge),
		}
		switch in.Pull {
		case PullUp:
			opts = append(opts, gpiocdev.WithPullUp)
		case PullDown:
			opts = append(opts, gpiocdev.WithPullDown)
		}
		line, err := gpiocdev.RequestLine(chip, int(in.Pin), opts...)
		if err != nil {
			return errors.Wrapf(err, "cdev driver failed to request input line %d", in.Pin)
		}
		input.line = line
		cd.inputs = append(cd.inputs, input)
	}

	cd.isReady = true
	return nil
}

func (cd *CdevIO) String() string {
	return cdevDriverName
}

func (cd *CdevIO) IsReady() bool {
	return cd.isReady
}

func (cd *CdevIO) Close() (err error) {
	cd.isReady = false
	for _, out := range cd.outputs {
		out.Set(false)
		closeErr := out.line.Close()
		if closeErr != nil {
			err = closeErr
		}
	}
	for _, in := range cd.inputs {
		closeErr := in.line.Close()
		if closeErr != nil {
			err = closeErr
		}
	}
	return
}

func (cd *CdevIO) GetInput(pin uint16) (DigitalInput, error) {
	for _, in := range cd.inputs {
		if in.pin == pin {
			return in, nil
		}
	}
	return nil, fmt.Errorf("CdevIO Input (pin: %d) not found", pin)
}

func (cd *CdevIO) GetOutput(pin uint16) (DigitalOutput, error) {
	for _, out := range cd.outputs {
		if out.pin == pin {
			return out, nil
		}
	}
	return nil, fmt.Errorf("CdevIO Output (pin: %d) not found", pin)
}

func (cd *CdevIO) GetAllIo() (inputs []uint16, outputs []uint16) {
	for _, input := range cd.inputs {
		inputs = append(inputs, input.pin)
	}
	for _, output := range cd.outputs {
		outputs = append(outputs, output.pin)
	}
	return
}

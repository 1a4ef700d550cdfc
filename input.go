package duokit

import (
	"github.com/pkg/errors"

	"github.com/duokit/duokit/drivers"
)

// InputHandler receives push events from a physical input. Handlers run
// in attachment order.
type InputHandler func(event drivers.PushEvent)

// Input is one physical input of the device.
type Input struct {
	Index   int
	Pin     uint16
	Invert  bool
	Pull    drivers.Pull
	Enabled bool

	handlers []InputHandler
	din      drivers.DigitalInput
}

func NewInput(index int, pin uint16, invert bool, pull drivers.Pull, enabled bool) *Input {
	return &Input{
		Index:   index,
		Pin:     pin,
		Invert:  invert,
		Pull:    pull,
		Enabled: enabled,
	}
}

// AddHandler appends a handler. Attach before events start flowing;
// the handler list is not guarded against concurrent append.
func (in *Input) AddHandler(handler InputHandler) {
	in.handlers = append(in.handlers, handler)
}

// Init binds the input to the driver and arms the event subscription.
func (in *Input) Init(driver drivers.IoDriver) error {
	if !driver.IsReady() {
		return errors.Wrapf(ErrInitializationFailed, "input %d: driver %s not ready", in.Index, driver)
	}

	din, err := driver.GetInput(in.Pin)
	if err != nil {
		return errors.Wrapf(err, "input %d init failed", in.Index)
	}
	in.din = din

	if !in.Enabled {
		return nil
	}

	err = din.SubscribeToPushEvent(in)
	if err != nil {
		// driver has no event delivery, input stays poll only
		return nil
	}
	return nil
}

// FireEvent fans a push event out to the attached handlers. Implements
// drivers.EventListener.
func (in *Input) FireEvent(event drivers.PushEvent) {
	for _, handler := range in.handlers {
		handler(event)
	}
}

func (in *Input) GetState() (bool, error) {
	if in.din == nil {
		return false, errors.Wrapf(ErrInitializationFailed, "input %d not initialized", in.Index)
	}
	return in.din.GetState()
}

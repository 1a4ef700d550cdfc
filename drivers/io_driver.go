package drivers

import (
	"context"
)

// Pull selects the input pin bias.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// InputSpec describes one digital input pin to set up.
type InputSpec struct {
	Pin    uint16
	Invert bool
	Pull   Pull
}

// OutputSpec describes one digital output pin to set up.
// IdleOn is the level the pin is driven to during Setup, before
// any input is armed.
type OutputSpec struct {
	Pin    uint16
	Invert bool
	IdleOn bool
}

// IoDriver is a backend providing digital io.
//
// Setup must configure and drive all outputs to their idle level before
// arming any input. Arming an input on this hardware couples to the
// relay bank, so doing it the other way round pulses a relay.
type IoDriver interface {
	Setup(ctx context.Context, inputs []InputSpec, outputs []OutputSpec) error
	Close() error
	String() string
	IsReady() bool
	GetInput(pin uint16) (DigitalInput, error)
	GetOutput(pin uint16) (DigitalOutput, error)
	GetAllIo() (inputs []uint16, outputs []uint16)
}

type DigitalInput interface {
	GetState() (bool, error)
	SubscribeToPushEvent(EventListener) error
}

type DigitalOutput interface {
	GetState() (bool, error)
	Set(bool) error
}

// AnalogReader reads a raw analog channel as a fraction of the
// reference voltage (0..1).
type AnalogReader interface {
	ReadFraction(channel int) (float64, error)
}

type PushEvent int

const (
	PushEventSinglePress PushEvent = 0
	PushEventDoublePress PushEvent = 1
	PushEventLongPress   PushEvent = 2
)

type EventListener interface {
	FireEvent(PushEvent)
}

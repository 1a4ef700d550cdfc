package drivers

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MockIoDriver is an in-memory io backend for tests. It records every
// operation touching a pin in order, so tests can assert on bring-up
// sequencing.
type MockIoDriver struct {
	inputs  []*MockInput
	outputs []*MockOutput
	ready   bool

	mu  sync.Mutex
	ops []string
}

type MockOutput struct {
	state            bool
	pin              uint16
	driver           *MockIoDriver
	writeTo          io.Writer
	writeStateChange bool
}

func (mo *MockOutput) GetState() (bool, error) {
	return mo.state, nil
}

func (mo *MockOutput) Set(state bool) error {
	mo.driver.record(fmt.Sprintf("set output %d %v", mo.pin, state))
	if mo.writeStateChange && state != mo.state {
		fmt.Fprintf(mo.writeTo, "[pin %d] state changed to %v\n", mo.pin, state)
	}
	mo.state = state
	return nil
}

type MockInput struct {
	State  bool
	pin    uint16
	driver *MockIoDriver

	listener EventListener
}

func (mi *MockInput) GetState() (bool, error) {
	return mi.State, nil
}

func (mi *MockInput) SubscribeToPushEvent(listener EventListener) error {
	mi.driver.record(fmt.Sprintf("subscribe input %d", mi.pin))
	mi.listener = listener
	return nil
}

// Push simulates a push event on the input.
func (mi *MockInput) Push(event PushEvent) error {
	if mi.listener == nil {
		return fmt.Errorf("mock input %d has no event listener", mi.pin)
	}
	mi.listener.FireEvent(event)
	return nil
}

func (md *MockIoDriver) record(op string) {
	md.mu.Lock()
	md.ops = append(md.ops, op)
	md.mu.Unlock()
}

// Ops returns all recorded operations in the order they happened.
func (md *MockIoDriver) Ops() []string {
	md.mu.Lock()
	defer md.mu.Unlock()
	return append([]string{}, md.ops...)
}

func (md *MockIoDriver) Setup(ctx context.Context, inputs []InputSpec, outputs []OutputSpec) error {
	for _, out := range outputs {
		output := &MockOutput{pin: out.Pin, driver: md}
		md.outputs = append(md.outputs, output)
		output.Set(out.IdleOn)
	}
	for _, in := range inputs {
		md.record(fmt.Sprintf("arm input %d", in.Pin))
		md.inputs = append(md.inputs, &MockInput{pin: in.Pin, driver: md})
	}
	md.ready = true
	return nil
}

func (md *MockIoDriver) Close() error {
	md.ready = false
	return nil
}

func (md *MockIoDriver) String() string {
	return "mock_driver"
}

func (md *MockIoDriver) IsReady() bool {
	return md.ready
}

func (md *MockIoDriver) GetInput(pin uint16) (DigitalInput, error) {
	for _, input := range md.inputs {
		if pin == input.pin {
			md.record(fmt.Sprintf("get input %d", pin))
			return input, nil
		}
	}
	return nil, fmt.Errorf("mock input %d not found", pin)
}

// FindMockInput exposes the concrete mock input so tests can simulate
// state changes and push events.
func (md *MockIoDriver) FindMockInput(pin uint16) (*MockInput, error) {
	for _, input := range md.inputs {
		if pin == input.pin {
			return input, nil
		}
	}
	return nil, fmt.Errorf("mock input %d not found", pin)
}

func (md *MockIoDriver) GetOutput(pin uint16) (DigitalOutput, error) {
	for _, output := range md.outputs {
		if pin == output.pin {
			md.record(fmt.Sprintf("get output %d", pin))
			return output, nil
		}
	}
	return nil, fmt.Errorf("mock output %d not found", pin)
}

func (md *MockIoDriver) GetAllIo() (inputs []uint16, outputs []uint16) {
	for _, input := range md.inputs {
		inputs = append(inputs, input.pin)
	}
	for _, output := range md.outputs {
		outputs = append(outputs, output.pin)
	}
	return
}

func (md *MockIoDriver) MonitorStateChanges(writer io.Writer) {
	for _, out := range md.outputs {
		out.writeTo = writer
		out.writeStateChange = true
	}
}

// MockAnalog is an AnalogReader returning fixed per-channel fractions.
type MockAnalog struct {
	Fractions map[int]float64
}

func (ma *MockAnalog) ReadFraction(channel int) (float64, error) {
	frac, found := ma.Fractions[channel]
	if !found {
		return 0, fmt.Errorf("mock analog channel %d not set", channel)
	}
	return frac, nil
}

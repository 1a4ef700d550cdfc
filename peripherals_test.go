package duokit

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/duokit/duokit/drivers"
)

func newTestDriver(t testing.TB) *drivers.MockIoDriver {
	t.Helper()

	drv := &drivers.MockIoDriver{}
	inputs, outputs := DeviceIoSpecs()
	err := drv.Setup(context.Background(), inputs, outputs)
	if err != nil {
		t.Fatalf("mock driver setup failed: %v", err)
	}
	return drv
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestOutputsConstructedBeforeInputsArmed(t *testing.T) {
	drv := newTestDriver(t)
	factory := NewPeripheralFactory(drv, nil, nil, quietLogger())

	_, err := factory.CreatePeripherals(NewRegistry())
	if err != nil {
		t.Fatalf("CreatePeripherals returned err: %v", err)
	}

	ops := drv.Ops()
	lastOutputOp := -1
	firstInputInit := -1
	for i, op := range ops {
		if strings.HasPrefix(op, "get output") || strings.HasPrefix(op, "set output") {
			lastOutputOp = i
		}
		if (strings.HasPrefix(op, "get input") || strings.HasPrefix(op, "subscribe input")) && firstInputInit < 0 {
			firstInputInit = i
		}
	}

	if firstInputInit < 0 {
		t.Fatal("no input init recorded")
	}
	if lastOutputOp > firstInputInit {
		t.Errorf("output op at %d after first input init at %d:\n%v", lastOutputOp, firstInputInit, ops)
	}
}

func TestInputsRefuseToRunBeforeOutputs(t *testing.T) {
	drv := newTestDriver(t)
	factory := NewPeripheralFactory(drv, nil, nil, quietLogger())

	err := factory.CreateInputs(NewRegistry())
	if err == nil {
		t.Fatal("CreateInputs before CreateOutputs should fail")
	}
}

func TestCreatePeripheralsOncePerSession(t *testing.T) {
	drv := newTestDriver(t)
	factory := NewPeripheralFactory(drv, nil, nil, quietLogger())
	reg := NewRegistry()

	_, err := factory.CreatePeripherals(reg)
	if err != nil {
		t.Fatalf("first CreatePeripherals returned err: %v", err)
	}

	_, err = factory.CreatePeripherals(reg)
	if err == nil {
		t.Fatal("second CreatePeripherals should fail")
	}
}

func TestPeripheralSetContents(t *testing.T) {
	drv := newTestDriver(t)
	factory := NewPeripheralFactory(drv, nil, nil, quietLogger())
	reg := NewRegistry()

	status, err := factory.CreatePeripherals(reg)
	if err != nil {
		t.Fatalf("CreatePeripherals returned err: %v", err)
	}

	if status != MeteringUnavailable {
		t.Errorf("without an i2c bus metering should be unavailable, got %v", status)
	}
	if len(reg.Inputs()) != 2 {
		t.Errorf("expected 2 inputs, got %d", len(reg.Inputs()))
	}
	if len(reg.Outputs()) != 2 {
		t.Errorf("expected 2 outputs, got %d", len(reg.Outputs()))
	}
	if len(reg.PowerMeters()) != 0 {
		t.Errorf("expected no power meters, got %d", len(reg.PowerMeters()))
	}
	if reg.TempSensor() == nil {
		t.Error("temp sensor should always be created")
	}

	for _, in := range reg.Inputs() {
		if _, err := reg.FindInput(in.Index); err != nil {
			t.Errorf("FindInput(%d) returned err: %v", in.Index, err)
		}
	}
	if _, err := reg.FindInput(3); err == nil {
		t.Error("FindInput(3) should fail")
	}
	if _, err := reg.FindPowerMeter(1); err == nil {
		t.Error("FindPowerMeter(1) should fail without metering")
	}
}

func TestResetSequenceOnInputOne(t *testing.T) {
	drv := newTestDriver(t)
	factory := NewPeripheralFactory(drv, nil, nil, quietLogger())

	resetCalled := false
	factory.SetFactoryReset(func() error {
		resetCalled = true
		return nil
	})

	reg := NewRegistry()
	_, err := factory.CreatePeripherals(reg)
	if err != nil {
		t.Fatalf("CreatePeripherals returned err: %v", err)
	}

	in1, err := drv.FindMockInput(pinInput1)
	if err != nil {
		t.Fatalf("mock input lookup failed: %v", err)
	}

	// short press must not reset
	in1.Push(drivers.PushEventSinglePress)
	if resetCalled {
		t.Fatal("single press triggered the reset sequence")
	}

	in1.Push(drivers.PushEventLongPress)
	if !resetCalled {
		t.Error("long press did not trigger the reset sequence")
	}

	// the sequence pulses output 1
	out1, _ := reg.FindOutput(resetOutputIndex)
	on, _ := out1.GetState()
	if !on {
		t.Error("reset sequence should pulse output 1 active")
	}
	time.Sleep(resetPulseTime + 100*time.Millisecond)
	on, _ = out1.GetState()
	if on {
		t.Error("reset pulse should return output 1 to idle")
	}
}

package duokit

import (
	"testing"
	"time"

	"github.com/brutella/hap/characteristic"

	"github.com/duokit/duokit/drivers"
)

func newTestGarageDoor(t testing.TB, cfg *GarageConfig, closed bool) (*GarageDoorOpener, *drivers.MockIoDriver, *Registry) {
	t.Helper()

	drv := newTestDriver(t)
	reg := NewRegistry()
	factory := NewPeripheralFactory(drv, nil, nil, quietLogger())
	if _, err := factory.CreatePeripherals(reg); err != nil {
		t.Fatalf("peripheral bring-up failed: %v", err)
	}

	closedSensor, err := drv.FindMockInput(pinInput1)
	if err != nil {
		t.Fatalf("FindMockInput returned err: %v", err)
	}
	closedSensor.State = closed

	in1, _ := reg.FindInput(1)
	in2, _ := reg.FindInput(2)
	out1, _ := reg.FindOutput(1)
	out2, _ := reg.FindOutput(2)

	gdo, err := NewGarageDoorOpener(1, in1, in2, out1, out2, cfg)
	if err != nil {
		t.Fatalf("NewGarageDoorOpener returned err: %v", err)
	}
	if err := gdo.Init(); err != nil {
		t.Fatalf("garage door Init returned err: %v", err)
	}
	return gdo, drv, reg
}

func TestGarageDoorInitialStateFromSensor(t *testing.T) {
	gdo, _, _ := newTestGarageDoor(t, &GarageConfig{Name: "Garage"}, true)
	if gdo.svc.CurrentDoorState.Value() != characteristic.CurrentDoorStateClosed {
		t.Error("door with closed sensor active should start closed")
	}

	gdo, _, _ = newTestGarageDoor(t, &GarageConfig{Name: "Garage"}, false)
	if gdo.svc.CurrentDoorState.Value() != characteristic.CurrentDoorStateOpen {
		t.Error("door with closed sensor idle should start open")
	}
}

func TestGarageDoorOpenSequence(t *testing.T) {
	cfg := &GarageConfig{Name: "Garage", PulseTime: "30ms", MoveTime: "10s"}
	gdo, drv, reg := newTestGarageDoor(t, cfg, true)

	gdo.setTarget(characteristic.TargetDoorStateOpen)

	// trigger relay pulses, then returns to idle
	out1, _ := reg.FindOutput(1)
	on, err := out1.GetState()
	if err != nil {
		t.Fatalf("GetState returned err: %v", err)
	}
	if !on {
		t.Error("trigger relay should be active during the pulse")
	}
	time.Sleep(80 * time.Millisecond)
	on, err = out1.GetState()
	if err != nil {
		t.Fatalf("GetState returned err: %v", err)
	}
	if on {
		t.Error("trigger relay should return to idle after the pulse")
	}

	if gdo.svc.CurrentDoorState.Value() != characteristic.CurrentDoorStateOpening {
		t.Error("door should report opening after the trigger")
	}

	// the door leaves the closed sensor, then reaches the open sensor
	closedSensor, _ := drv.FindMockInput(pinInput1)
	openSensor, _ := drv.FindMockInput(pinInput2)
	closedSensor.State = false
	openSensor.State = true
	if err := gdo.Sync(); err != nil {
		t.Fatalf("Sync returned err: %v", err)
	}
	if gdo.svc.CurrentDoorState.Value() != characteristic.CurrentDoorStateOpen {
		t.Error("door at the open sensor should report open")
	}
}

func TestGarageDoorObstructionOnFailedClose(t *testing.T) {
	cfg := &GarageConfig{Name: "Garage", PulseTime: "10ms", MoveTime: "40ms"}
	gdo, _, _ := newTestGarageDoor(t, cfg, false)

	gdo.setTarget(characteristic.TargetDoorStateClosed)
	time.Sleep(60 * time.Millisecond)

	// neither sensor fired within the travel time
	if err := gdo.Sync(); err != nil {
		t.Fatalf("Sync returned err: %v", err)
	}
	if !gdo.svc.ObstructionDetected.Value() {
		t.Error("failed close should flag an obstruction")
	}
	if gdo.svc.CurrentDoorState.Value() != characteristic.CurrentDoorStateStopped {
		t.Error("failed close should report a stopped door")
	}
}

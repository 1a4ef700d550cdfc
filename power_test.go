package duokit

import (
	"testing"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// fakeI2CBus succeeds for the first failAfter transactions and fails
// afterwards, so bring-up can be broken at any step.
type fakeI2CBus struct {
	txCount   int
	failAfter int
}

func (b *fakeI2CBus) String() string {
	return "fake-i2c"
}

func (b *fakeI2CBus) Tx(addr uint16, w, r []byte) error {
	b.txCount++
	if b.txCount > b.failAfter {
		return errors.New("i2c tx failed")
	}
	return nil
}

func (b *fakeI2CBus) SetSpeed(f physic.Frequency) error {
	return nil
}

// Chip creation takes 4 transactions, then one probe per meter.
const txChipCreate = 4
const txFirstProbe = txChipCreate + 1

func TestBringUpWithoutBus(t *testing.T) {
	ps := PowerSubsystem{}
	reg := NewRegistry()

	err := ps.BringUp(nil, reg)
	if err == nil {
		t.Fatal("bring-up without a bus should fail")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if len(reg.PowerMeters()) != 0 {
		t.Errorf("expected no meters, got %d", len(reg.PowerMeters()))
	}

	status, cause := ps.Status()
	if status != MeteringUnavailable {
		t.Errorf("expected unavailable status, got %v", status)
	}
	if cause == nil {
		t.Error("degraded status should carry its cause")
	}
}

func TestBringUpChipCreateFails(t *testing.T) {
	ps := PowerSubsystem{}
	reg := NewRegistry()

	err := ps.BringUp(&fakeI2CBus{failAfter: 1}, reg)
	if err == nil {
		t.Fatal("bring-up with a dead chip should fail")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if len(reg.PowerMeters()) != 0 {
		t.Errorf("expected no meters, got %d", len(reg.PowerMeters()))
	}
}

func TestBringUpSecondMeterFailsLeavesNone(t *testing.T) {
	ps := PowerSubsystem{}
	reg := NewRegistry()

	// first meter probes fine, second one fails
	err := ps.BringUp(&fakeI2CBus{failAfter: txFirstProbe}, reg)
	if err == nil {
		t.Fatal("bring-up should fail when a meter init fails")
	}
	if len(reg.PowerMeters()) != 0 {
		t.Errorf("both-or-neither violated, got %d meters", len(reg.PowerMeters()))
	}

	status, _ := ps.Status()
	if status != MeteringUnavailable {
		t.Errorf("expected unavailable status, got %v", status)
	}
}

func TestBringUpSuccess(t *testing.T) {
	ps := PowerSubsystem{}
	reg := NewRegistry()

	err := ps.BringUp(&fakeI2CBus{failAfter: 1000}, reg)
	if err != nil {
		t.Fatalf("bring-up returned err: %v", err)
	}
	if len(reg.PowerMeters()) != 2 {
		t.Fatalf("expected 2 meters, got %d", len(reg.PowerMeters()))
	}

	for _, index := range []int{1, 2} {
		if _, err := reg.FindPowerMeter(index); err != nil {
			t.Errorf("FindPowerMeter(%d) returned err: %v", index, err)
		}
	}

	status, cause := ps.Status()
	if status != MeteringActive {
		t.Errorf("expected active status, got %v", status)
	}
	if cause != nil {
		t.Errorf("active status should have no cause, got %v", cause)
	}
}

func TestBringUpRefusesSecondCall(t *testing.T) {
	ps := PowerSubsystem{}
	reg := NewRegistry()

	err := ps.BringUp(&fakeI2CBus{failAfter: 1000}, reg)
	if err != nil {
		t.Fatalf("bring-up returned err: %v", err)
	}

	err = ps.BringUp(&fakeI2CBus{failAfter: 1000}, reg)
	if err == nil {
		t.Fatal("second bring-up call should fail")
	}
}

package duokit

import (
	"testing"

	"github.com/brutella/hap/accessory"
	"github.com/pkg/errors"

	"github.com/duokit/duokit/drivers"
)

func newTestTopology(t testing.TB, cfg *Config) (*drivers.MockIoDriver, *Registry, *AccessoryGraph) {
	t.Helper()

	drv := newTestDriver(t)
	reg := NewRegistry()
	factory := NewPeripheralFactory(drv, nil, nil, quietLogger())
	if _, err := factory.CreatePeripherals(reg); err != nil {
		t.Fatalf("peripheral bring-up failed: %v", err)
	}

	cfg.FillDefaults()
	bridge := NewBridgeAccessory(accessory.Info{Name: "duokit test"})
	return drv, reg, NewAccessoryGraph(bridge)
}

func countPrimary(comps []Component) int {
	n := 0
	for _, c := range comps {
		if c.Primary() {
			n++
		}
	}
	return n
}

func TestSwitchModeDefaultLayout(t *testing.T) {
	cfg := &Config{Mode: int(ModeNormal)}
	_, reg, g := newTestTopology(t, cfg)

	if err := CreateComponents(cfg, reg, g); err != nil {
		t.Fatalf("CreateComponents returned err: %v", err)
	}

	comps := g.Components()
	if len(comps) != 2 {
		t.Fatalf("expected 2 components, got %d", len(comps))
	}
	if n := countPrimary(comps); n != 1 {
		t.Errorf("expected exactly one primary component, got %d", n)
	}

	sw1, ok := comps[0].(*RelaySwitch)
	if !ok || sw1.Index != 1 {
		t.Fatalf("expected switch 1 first, got %T", comps[0])
	}
	if !sw1.Primary() {
		t.Error("switch 1 should be primary")
	}
	sw2, ok := comps[1].(*RelaySwitch)
	if !ok || sw2.Index != 2 {
		t.Fatalf("expected switch 2 second, got %T", comps[1])
	}
	if sw2.Primary() {
		t.Error("switch 2 should not be primary")
	}

	// bridge plus one bridged accessory per switch
	accs := g.Accessories()
	if len(accs) != 3 {
		t.Fatalf("expected 3 accessories, got %d", len(accs))
	}
	if accs[1].A().Id != aidBaseSwitch+1 || accs[2].A().Id != aidBaseSwitch+2 {
		t.Errorf("unexpected accessory ids: %d, %d", accs[1].A().Id, accs[2].A().Id)
	}
	if g.Bridge().A().Type != byte(accessory.TypeBridge) {
		t.Errorf("bridge category should stay untouched, got %d", g.Bridge().A().Type)
	}
}

func TestSwitchModeLegacyLayout(t *testing.T) {
	cfg := &Config{Mode: int(ModeNormal), LegacyHAPLayout: true}
	_, reg, g := newTestTopology(t, cfg)

	if err := CreateComponents(cfg, reg, g); err != nil {
		t.Fatalf("CreateComponents returned err: %v", err)
	}

	// both services live on the bridge accessory
	if len(g.Accessories()) != 1 {
		t.Fatalf("expected bridge only, got %d accessories", len(g.Accessories()))
	}
	if g.Bridge().A().Type != byte(accessory.TypeSwitch) {
		t.Errorf("bridge category should be switch, got %d", g.Bridge().A().Type)
	}

	// enumeration order stays 1, 2 despite reversed construction
	comps := g.Components()
	if len(comps) != 2 {
		t.Fatalf("expected 2 components, got %d", len(comps))
	}
	for i, want := range []int{1, 2} {
		sw, ok := comps[i].(*RelaySwitch)
		if !ok || sw.Index != want {
			t.Fatalf("component %d: expected switch %d, got %T", i, want, comps[i])
		}
	}
	if n := countPrimary(comps); n != 1 {
		t.Errorf("expected exactly one primary component, got %d", n)
	}
}

func TestSwitchModeLegacyOverriddenByDetached(t *testing.T) {
	cfg := &Config{
		Mode:            int(ModeNormal),
		LegacyHAPLayout: true,
		SW1:             &SwitchConfig{Name: "Switch 1", InMode: int(SwitchInDetached)},
	}
	_, reg, g := newTestTopology(t, cfg)

	if err := CreateComponents(cfg, reg, g); err != nil {
		t.Fatalf("CreateComponents returned err: %v", err)
	}

	// detached wiring forces the modern layout: each switch on its own
	// accessory, plus the detached input exposed separately
	if len(g.Accessories()) != 4 {
		t.Fatalf("expected 4 accessories, got %d", len(g.Accessories()))
	}
	if g.Bridge().A().Type != byte(accessory.TypeBridge) {
		t.Error("bridge category should stay untouched")
	}
	if len(g.Components()) != 3 {
		t.Fatalf("expected 3 components, got %d", len(g.Components()))
	}

	foundInput := false
	for _, c := range g.Components() {
		if hi, ok := c.(*HapInput); ok {
			foundInput = true
			if hi.Index != 1 {
				t.Errorf("expected exposed input 1, got %d", hi.Index)
			}
		}
	}
	if !foundInput {
		t.Error("detached switch should expose its input")
	}
}

func TestCoveringSeparateInputsOnBridge(t *testing.T) {
	for _, inMode := range []CoveringInMode{CoveringInSeparateMomentary, CoveringInSeparateToggle} {
		cfg := &Config{
			Mode: int(ModeRollerShutter),
			WC1:  &CoveringConfig{Name: "Covering", InMode: int(inMode)},
		}
		_, reg, g := newTestTopology(t, cfg)

		if err := CreateComponents(cfg, reg, g); err != nil {
			t.Fatalf("in-mode %d: CreateComponents returned err: %v", inMode, err)
		}

		if len(g.Accessories()) != 1 {
			t.Errorf("in-mode %d: expected bridge only, got %d accessories", inMode, len(g.Accessories()))
		}
		if g.Bridge().A().Type != byte(accessory.TypeWindowCovering) {
			t.Errorf("in-mode %d: bridge category should be window covering", inMode)
		}
		comps := g.Components()
		if len(comps) != 1 {
			t.Fatalf("in-mode %d: expected 1 component, got %d", inMode, len(comps))
		}
		if _, ok := comps[0].(*WindowCovering); !ok {
			t.Fatalf("in-mode %d: expected window covering, got %T", inMode, comps[0])
		}
		if !comps[0].Primary() {
			t.Errorf("in-mode %d: covering should be primary", inMode)
		}
	}
}

func TestCoveringSingleExposesIdleInput(t *testing.T) {
	cfg := &Config{
		Mode: int(ModeRollerShutter),
		WC1:  &CoveringConfig{Name: "Covering", InMode: int(CoveringInSingle)},
	}
	_, reg, g := newTestTopology(t, cfg)

	if err := CreateComponents(cfg, reg, g); err != nil {
		t.Fatalf("CreateComponents returned err: %v", err)
	}

	// bridge, dedicated covering accessory, pass-through for input 2
	accs := g.Accessories()
	if len(accs) != 3 {
		t.Fatalf("expected 3 accessories, got %d", len(accs))
	}
	if accs[1].A().Id != aidBaseWindowCovering+1 {
		t.Errorf("unexpected covering accessory id %d", accs[1].A().Id)
	}
	if accs[2].A().Id != aidBaseInput+2 {
		t.Errorf("expected exposed input 2 accessory, got id %d", accs[2].A().Id)
	}
	if g.Bridge().A().Type != byte(accessory.TypeBridge) {
		t.Error("bridge category should stay untouched")
	}

	comps := g.Components()
	if len(comps) != 2 {
		t.Fatalf("expected 2 components, got %d", len(comps))
	}
	wc, ok := comps[len(comps)-1].(*WindowCovering)
	if !ok {
		t.Fatalf("covering should be appended last, got %T", comps[len(comps)-1])
	}
	if !wc.Primary() {
		t.Error("covering should be primary")
	}
	if n := countPrimary(comps); n != 1 {
		t.Errorf("expected exactly one primary component, got %d", n)
	}
}

func TestCoveringSingleSwappedExposesInputOne(t *testing.T) {
	cfg := &Config{
		Mode: int(ModeRollerShutter),
		WC1:  &CoveringConfig{Name: "Covering", InMode: int(CoveringInSingle), SwapInputs: true},
	}
	_, reg, g := newTestTopology(t, cfg)

	if err := CreateComponents(cfg, reg, g); err != nil {
		t.Fatalf("CreateComponents returned err: %v", err)
	}

	found := false
	for _, c := range g.Components() {
		if hi, ok := c.(*HapInput); ok {
			found = true
			if hi.Index != 1 {
				t.Errorf("swapped wiring should expose input 1, got %d", hi.Index)
			}
		}
	}
	if !found {
		t.Fatal("expected an exposed input component")
	}
}

func TestCoveringDetachedExposesBothInputs(t *testing.T) {
	cfg := &Config{
		Mode: int(ModeRollerShutter),
		WC1:  &CoveringConfig{Name: "Covering", InMode: int(CoveringInDetached)},
	}
	_, reg, g := newTestTopology(t, cfg)

	if err := CreateComponents(cfg, reg, g); err != nil {
		t.Fatalf("CreateComponents returned err: %v", err)
	}

	if len(g.Accessories()) != 4 {
		t.Fatalf("expected 4 accessories, got %d", len(g.Accessories()))
	}
	if len(g.Components()) != 3 {
		t.Fatalf("expected 3 components, got %d", len(g.Components()))
	}

	seen := map[int]bool{}
	for _, c := range g.Components() {
		if hi, ok := c.(*HapInput); ok {
			seen[hi.Index] = true
		}
	}
	if !seen[1] || !seen[2] {
		t.Errorf("detached wiring should expose both inputs, saw %v", seen)
	}
}

func TestCoveringUnknownSubModeRejected(t *testing.T) {
	cfg := &Config{
		Mode: int(ModeRollerShutter),
		WC1:  &CoveringConfig{Name: "Covering", InMode: 7},
	}
	_, reg, g := newTestTopology(t, cfg)

	err := CreateComponents(cfg, reg, g)
	if err == nil {
		t.Fatal("unknown covering sub-mode should be rejected")
	}
	if !errors.Is(err, ErrConfigurationInconsistent) {
		t.Errorf("expected ErrConfigurationInconsistent, got %v", err)
	}
	if len(g.Components()) != 0 {
		t.Errorf("failed resolve left %d components behind", len(g.Components()))
	}
}

func TestGarageDoorMode(t *testing.T) {
	cfg := &Config{Mode: int(ModeGarageDoor)}
	_, reg, g := newTestTopology(t, cfg)

	if err := CreateComponents(cfg, reg, g); err != nil {
		t.Fatalf("CreateComponents returned err: %v", err)
	}

	if len(g.Accessories()) != 1 {
		t.Fatalf("expected bridge only, got %d accessories", len(g.Accessories()))
	}
	if g.Bridge().A().Type != byte(accessory.TypeGarageDoorOpener) {
		t.Error("bridge category should be garage door opener")
	}
	comps := g.Components()
	if len(comps) != 1 {
		t.Fatalf("expected 1 component, got %d", len(comps))
	}
	if _, ok := comps[0].(*GarageDoorOpener); !ok {
		t.Fatalf("expected garage door opener, got %T", comps[0])
	}
	if n := countPrimary(comps); n != 1 {
		t.Errorf("expected exactly one primary component, got %d", n)
	}
}

func TestUnknownModeRejected(t *testing.T) {
	cfg := &Config{Mode: 9}
	_, reg, g := newTestTopology(t, cfg)

	err := CreateComponents(cfg, reg, g)
	if err == nil {
		t.Fatal("unknown mode should be rejected")
	}
	if !errors.Is(err, ErrConfigurationInconsistent) {
		t.Errorf("expected ErrConfigurationInconsistent, got %v", err)
	}
	if len(g.Components()) != 0 || len(g.Accessories()) != 1 {
		t.Error("failed resolve must not mutate the graph")
	}
}

func TestMomentaryWallSwitchTogglesRelay(t *testing.T) {
	cfg := &Config{Mode: int(ModeNormal)}
	drv, reg, g := newTestTopology(t, cfg)

	if err := CreateComponents(cfg, reg, g); err != nil {
		t.Fatalf("CreateComponents returned err: %v", err)
	}

	out, err := reg.FindOutput(1)
	if err != nil {
		t.Fatalf("FindOutput(1) returned err: %v", err)
	}
	before, err := out.GetState()
	if err != nil {
		t.Fatalf("GetState returned err: %v", err)
	}

	in, err := drv.FindMockInput(pinInput1)
	if err != nil {
		t.Fatalf("FindMockInput returned err: %v", err)
	}
	if err := in.Push(drivers.PushEventSinglePress); err != nil {
		t.Fatalf("Push returned err: %v", err)
	}

	after, err := out.GetState()
	if err != nil {
		t.Fatalf("GetState returned err: %v", err)
	}
	if after == before {
		t.Error("single press on the wall switch should toggle the relay")
	}
}

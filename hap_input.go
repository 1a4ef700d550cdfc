package duokit

import (
	"github.com/brutella/hap/service"
	"github.com/pkg/errors"

	"github.com/duokit/duokit/drivers"
)

// HapInput exposes a physical input directly as a stateless
// programmable switch, without any higher level service consuming it.
type HapInput struct {
	component

	Index int

	cfg *InputConfig
	in  *Input

	svc *service.StatelessProgrammableSwitch
}

func NewHapInput(index int, cfg *InputConfig, in *Input) (*HapInput, error) {
	if in == nil {
		return nil, errors.Wrapf(ErrConfigurationInconsistent, "exposed input %d missing", index)
	}
	return &HapInput{
		component: component{name: cfg.Name},
		Index:     index,
		cfg:       cfg,
		in:        in,
	}, nil
}

func (hi *HapInput) Init() error {
	hi.svc = service.NewStatelessProgrammableSwitch()
	hi.in.AddHandler(func(event drivers.PushEvent) {
		hi.svc.ProgrammableSwitchEvent.SetValue(int(event))
	})
	return nil
}

func (hi *HapInput) Sync() error {
	return nil
}

func (hi *HapInput) Service() *service.StatelessProgrammableSwitch {
	return hi.svc
}

// CreateInputService exposes input index as its own bridged accessory.
// Idempotent append; never removes existing entries.
func CreateInputService(index int, cfg *InputConfig, reg *Registry, g *AccessoryGraph) error {
	in, err := reg.FindInput(index)
	if err != nil {
		return errors.Wrapf(ErrConfigurationInconsistent, "exposed input %d: %v", index, err)
	}

	hi, err := NewHapInput(index, cfg, in)
	if err != nil {
		return err
	}
	if err := hi.Init(); err != nil {
		return err
	}

	acc := NewBridgedAccessory(aidBaseInput+uint64(index), cfg.Name)
	acc.AddService(hi.svc.S)
	g.appendAccessory(acc)
	g.appendComponent(hi)

	return nil
}

package duokit

import (
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/service"
	"github.com/pkg/errors"
)

// Stable accessory id bases, by role. An accessory's id is base plus
// its logical index, so ids survive reconfiguration.
const (
	aidBaseSwitch         uint64 = 0x100
	aidBaseInput          uint64 = 0x200
	aidBaseWindowCovering uint64 = 0x300
)

// Accessory wraps a hap accessory with a set-once category guard. The
// hap server expects the published category to be decided exactly once.
type Accessory struct {
	a           *accessory.A
	categorySet bool
}

// NewBridgeAccessory makes the bridge-primary accessory (index 0 in the
// graph). It exists before the topology resolver runs.
func NewBridgeAccessory(info accessory.Info) *Accessory {
	return &Accessory{a: accessory.New(info, accessory.TypeBridge)}
}

// NewBridgedAccessory makes an additional accessory exposed behind the
// bridge. The information service is part of the accessory from
// construction, ahead of any attached service.
func NewBridgedAccessory(id uint64, name string) *Accessory {
	a := accessory.New(accessory.Info{Name: name}, accessory.TypeOther)
	a.Id = id
	return &Accessory{a: a}
}

// SetCategory assigns the accessory category. Calling it a second time
// is an error.
func (acc *Accessory) SetCategory(typ byte) error {
	if acc.categorySet {
		return errors.Errorf("accessory %d category already set", acc.a.Id)
	}
	acc.a.Type = typ
	acc.categorySet = true
	return nil
}

func (acc *Accessory) AddService(s *service.S) {
	acc.a.AddS(s)
}

func (acc *Accessory) A() *accessory.A {
	return acc.a
}

// AccessoryGraph is the component list and accessory list assembled by
// the topology resolver. Accessory 0 is always the bridge primary.
type AccessoryGraph struct {
	comps []Component
	accs  []*Accessory
}

func NewAccessoryGraph(bridge *Accessory) *AccessoryGraph {
	return &AccessoryGraph{accs: []*Accessory{bridge}}
}

func (g *AccessoryGraph) Bridge() *Accessory {
	return g.accs[0]
}

func (g *AccessoryGraph) appendComponent(c Component) {
	g.comps = append(g.comps, c)
}

func (g *AccessoryGraph) appendAccessory(acc *Accessory) {
	g.accs = append(g.accs, acc)
}

func (g *AccessoryGraph) reverseComponents() {
	for i, j := 0, len(g.comps)-1; i < j; i, j = i+1, j-1 {
		g.comps[i], g.comps[j] = g.comps[j], g.comps[i]
	}
}

func (g *AccessoryGraph) Components() []Component {
	return g.comps
}

func (g *AccessoryGraph) Accessories() []*Accessory {
	return g.accs
}

// HapAccessories returns the raw accessory list for the hap server,
// bridge first.
func (g *AccessoryGraph) HapAccessories() []*accessory.A {
	out := make([]*accessory.A, 0, len(g.accs))
	for _, acc := range g.accs {
		out = append(out, acc.a)
	}
	return out
}

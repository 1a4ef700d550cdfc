package duokit

import (
	"github.com/pkg/errors"
)

// Registry owns every peripheral for the device session. Peripherals
// are added during factory construction only; lookups are by logical
// index (1..N, temperature sensor at 0).
type Registry struct {
	inputs  []*Input
	outputs []*Output
	meters  []*PowerMeter
	temp    *TempSensor
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) addInput(in *Input) {
	r.inputs = append(r.inputs, in)
}

func (r *Registry) addOutput(out *Output) {
	r.outputs = append(r.outputs, out)
}

func (r *Registry) addPowerMeter(pm *PowerMeter) {
	r.meters = append(r.meters, pm)
}

func (r *Registry) dropPowerMeters() {
	r.meters = nil
}

func (r *Registry) setTempSensor(ts *TempSensor) {
	r.temp = ts
}

func (r *Registry) FindInput(index int) (*Input, error) {
	for _, in := range r.inputs {
		if in.Index == index {
			return in, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "input %d", index)
}

func (r *Registry) FindOutput(index int) (*Output, error) {
	for _, out := range r.outputs {
		if out.Index == index {
			return out, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "output %d", index)
}

func (r *Registry) FindPowerMeter(index int) (*PowerMeter, error) {
	for _, pm := range r.meters {
		if pm.Index == index {
			return pm, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "power meter %d", index)
}

func (r *Registry) TempSensor() *TempSensor {
	return r.temp
}

func (r *Registry) Inputs() []*Input {
	return r.inputs
}

func (r *Registry) Outputs() []*Output {
	return r.outputs
}

func (r *Registry) PowerMeters() []*PowerMeter {
	return r.meters
}

package duokit

import (
	"math"

	"github.com/pkg/errors"

	"github.com/duokit/duokit/drivers"
)

// Board NTC: 10k @ 25 degC, beta 3950, behind a 33k divider on 3.3V.
const (
	ntcVref    = 3.3
	ntcDivider = 33000.0
	ntcR25     = 10000.0
	ntcBeta    = 3950.0
	ntcT25     = 298.15
)

// TempSensor is the single board temperature sensor at logical index 0.
// Construction cannot fail; only reads can.
type TempSensor struct {
	Index   int
	Channel int

	reader drivers.AnalogReader
}

func NewTempSensorNTC(index int, channel int, reader drivers.AnalogReader) *TempSensor {
	return &TempSensor{Index: index, Channel: channel, reader: reader}
}

// GetTemperature converts the divider voltage to degrees Celsius.
func (ts *TempSensor) GetTemperature() (float64, error) {
	if ts.reader == nil {
		return 0, errors.Wrapf(ErrUnavailable, "temp sensor %d has no analog reader", ts.Index)
	}
	frac, err := ts.reader.ReadFraction(ts.Channel)
	if err != nil {
		return 0, errors.Wrapf(err, "temp sensor %d read failed", ts.Index)
	}
	if frac <= 0 || frac >= 1 {
		return 0, errors.Errorf("temp sensor %d reading out of range: %f", ts.Index, frac)
	}

	rNtc := ntcDivider * frac / (1 - frac)
	invT := 1/ntcT25 + math.Log(rNtc/ntcR25)/ntcBeta
	return 1/invT - 273.15, nil
}

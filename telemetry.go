package duokit

import (
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
)

// InfluxTelemetry exports power and temperature readings to InfluxDB.
// Writes are batched and asynchronous.
type InfluxTelemetry struct {
	Host         string
	Organization string
	Bucket       string
	Token        string

	client   influxdb2.Client
	writeAPI api.WriteAPI
}

func (it *InfluxTelemetry) Setup() error {
	if len(it.Host) == 0 {
		return errors.New("influx telemetry host not set")
	}

	it.client = influxdb2.NewClient(it.Host, it.Token)
	it.writeAPI = it.client.WriteAPI(it.Organization, it.Bucket)
	return nil
}

func (it *InfluxTelemetry) ready() bool {
	return it.writeAPI != nil
}

// PublishMeter writes one meter reading set. Read errors on individual
// values drop that field only.
func (it *InfluxTelemetry) PublishMeter(device string, pm *PowerMeter) {
	if !it.ready() {
		return
	}

	fields := map[string]interface{}{}
	if w, err := pm.PowerW(); err == nil {
		fields["power_w"] = w
	}
	if wh, err := pm.EnergyWh(); err == nil {
		fields["energy_wh"] = wh
	}
	if v, err := pm.VoltageV(); err == nil {
		fields["voltage_v"] = v
	}
	if a, err := pm.CurrentA(); err == nil {
		fields["current_a"] = a
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"power",
		map[string]string{
			"device":  device,
			"channel": strconv.Itoa(pm.Index),
		},
		fields,
		time.Now(),
	)
	it.writeAPI.WritePoint(point)
}

func (it *InfluxTelemetry) PublishTemperature(device string, ts *TempSensor) {
	if !it.ready() {
		return
	}

	temp, err := ts.GetTemperature()
	if err != nil {
		return
	}

	point := write.NewPoint(
		"board_temperature",
		map[string]string{"device": device},
		map[string]interface{}{"celsius": temp},
		time.Now(),
	)
	it.writeAPI.WritePoint(point)
}

func (it *InfluxTelemetry) Close() {
	if !it.ready() {
		return
	}
	it.writeAPI.Flush()
	it.client.Close()
}

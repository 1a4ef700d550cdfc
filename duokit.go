package duokit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	dnslog "github.com/brutella/dnssd/log"
	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	hklog "github.com/brutella/hap/log"
	"github.com/eclipse/paho.golang/paho"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/duokit/duokit/drivers"
	"github.com/duokit/duokit/mqtt"
)

const defaultHomeKitDirectory = "./homekit"
const defaultBridgeName = "duokit"
const bridgeManufacturer = "github.com/duokit"
const telemetryEveryTicks = 30

// Device is the root of the controller, unmarshalled from the JSON
// configuration file.
type Device struct {
	Name string

	Config *Config

	HkPin       string
	HkDirectory string
	HkAddress   string
	HkDebug     bool

	StatusAddr string
	MqttBroker string
	I2CBus     string

	Influx *InfluxTelemetry

	Cdev       *drivers.CdevIO
	Gpio       *drivers.GpIO
	Mcp23017   *drivers.McpIO
	FakeDriver *drivers.MockIoDriver

	// analog reader for the board NTC; the fake driver provides one
	// for bench runs, real hardware reads the SoC ADC
	Analog drivers.AnalogReader

	driver      drivers.IoDriver
	bus         i2c.BusCloser
	registry    *Registry
	graph       *AccessoryGraph
	metering    MeteringStatus
	topologyErr error
	mqttClient  *mqtt.MqttClient
	logger      *log.Logger
	ticker      *time.Ticker
}

func (d *Device) log() *log.Logger {
	if d.logger == nil {
		d.logger = log.Default()
	}
	return d.logger
}

func (d *Device) bridgeName() string {
	if len(d.Name) > 0 {
		return d.Name
	}
	return defaultBridgeName
}

// InitDriver selects the configured io backend and sets it up with the
// hardware variant's pin map. Exactly one backend must be configured.
func (d *Device) InitDriver(ctx context.Context) error {
	all := []drivers.IoDriver{}
	if d.Cdev != nil {
		all = append(all, d.Cdev)
	}
	if d.Gpio != nil {
		all = append(all, d.Gpio)
	}
	if d.Mcp23017 != nil {
		all = append(all, d.Mcp23017)
	}
	if d.FakeDriver != nil {
		all = append(all, d.FakeDriver)
	}

	if len(all) == 0 {
		return errors.New("no io driver configured")
	}
	if len(all) > 1 {
		return errors.Errorf("exactly one io driver expected, got %d", len(all))
	}
	d.driver = all[0]

	inputs, outputs := DeviceIoSpecs()
	err := d.driver.Setup(ctx, inputs, outputs)
	if err != nil {
		return errors.Wrapf(err, "failed to setup %s driver", d.driver)
	}

	return nil
}

func (d *Device) openBus() {
	if d.FakeDriver != nil {
		return
	}

	if _, err := host.Init(); err != nil {
		d.log().Warn("periph host init failed, no i2c bus", "err", err)
		return
	}
	bus, err := i2creg.Open(d.I2CBus)
	if err != nil {
		d.log().Warn("i2c bus open failed, power metering will be unavailable", "err", err)
		return
	}
	d.bus = bus
}

// InitPeripherals runs the peripheral factory and records the metering
// status.
func (d *Device) InitPeripherals() error {
	if d.Config == nil {
		d.Config = &Config{}
	}
	d.Config.FillDefaults()

	d.openBus()
	d.registry = NewRegistry()

	var bus i2c.Bus
	if d.bus != nil {
		bus = d.bus
	}
	factory := NewPeripheralFactory(d.driver, d.Analog, bus, d.log())
	factory.SetFactoryReset(d.factoryReset)

	status, err := factory.CreatePeripherals(d.registry)
	if err != nil {
		return errors.Wrap(err, "peripheral bring-up failed")
	}
	d.metering = status
	d.log().Info("peripherals ready", "metering", status)
	return nil
}

// InitComponents builds the bridge-primary accessory and resolves the
// topology. A topology error is recorded and logged but does not stop
// the device; the bridge stays reachable for reconfiguration.
func (d *Device) InitComponents(firmwareVersion string) error {
	bridge := NewBridgeAccessory(accessory.Info{
		Name:         d.bridgeName(),
		Manufacturer: bridgeManufacturer,
		Firmware:     firmwareVersion,
	})
	d.graph = NewAccessoryGraph(bridge)

	err := CreateComponents(d.Config, d.registry, d.graph)
	if err != nil {
		d.topologyErr = err
		d.log().Error("topology resolution failed, serving bare bridge", "err", err)
		return nil
	}

	d.log().Info("topology resolved",
		"mode", OperatingMode(d.Config.Mode),
		"components", len(d.graph.Components()),
		"accessories", len(d.graph.Accessories()))
	return nil
}

func (d *Device) Components() []Component {
	if d.graph == nil {
		return nil
	}
	return d.graph.Components()
}

func (d *Device) Metering() MeteringStatus {
	return d.metering
}

func (d *Device) TopologyErr() error {
	return d.topologyErr
}

func (d *Device) hkDirectory() string {
	if len(d.HkDirectory) > 1 {
		return d.HkDirectory
	}
	return defaultHomeKitDirectory
}

// factoryReset wipes the pairing store. Bound to the input 1 long-hold
// sequence by the peripheral factory.
func (d *Device) factoryReset() error {
	d.log().Warn("factory reset: wiping pairing store", "dir", d.hkDirectory())
	return os.RemoveAll(d.hkDirectory())
}

// StartTicker drives component state machines and telemetry.
func (d *Device) StartTicker(interval time.Duration) {
	d.ticker = time.NewTicker(interval)
	tick := 0

	for range d.ticker.C {
		for _, comp := range d.Components() {
			err := comp.Sync()
			if err != nil {
				d.log().Error("component sync failed", "component", comp.Name(), "err", err)
			}
		}

		tick++
		if tick%telemetryEveryTicks == 0 {
			d.publishTelemetry()
		}
	}
}

func (d *Device) publishTelemetry() {
	if d.registry == nil {
		return
	}

	for _, pm := range d.registry.PowerMeters() {
		if d.Influx != nil {
			d.Influx.PublishMeter(d.bridgeName(), pm)
		}
		if d.mqttClient != nil {
			w, err := pm.PowerW()
			if err == nil {
				topic := fmt.Sprintf("duokit/%s/meter/%d/power", d.bridgeName(), pm.Index)
				d.mqttClient.Publish(topic, []byte(fmt.Sprintf("%.1f", w)))
			}
		}
	}

	ts := d.registry.TempSensor()
	if ts != nil && d.Influx != nil {
		d.Influx.PublishTemperature(d.bridgeName(), ts)
	}
}

// StartHomeKit serves the accessory graph until the context is
// cancelled or a signal arrives.
func (d *Device) StartHomeKit(ctx context.Context, firmwareVersion string) error {
	if d.graph == nil {
		return errors.New("components not initialized")
	}

	accs := d.graph.HapAccessories()
	for _, acc := range accs {
		if acc.Info != nil && acc.Info.FirmwareRevision != nil {
			acc.Info.FirmwareRevision.SetValue(firmwareVersion)
		}
	}

	store := hap.NewFsStore(d.hkDirectory())
	hkServer, err := hap.NewServer(store, accs[0], accs[1:]...)
	if err != nil {
		return errors.Wrap(err, "failed to create HomeKit server")
	}
	hkServer.Pin = d.HkPin
	if len(d.HkAddress) > 0 {
		hkServer.Addr = d.HkAddress
	}

	if d.HkDebug {
		hklog.Debug.Enable()
		dnslog.Debug.Enable()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-c
		signal.Stop(c)
		cancel()
	}()

	return hkServer.ListenAndServe(ctx)
}

type deviceStatus struct {
	Name        string       `json:"name"`
	Mode        string       `json:"mode"`
	Metering    string       `json:"metering"`
	TopologyErr string       `json:"topology_error,omitempty"`
	Inputs      []ioState    `json:"inputs"`
	Outputs     []ioState    `json:"outputs"`
	Meters      []meterState `json:"meters"`
	Temperature *float64     `json:"temperature_c,omitempty"`
}

type ioState struct {
	Index int  `json:"index"`
	On    bool `json:"on"`
}

type meterState struct {
	Index  int     `json:"index"`
	PowerW float64 `json:"power_w"`
}

func (d *Device) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := deviceStatus{
		Name:     d.bridgeName(),
		Mode:     OperatingMode(d.Config.Mode).String(),
		Metering: d.metering.String(),
	}
	if d.topologyErr != nil {
		status.TopologyErr = d.topologyErr.Error()
	}

	for _, in := range d.registry.Inputs() {
		on, _ := in.GetState()
		status.Inputs = append(status.Inputs, ioState{Index: in.Index, On: on})
	}
	for _, out := range d.registry.Outputs() {
		on, _ := out.GetState()
		status.Outputs = append(status.Outputs, ioState{Index: out.Index, On: on})
	}
	for _, pm := range d.registry.PowerMeters() {
		pw, err := pm.PowerW()
		if err != nil {
			continue
		}
		status.Meters = append(status.Meters, meterState{Index: pm.Index, PowerW: pw})
	}
	if ts := d.registry.TempSensor(); ts != nil {
		if temp, err := ts.GetTemperature(); err == nil {
			status.Temperature = &temp
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// StartStatusServer exposes a local diagnostics endpoint.
func (d *Device) StartStatusServer() error {
	if len(d.StatusAddr) == 0 {
		return errors.New("status address not set")
	}

	router := httprouter.New()
	router.GET("/status", d.handleStatus)

	server := &http.Server{
		Addr:              d.StatusAddr,
		Handler:           router,
		ReadTimeout:       3 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      3 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			d.log().Error("status server stopped", "err", err)
		}
	}()
	return nil
}

type switchCommandHandler struct {
	sw    *RelaySwitch
	topic string
}

func (h *switchCommandHandler) MqttSubscribeTopic() string {
	return h.topic
}

func (h *switchCommandHandler) MqttHandle(pub *paho.Publish) {
	switch strings.ToLower(strings.TrimSpace(string(pub.Payload))) {
	case "on", "1", "true":
		h.sw.SetOn(true)
	case "off", "0", "false":
		h.sw.SetOn(false)
	case "toggle":
		h.sw.toggle()
	}
}

// InitMqtt connects to the broker, subscribes switch command topics and
// publishes input push events.
func (d *Device) InitMqtt() (err error) {
	if len(d.MqttBroker) == 0 {
		return errors.New("mqtt broker not set")
	}

	mc, err := mqtt.NewMqttClient(d.MqttBroker, d.bridgeName())
	if err != nil {
		return errors.Wrap(err, "failed to create mqtt client")
	}
	d.mqttClient = mc

	handlers := []mqtt.MqttHandler{}
	for _, comp := range d.Components() {
		rs, ok := comp.(*RelaySwitch)
		if !ok {
			continue
		}
		handlers = append(handlers, &switchCommandHandler{
			sw:    rs,
			topic: fmt.Sprintf("duokit/%s/switch/%d/set", d.bridgeName(), rs.Index),
		})
	}

	for _, in := range d.registry.Inputs() {
		input := in
		topic := fmt.Sprintf("duokit/%s/input/%d/event", d.bridgeName(), input.Index)
		input.AddHandler(func(event drivers.PushEvent) {
			mc.Publish(topic, []byte(pushEventName(event)))
		})
	}

	err = mc.Connect(handlers)
	if err != nil {
		return errors.Wrap(err, "failed to connect to mqtt broker")
	}
	return nil
}

func pushEventName(event drivers.PushEvent) string {
	switch event {
	case drivers.PushEventDoublePress:
		return "double"
	case drivers.PushEventLongPress:
		return "long"
	}
	return "single"
}

func (d *Device) Close() (err error) {
	if d.ticker != nil {
		d.ticker.Stop()
	}
	if d.Influx != nil {
		d.Influx.Close()
	}
	if d.mqttClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		d.mqttClient.Disconnect(ctx)
	}
	if d.bus != nil {
		closeErr := d.bus.Close()
		if closeErr != nil {
			err = closeErr
		}
	}
	if d.driver != nil {
		closeErr := d.driver.Close()
		if closeErr != nil {
			if err == nil {
				err = closeErr
			} else {
				err = errors.Wrap(closeErr, err.Error())
			}
		}
	}
	return
}

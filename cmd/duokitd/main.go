package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hubertat/servicemaker"

	"github.com/duokit/duokit"
)

const defaultSyncInterval = "330ms"

var (
	Version string
	Build   string

	config       = flag.String("config", "config.json", "path of the configuration file")
	flagInstall  = flag.Bool("install", false, "Install service in os")
	syncInterval = flag.String("sync", defaultSyncInterval, "sync interval (time.Duration)")

	duoService = servicemaker.ServiceMaker{
		User:               "duokit",
		UserGroups:         []string{"gpio", "i2c"},
		ServicePath:        "/etc/systemd/system/duokitd.service",
		ServiceDescription: "duokit service: HomeKit dual relay controller. github.com/duokit/duokit",
		ExecDir:            "/srv/duokit",
		ExecName:           "duokitd",
	}
)

func main() {
	log.Info("duokitd started", "version", Version, "build", Build)
	flag.Parse()

	if *flagInstall {
		err := duoService.InstallService()
		if err != nil {
			log.Fatal("service install failed", "err", err)
		}
		log.Info("service installed!")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncDuration, err := time.ParseDuration(*syncInterval)
	if err != nil {
		log.Fatal("bad sync interval", "err", err)
	}

	device := &duokit.Device{}
	configFile, err := os.Open(*config)
	if err != nil {
		log.Fatal("can't open config file, will terminate", "path", *config, "err", err)
	}
	cBuff, err := io.ReadAll(configFile)
	configFile.Close()
	if err != nil {
		log.Fatal("failed reading config file", "err", err)
	}
	err = json.Unmarshal(cBuff, device)
	if err != nil {
		log.Fatal("failed unmarshalling json config", "err", err)
	}

	log.Info("will init io driver...")
	err = device.InitDriver(ctx)
	defer device.Close()
	if err != nil {
		log.Fatal("driver init failed", "err", err)
	}

	log.Info("will init peripherals...")
	err = device.InitPeripherals()
	if err != nil {
		log.Fatal("peripheral bring-up failed", "err", err)
	}

	err = device.InitComponents(Version)
	if err != nil {
		log.Fatal("component init failed", "err", err)
	}

	if device.Influx != nil {
		err = device.Influx.Setup()
		if err != nil {
			log.Error("influx telemetry setup failed, continuing without it", "err", err)
			device.Influx = nil
		}
	}

	if len(device.MqttBroker) > 0 {
		err = device.InitMqtt()
		if err != nil {
			log.Error("mqtt setup failed, continuing without it", "err", err)
		}
	}

	if len(device.StatusAddr) > 0 {
		err = device.StartStatusServer()
		if err != nil {
			log.Error("status server failed to start", "err", err)
		}
	}

	if len(device.HkPin) == 8 {
		log.Info("starting with HomeKit server")
		go device.StartTicker(syncDuration)
		log.Fatal("HomeKit server stopped", "err", device.StartHomeKit(ctx, Version))
	} else {
		log.Info("HomeKit pin not configured, running without HomeKit")
		device.StartTicker(syncDuration)
	}
}

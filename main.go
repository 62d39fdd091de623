package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericogr/fsr-serial/pkg/config"
	"github.com/ericogr/fsr-serial/pkg/output"
	"github.com/ericogr/fsr-serial/pkg/output/console"
	"github.com/ericogr/fsr-serial/pkg/output/mqtt"
	"github.com/ericogr/fsr-serial/pkg/output/serial"
	"github.com/ericogr/fsr-serial/pkg/sampler"
	"github.com/ericogr/fsr-serial/pkg/sensor"
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.ListPorts {
		ports, err := serial.Ports()
		if err != nil {
			log.Fatal(err)
		}
		for _, p := range ports {
			fmt.Printf("%s\t%s\n", p.Name, p.Description)
		}
		return
	}

	log.Printf("starting: sensor=%s channel=%d interval=%dms", cfg.SensorType, cfg.Channel, cfg.IntervalMs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatal(err)
	}
}

// replaced in tests
var (
	newSensor  = initSensor
	newOutputs = initOutputs
)

// run owns the sensor and outputs; they are closed on every return path.
func run(ctx context.Context, cfg config.Config) error {
	sens, err := newSensor(cfg)
	if err != nil {
		return err
	}
	defer sens.Close()

	outs, err := newOutputs(cfg)
	if err != nil {
		return err
	}
	defer closeOutputs(outs)

	s := sampler.New(sens, outs, sampler.Options{
		Channel:       cfg.Channel,
		Interval:      time.Duration(cfg.IntervalMs) * time.Millisecond,
		MaxIterations: cfg.MaxIterations,
	})
	if err := s.Setup(); err != nil {
		return err
	}

	if err := s.Run(ctx); err != nil {
		log.Printf("sampler: %v", err)
	}
	st := s.Stats()
	log.Printf("stopped: iterations=%d emitted=%d read_errors=%d write_errors=%d",
		st.Iterations, st.Emitted, st.ReadErrors, st.WriteErrors)
	return nil
}

func initSensor(cfg config.Config) (sensor.Sensor, error) {
	switch cfg.SensorType {
	case config.SensorReal:
		return sensor.NewADS1115Sensor(cfg)
	case config.SensorSimulation:
		return sensor.NewFakeSensor(), nil
	case config.SensorReplay:
		return sensor.NewReplaySensor(cfg.ReplayValues, cfg.ReplayLoop), nil
	}
	return nil, fmt.Errorf("unknown sensor type %q", cfg.SensorType)
}

// initOutputs opens every configured output in order. On failure the
// outputs opened so far are closed.
func initOutputs(cfg config.Config) ([]output.Output, error) {
	term, err := output.Terminator(cfg.LineEnding)
	if err != nil {
		return nil, err
	}
	outs := make([]output.Output, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		var (
			o   output.Output
			err error
		)
		switch oc.Type {
		case config.OutputSerial:
			o, err = serial.NewSerial(cfg.Serial, term)
		case config.OutputConsole:
			o = console.NewConsole(term)
		case config.OutputMQTT:
			if oc.MQTT == nil {
				err = fmt.Errorf("mqtt output without mqtt settings")
				break
			}
			o, err = mqtt.NewMQTT(*oc.MQTT, cfg.Channel)
		default:
			err = fmt.Errorf("unknown output type %q", oc.Type)
		}
		if err != nil {
			closeOutputs(outs)
			return nil, err
		}
		outs = append(outs, o)
	}
	return outs, nil
}

func closeOutputs(outs []output.Output) {
	for _, o := range outs {
		if err := o.Close(); err != nil {
			log.Printf("close output: %v", err)
		}
	}
}

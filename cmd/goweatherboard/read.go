package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/d21d3q/goweatherboard/internal/config"
	"github.com/d21d3q/goweatherboard/internal/monitor"
	"github.com/d21d3q/goweatherboard/internal/options"
	"github.com/d21d3q/goweatherboard/internal/publish"
	"github.com/d21d3q/goweatherboard/internal/serialport"
	"github.com/d21d3q/goweatherboard/internal/station"
	"github.com/d21d3q/goweatherboard/pkg/weatherboard"
)

var (
	readCmd = &cobra.Command{
		Use:   "read",
		Short: "Poll the board and publish its readings",
		Args:  cobra.NoArgs,
		RunE:  runRead,
	}

	devices []string
	frames  int
)

func init() {
	readCmd.Flags().StringSliceVar(&devices, "device", nil, "serial device to try, repeatable (overrides serial.devices)")
	readCmd.Flags().IntVar(&frames, "frames", 0, "frames per polling cycle (overrides poll.frames_per_cycle)")
}

func runRead(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(devices) > 0 {
		cfg.Serial.Devices = devices
	}
	if frames > 0 {
		cfg.Poll.FramesPerCycle = frames
	}
	log := logrus.NewEntry(setupLogger(cfg.Log))
	ctx := options.WithLogger(cmd.Context(), log)

	port, err := serialport.Open(cfg.Serial, log.WithField("component", "serial"))
	if err != nil {
		return err
	}
	defer port.Close()

	dec, err := weatherboard.NewDecoder(port, decoderOptions(cfg, log))
	if err != nil {
		return err
	}

	metrics := monitor.New()
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, log.WithField("component", "metrics")); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	sinks, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				log.Warnf("close %s sink: %v", s.Name(), err)
			}
		}
	}()

	st := station.New(dec, station.Options{
		Device:   port.Name(),
		Frames:   cfg.Poll.FramesPerCycle,
		Interval: cfg.Poll.Interval,
		Metrics:  metrics,
		Sinks:    sinks,
		Logger:   log,
	})
	return st.Run(ctx)
}

func openSinks(ctx context.Context, cfg *config.Config) ([]publish.Sink, error) {
	log := options.Logger(ctx)
	var sinks []publish.Sink
	if cfg.MQTT.Enabled {
		s, err := publish.NewMQTTSink(cfg.MQTT, log.WithField("component", "mqtt"))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Redis.Enabled {
		s, err := publish.NewRedisSink(ctx, cfg.Redis, log.WithField("component", "redis"))
		if err != nil {
			for _, opened := range sinks {
				_ = opened.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

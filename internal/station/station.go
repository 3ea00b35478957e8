package station

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/d21d3q/goweatherboard/internal/monitor"
	"github.com/d21d3q/goweatherboard/internal/publish"
	"github.com/d21d3q/goweatherboard/pkg/weatherboard"
)

const (
	DefaultInterval = 200 * time.Millisecond
	DefaultFrames   = 9
)

// Options configures a Station. Zero values fall back to the defaults.
type Options struct {
	// Device labels published messages.
	Device string
	// Frames is the number of frames decoded per cycle.
	Frames int
	// Interval is the time between cycle starts.
	Interval time.Duration
	// Metrics records cycles and publish failures; nil disables them.
	Metrics *monitor.Metrics
	// Sinks receive one message per cycle.
	Sinks []publish.Sink
	// Logger is the parent entry for station logs.
	Logger *logrus.Entry
}

// Station polls one board: a cycle of frames per tick, folded into a
// snapshot and shipped to every sink.
type Station struct {
	decoder  *weatherboard.Decoder
	device   string
	frames   int
	interval time.Duration
	snapshot *weatherboard.Snapshot
	metrics  *monitor.Metrics
	sinks    []publish.Sink
	log      *logrus.Entry
	now      func() time.Time
}

// New returns a station polling through dec.
func New(dec *weatherboard.Decoder, opts Options) *Station {
	s := &Station{
		decoder:  dec,
		device:   opts.Device,
		frames:   opts.Frames,
		interval: opts.Interval,
		snapshot: weatherboard.NewSnapshot(),
		metrics:  opts.Metrics,
		sinks:    opts.Sinks,
		log:      opts.Logger,
		now:      time.Now,
	}
	if s.frames <= 0 {
		s.frames = DefaultFrames
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithField("component", "station")
	return s
}

// Snapshot returns the live snapshot.
func (s *Station) Snapshot() *weatherboard.Snapshot { return s.snapshot }

// Poll decodes one cycle, records it and publishes the result. Readings
// completed before an error are still recorded.
func (s *Station) Poll(ctx context.Context) ([]weatherboard.Reading, error) {
	start := s.now()
	readings, err := s.decoder.DecodeCycle(ctx, s.frames)
	s.metrics.ObserveCycle(readings, s.now().Sub(start), err)
	stored := s.snapshot.Apply(readings, start)
	s.log.Debugf("cycle: %d/%d frames, %d values stored", len(readings), s.frames, stored)

	if len(readings) > 0 && !errors.Is(err, weatherboard.ErrCancelled) {
		s.publish(ctx, publish.NewMessage(s.device, s.decoder.FieldMap().Name(), start, s.snapshot, readings))
	}
	return readings, err
}

func (s *Station) publish(ctx context.Context, msg publish.Message) {
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, msg); err != nil {
			s.metrics.PublishFailed(sink.Name())
			s.log.WithField("sink", sink.Name()).Errorf("publish failed: %v", err)
		}
	}
}

// Run polls until ctx is done or the source closes. A stalled board is
// logged and polled again on the next tick.
func (s *Station) Run(ctx context.Context) error {
	s.log.Infof("polling %s every %s, %d frames per cycle", s.device, s.interval, s.frames)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		_, err := s.Poll(ctx)
		switch {
		case err == nil:
		case errors.Is(err, weatherboard.ErrCancelled):
			return nil
		case errors.Is(err, weatherboard.ErrSourceStalled):
			s.log.Warnf("board went quiet: %v", err)
		default:
			s.log.Errorf("stopping: %v", err)
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

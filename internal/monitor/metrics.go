package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/d21d3q/goweatherboard/pkg/weatherboard"
)

// Metrics holds the station's collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Frames        *prometheus.CounterVec
	Retries       prometheus.Counter
	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	Values        *prometheus.GaugeVec
	PublishErrors *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goweatherboard_frames_total",
			Help: "Frames decoded, by outcome.",
		}, []string{"status"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goweatherboard_wait_retries_total",
			Help: "Would-block results met while a payload was being collected.",
		}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goweatherboard_cycles_total",
			Help: "Polling cycles, by result.",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "goweatherboard_cycle_duration_seconds",
			Help:    "Time spent decoding one polling cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		Values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "goweatherboard_reading_value",
			Help: "Latest good value per field.",
		}, []string{"field"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goweatherboard_publish_errors_total",
			Help: "Failed publishes, by sink.",
		}, []string{"sink"}),
	}
	m.Registry.MustRegister(
		m.Frames,
		m.Retries,
		m.Cycles,
		m.CycleDuration,
		m.Values,
		m.PublishErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCycle records one cycle's readings. err is the cycle's terminal
// error, nil when all frames arrived.
func (m *Metrics) ObserveCycle(readings []weatherboard.Reading, took time.Duration, err error) {
	if m == nil {
		return
	}
	for _, r := range readings {
		m.Frames.WithLabelValues(r.Status()).Inc()
		m.Retries.Add(float64(r.Retries))
		if r.OK() && r.Field != "" {
			switch v := r.Value().(type) {
			case float64:
				m.Values.WithLabelValues(r.Field).Set(v)
			case int64:
				m.Values.WithLabelValues(r.Field).Set(float64(v))
			}
		}
	}
	m.Cycles.WithLabelValues(cycleResult(err)).Inc()
	m.CycleDuration.Observe(took.Seconds())
}

func cycleResult(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, weatherboard.ErrCancelled):
		return "cancelled"
	case errors.Is(err, weatherboard.ErrSourceStalled):
		return "stalled"
	case errors.Is(err, weatherboard.ErrSourceClosed):
		return "closed"
	default:
		return "error"
	}
}

// PublishFailed counts a failed publish on sink.
func (m *Metrics) PublishFailed(sink string) {
	if m == nil {
		return
	}
	m.PublishErrors.WithLabelValues(sink).Inc()
}

// Handler serves /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve runs the metrics endpoint until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *logrus.Entry) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Infof("metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

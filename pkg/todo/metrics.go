package todo

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/srediag/todo-shm/pkg/shm"
)

const namespace = "todoshm"

// Metrics holds the Prometheus metrics of one client.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Records    prometheus.Gauge
}

// NewMetrics registers the client metrics on reg. Nothing stays registered
// when it fails.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	f := promauto.With(nil)
	m := &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "List operations by result.",
		}, []string{"op", "result"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "List operation latency including the wait for the shared lock.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"op"}),
		Records: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Records in the list as last observed by this process.",
		}),
	}
	if err := register(reg, m.collectors()...); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers every collector or, on the first failure, none of them.
func register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for i, c := range cs {
		if err := reg.Register(c); err != nil {
			unregister(reg, cs[:i]...)
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	return nil
}

func unregister(reg prometheus.Registerer, cs ...prometheus.Collector) {
	for _, c := range cs {
		reg.Unregister(c)
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Operations, m.Duration, m.Records}
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	m.Operations.WithLabelValues(op, resultLabel(err)).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shm.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, shm.ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, shm.ErrDescriptionTooLong):
		return "description_too_long"
	case errors.Is(err, shm.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, shm.ErrAlreadyDestroyed):
		return "destroyed"
	}
	return "error"
}

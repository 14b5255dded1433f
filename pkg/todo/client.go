package todo

import (
	"context"
	"sync"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/srediag/todo-shm/api"
	"github.com/srediag/todo-shm/internal/logging"
	"github.com/srediag/todo-shm/pkg/shm"
)

var _ api.TodoList = (*Client)(nil)

// Client is the handle a process uses to reach a shared list.
type Client struct {
	cfg      Config
	store    *shm.Store
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	meter    metric.Meter
	tracer   trace.Tracer

	closeOnce sync.Once
	closeErr  error

	healthOnce sync.Once
	health     healthcheck.Handler
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRegistry registers the client metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Client) { c.registry = reg }
}

// WithMeter instruments the underlying store with an OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(c *Client) { c.meter = m }
}

// WithTracer instruments the underlying store with an OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// Open creates the list when cfg.Create is set and attaches to it otherwise.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := VerifyConfig(cfg); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}

	// metrics are registered before the segment exists so that a registry
	// conflict leaves nothing behind in shared memory
	metrics, err := NewMetrics(c.registry)
	if err != nil {
		return nil, err
	}
	recoveries := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "lock_recoveries",
		Help:      "Locks taken over from dead holders since the list was created.",
	}, func() float64 {
		if c.store == nil {
			return 0
		}
		n, _ := c.store.LockRecoveries()
		return float64(n)
	})
	if err := register(c.registry, recoveries); err != nil {
		unregister(c.registry, metrics.collectors()...)
		return nil, err
	}
	c.metrics = metrics

	shmOpts := shm.Options{
		Name:          cfg.Name,
		Dir:           cfg.Dir,
		Capacity:      cfg.Capacity,
		AttachTimeout: cfg.AttachTimeout,
		Meter:         c.meter,
		Tracer:        c.tracer,
	}
	var store *shm.Store
	if cfg.Create {
		store, err = shm.Create(ctx, shmOpts)
	} else {
		store, err = shm.Attach(ctx, shmOpts)
	}
	if err != nil {
		unregister(c.registry, append(metrics.collectors(), recoveries)...)
		c.logger.Warn("open store failed",
			zap.String("name", cfg.Name), zap.Bool("create", cfg.Create), zap.Error(err))
		return nil, err
	}
	c.store = store

	c.logger.Info("store opened",
		zap.String("name", cfg.Name),
		zap.String("path", c.store.Path()),
		zap.Int("capacity", c.store.Capacity()),
		zap.Bool("owner", c.store.Owner()))
	return c, nil
}

// Name returns the list name.
func (c *Client) Name() string { return c.cfg.Name }

// Owner reports whether this client created the list.
func (c *Client) Owner() bool { return c.store.Owner() }

// Capacity returns the number of record slots.
func (c *Client) Capacity() int { return c.store.Capacity() }

// Registry returns the registry holding this client's metrics.
func (c *Client) Registry() *prometheus.Registry { return c.registry }

func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.LockTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.LockTimeout)
	}
	return ctx, func() {}
}

// Add appends a record and returns its zero-based index.
func (c *Client) Add(ctx context.Context, description string) (int, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	start := time.Now()
	idx, err := c.store.Add(ctx, description)
	c.metrics.observe("add", start, err)
	if err != nil {
		c.logger.Debug("add failed", zap.Error(err))
		return idx, err
	}
	c.metrics.Records.Set(float64(idx + 1))
	c.logger.Debug("record added", zap.Int("index", idx), zap.Int("bytes", len(description)))
	return idx, nil
}

// Complete marks the record at the zero-based index completed.
func (c *Client) Complete(ctx context.Context, index int) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	start := time.Now()
	err := c.store.Complete(ctx, index)
	c.metrics.observe("complete", start, err)
	if err != nil {
		c.logger.Debug("complete failed", zap.Int("index", index), zap.Error(err))
		return err
	}
	c.logger.Debug("record completed", zap.Int("index", index))
	return nil
}

// List returns a private copy of the records.
func (c *Client) List(ctx context.Context) ([]shm.Record, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	start := time.Now()
	records, err := c.store.List(ctx)
	c.metrics.observe("list", start, err)
	if err != nil {
		c.logger.Debug("list failed", zap.Error(err))
		return nil, err
	}
	c.metrics.Records.Set(float64(len(records)))
	return records, nil
}

// Close destroys the list if this client owns it, then detaches. It is safe
// to call more than once; later calls return the first result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.store.Owner() {
			if err := c.store.Destroy(); err != nil {
				c.logger.Warn("destroy store failed", zap.String("name", c.cfg.Name), zap.Error(err))
				c.closeErr = err
			} else {
				c.logger.Info("store destroyed", zap.String("name", c.cfg.Name))
			}
		}
		c.store.Detach()
		c.logger.Info("store detached", zap.String("name", c.cfg.Name))
	})
	return c.closeErr
}

package todo

import (
	"context"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/xid"
)

func testConfig(create bool) Config {
	cfg := DefaultConfig()
	cfg.Name = "todoshm-test-" + xid.New().String()
	cfg.Create = create
	return cfg
}

func skipUnlessLinux(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skipf("shared memory segments are not supported on %s", runtime.GOOS)
	}
}

// openOwner creates a list that is closed when the test ends.
func openOwner(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := Open(context.Background(), testConfig(true), opts...)
	if err != nil {
		t.Fatalf("open owner: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	_ = c.Write(m)
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	_ = g.Write(m)
	return m.GetGauge().GetValue()
}

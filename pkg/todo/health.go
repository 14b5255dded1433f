package todo

import (
	"context"
	"time"

	"github.com/heptiolabs/healthcheck"
)

// readyTimeout bounds the lock acquisition done by the readiness check.
const readyTimeout = 250 * time.Millisecond

// HealthHandler returns liveness and readiness endpoints for this client. The
// check results are also exported on the client registry.
//
//   - liveness "store-mapped": the segment is still mapped in this process
//   - readiness "lock-acquirable": the shared lock can be taken within 250ms
func (c *Client) HealthHandler() healthcheck.Handler {
	c.healthOnce.Do(func() {
		h := healthcheck.NewMetricsHandler(c.registry, namespace)
		h.AddLivenessCheck("store-mapped", func() error {
			_, err := c.store.LockRecoveries()
			return err
		})
		h.AddReadinessCheck("lock-acquirable", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
			defer cancel()
			_, err := c.store.List(ctx)
			return err
		})
		c.health = h
	})
	return c.health
}

package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/srediag/todo-shm/internal/logging"
	"github.com/srediag/todo-shm/pkg/todo"
)

type adminServer struct {
	srv *http.Server
	ln  net.Listener
}

// startAdmin serves the health endpoints and the metrics of c on addr.
func startAdmin(addr string, c *todo.Client, logger *logging.Logger) (*adminServer, error) {
	health := c.HealthHandler()

	r := mux.NewRouter()
	r.HandleFunc("/live", health.LiveEndpoint).Methods(http.MethodGet)
	r.HandleFunc("/ready", health.ReadyEndpoint).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	a := &adminServer{
		srv: &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin listener stopped", zap.Error(err))
		}
	}()
	logger.Info("admin listener started", zap.String("addr", a.Addr()))
	return a, nil
}

func (a *adminServer) Addr() string { return a.ln.Addr().String() }

func (a *adminServer) Shutdown(ctx context.Context) error { return a.srv.Shutdown(ctx) }

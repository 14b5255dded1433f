package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/srediag/todo-shm/internal/logging"
)

// exitOnSignal ends the process on SIGINT or SIGTERM through atexit so that an
// owner still destroys its list.
func exitOnSignal(logger *logging.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logger.Info("signal received, shutting down", zap.String("signal", s.String()))
		code := 1
		if sig, ok := s.(syscall.Signal); ok {
			code = 128 + int(sig)
		}
		atexit.Exit(code)
	}()
}

package cli

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/testme/tcm-e2e/internal/logging"
)

// InterruptExitCode is the status the process exits with after an interrupt
const InterruptExitCode = 130

// WatchInterrupt waits for a signal, runs cleanup and then calls exit.
// If signals is nil, a new channel is registered for SIGINT and SIGTERM.
// If exit is nil, os.Exit is used. The returned function stops watching.
func WatchInterrupt(cleanup func() error, signals chan os.Signal, exit func(code int), logger *zap.Logger) func() {
	logger = logging.OrNop(logger)
	registered := false
	if signals == nil {
		signals = make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		registered = true
	}
	if exit == nil {
		exit = os.Exit
	}

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-signals:
			logger.Warn("Received signal, cleaning up", zap.Stringer("signal", sig))
			if err := cleanup(); err != nil {
				logger.Error("Cleanup after interrupt failed", zap.Error(err))
			}
			exit(InterruptExitCode)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if registered {
				signal.Stop(signals)
			}
			close(done)
		})
	}
}

// Package shutdown owns signal handling for the engine binaries.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"chatcore/pkg/logger"
)

// SetupSignalHandler installs handlers for SIGINT/SIGTERM and SIGPIPE and
// returns a cancellable context. The context is cancelled when any of the
// watched signals arrives.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		cancel()
	}()

	// SIGPIPE dumps goroutine stacks first to aid diagnostics
	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		s := <-sigpipe
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		logger.Info("signal_received", "signal", s.String(), "dump", string(buf[:n]))
		cancel()
	}()

	return ctx, cancel
}

package main

import (
	"context"
	"os"
	"strconv"

	"watchme/internal/logging"
)

// forcedExitCode is returned when a second signal cuts the drain short.
const forcedExitCode = 130

var exit = os.Exit

// previewStopper runs the preview's two-stage stop. The first signal
// cancels the serve context so in-flight requests drain; a repeat drops
// the reload clients and the watch session at once and ends the process.
type previewStopper struct {
	logger *logging.Logger
	drain  context.CancelFunc
	force  func()
}

// watch consumes signals until ctx is done, signals closes, or force ran.
func (s previewStopper) watch(ctx context.Context, signals <-chan os.Signal) {
	received := 0
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			received++
			fields := map[string]string{
				"received": strconv.Itoa(received),
			}
			if sig != nil {
				fields["signal"] = sig.String()
			}
			if received == 1 {
				s.logger.Info("preview draining", fields)
				if s.drain != nil {
					s.drain()
				}
				continue
			}
			s.logger.Warn("preview force closing", fields)
			if s.force != nil {
				s.force()
			}
			return
		}
	}
}

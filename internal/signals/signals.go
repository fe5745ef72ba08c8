// Package signals turns termination signals into a quit on the UI goroutine.
package signals

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zsprackett/tunedeck/internal/tui"
)

// Handled is the set of signals Watch subscribes to.
var Handled = []os.Signal{syscall.SIGTERM, syscall.SIGHUP}

// Quitter is implemented by the runtime's user data.
type Quitter interface {
	Quit(rt *tui.Runtime)
}

// Notify subscribes to Handled and returns the channel with a function that
// unsubscribes.
func Notify() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, Handled...)
	return ch, func() { signal.Stop(ch) }
}

// Watch schedules one quit action on sink for every signal received on ch,
// until ctx is done or ch is closed. It panics on a signal outside Handled.
func Watch(ctx context.Context, sink *tui.Sink, ch <-chan os.Signal, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-ch:
			if !ok {
				return nil
			}
			switch sig {
			case syscall.SIGTERM, syscall.SIGHUP:
				logger.Info("caught signal, quitting", "signal", sig.String())
				if err := sink.Send(tui.Func(quit)); err != nil {
					logger.Warn("could not schedule quit", "signal", sig.String(), "err", err)
				}
			default:
				panic(fmt.Sprintf("signals: unexpected signal %v", sig))
			}
		}
	}
}

func quit(rt *tui.Runtime) {
	if q, ok := rt.UserData().(Quitter); ok {
		q.Quit(rt)
	}
}

//go:build !windows

// internal/lifecycle/signal_other.go
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalSource traduz SIGUSR1 em background e SIGUSR2 em active
type SignalSource struct {
	ch chan AppState
}

func NewSignalSource(ctx context.Context) *SignalSource {
	s := &SignalSource{ch: make(chan AppState, 1)}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)

	go func() {
		defer close(s.ch)
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				state := Active
				if sig == syscall.SIGUSR1 {
					state = Background
				}
				select {
				case s.ch <- state:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return s
}

func (s *SignalSource) Changes() <-chan AppState {
	return s.ch
}

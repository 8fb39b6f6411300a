// Package supervise keeps long-running loops alive, restarting a loop
// that returns or panics until the context is cancelled.
package supervise

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
)

// Runner is a long-lived loop. It should return only on context
// cancellation; any other return is treated as a crash.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Supervisor restarts crashed runners after a fixed delay.
type Supervisor struct {
	restartDelay time.Duration
	wg           sync.WaitGroup
}

// New creates a supervisor with the given restart delay.
func New(restartDelay time.Duration) *Supervisor {
	if restartDelay <= 0 {
		restartDelay = 5 * time.Second
	}
	return &Supervisor{restartDelay: restartDelay}
}

// Go runs the named runner in its own goroutine, restarting it on crash
// until the context is cancelled.
func (s *Supervisor) Go(ctx context.Context, name string, runner Runner) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logger := log.WithComponent("supervise")
		for {
			err := s.guarded(ctx, runner)
			if ctx.Err() != nil {
				logger.Info().Str("worker", name).Msg("worker stopped")
				return
			}
			logger.Error().Err(err).Str("worker", name).Dur("restart_in", s.restartDelay).Msg("worker crashed")
			select {
			case <-ctx.Done():
				logger.Info().Str("worker", name).Msg("worker stopped")
				return
			case <-time.After(s.restartDelay):
			}
		}
	}()
}

// Wait blocks until every supervised worker has stopped.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) guarded(ctx context.Context, runner Runner) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panicked: %v", r)
		}
	}()
	return runner.Run(ctx)
}

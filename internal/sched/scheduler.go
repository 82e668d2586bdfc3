// Package sched runs the process-lifetime background loops on fixed
// intervals. Loops run over an injected clock so tests drive iterations
// deterministically instead of sleeping wall-clock time.
package sched

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Task is one loop iteration. Tasks handle their own failures; whatever
// happens inside, the loop proceeds to its next tick.
type Task func(ctx context.Context)

type loop struct {
	name     string
	interval time.Duration
	task     Task
}

// Scheduler runs registered loops until its context is cancelled. The loops
// are independent: a failing iteration in one never disturbs the other's
// cadence.
type Scheduler struct {
	clock clockwork.Clock
	log   zerolog.Logger
	loops []loop
}

func New(clock clockwork.Clock, log zerolog.Logger) *Scheduler {
	return &Scheduler{clock: clock, log: log}
}

// Add registers a loop: run task, wait interval, repeat.
func (s *Scheduler) Add(name string, interval time.Duration, task Task) {
	s.loops = append(s.loops, loop{name: name, interval: interval, task: task})
}

// Run starts every registered loop and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, l := range s.loops {
		g.Go(func() error {
			s.runLoop(ctx, l)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, l loop) {
	s.log.Info().Str("task", l.name).Dur("interval", l.interval).Msg("background task started")
	for {
		s.runTask(ctx, l)
		select {
		case <-ctx.Done():
			s.log.Info().Str("task", l.name).Msg("background task stopped")
			return
		case <-s.clock.After(l.interval):
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, l loop) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("task", l.name).Interface("panic", r).Msg("background task iteration panicked")
		}
	}()
	l.task(ctx)
}

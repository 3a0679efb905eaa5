// Package workers runs fire-and-forget background tasks on a bounded pool.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultSize is the pool size used when none is configured.
const DefaultSize = 4

// Task is a unit of background work. Errors are logged, never returned.
type Task func(ctx context.Context) error

// Pool bounds the number of concurrently running tasks. Submit blocks only
// while every slot is busy.
type Pool struct {
	g       errgroup.Group
	log     *slog.Logger
	timeout time.Duration
}

// New creates a pool running at most size tasks at once. Each task gets
// timeout to finish (zero means no deadline).
func New(size int, timeout time.Duration, log *slog.Logger) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{log: log, timeout: timeout}
	p.g.SetLimit(size)
	return p
}

// Submit schedules task. The task's context keeps ctx's values but not its
// cancellation, so it outlives the request that spawned it.
func (p *Pool) Submit(ctx context.Context, name string, task Task) {
	bg := context.WithoutCancel(ctx)
	p.g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			if err != nil {
				p.log.Warn("background task failed", "task", name, "err", err)
			}
			// The pool never reports task errors through Wait.
			err = nil
		}()

		if p.timeout > 0 {
			var cancel context.CancelFunc
			bg, cancel = context.WithTimeout(bg, p.timeout)
			defer cancel()
		}
		return task(bg)
	})
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	_ = p.g.Wait()
}

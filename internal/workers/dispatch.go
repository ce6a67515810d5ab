// Package workers runs the detached write-path side effects (websocket
// broadcast, event publish, mail enqueue) on an explicit pool instead of
// bare goroutines, so shutdown draining and failure visibility are
// deliberate rather than accidental.
package workers

import (
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Dispatcher wraps an ants pool. Submitted tasks recover their own panics
// and log their own failures; nothing ever propagates to the request that
// triggered them.
type Dispatcher struct {
	pool *ants.Pool
}

func NewDispatcher(size int) (*Dispatcher, error) {
	if size <= 0 {
		size = 32
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{pool: pool}, nil
}

// Go submits a fire-and-forget task. If the pool rejects the submission the
// task is dropped and logged; the caller is never blocked or failed.
func (d *Dispatcher) Go(name string, fn func()) {
	err := d.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				zap.S().Errorf("side effect %s panicked: %v", name, r)
			}
		}()
		fn()
	})
	if err != nil {
		zap.L().Warn("side effect dropped", zap.String("task", name), zap.Error(err))
	}
}

// Running returns the number of in-flight tasks, used by the stats job.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Release drains in-flight tasks, bounded by the timeout.
func (d *Dispatcher) Release(timeout time.Duration) {
	if err := d.pool.ReleaseTimeout(timeout); err != nil {
		zap.L().Warn("side effect pool released with tasks still running", zap.Error(err))
	}
}

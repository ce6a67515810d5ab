package syncq

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Executor applies one entity kind's replayed operations against the
// backend.
type Executor interface {
	Create(ctx context.Context, payload []byte) error
	Update(ctx context.Context, targetID string, payload []byte) error
	Delete(ctx context.Context, targetID string) error
}

// Replayer drains the pending queue one operation at a time, strictly in
// creation-timestamp order, so a create always replays before an update
// or delete that targets the row it created. Only one replay pass runs at
// a time; overlapping triggers are no-ops.
type Replayer struct {
	store    *Store
	execs    map[string]Executor
	running  atomic.Bool
	debounce time.Duration
}

func NewReplayer(store *Store, execs map[string]Executor, debounce time.Duration) *Replayer {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Replayer{store: store, execs: execs, debounce: debounce}
}

// ReplayOnce runs a single pass. Failed operations keep their place in
// the queue with an incremented retry counter and the pass moves on, so
// partial progress is preserved. Returns counts of applied and retained
// operations; (0, 0, nil) when another pass is already active.
func (r *Replayer) ReplayOnce(ctx context.Context) (applied, retained int, err error) {
	if !r.running.CompareAndSwap(false, true) {
		return 0, 0, nil
	}
	defer r.running.Store(false)

	ops, err := r.store.Pending()
	if err != nil {
		return 0, 0, err
	}
	if len(ops) == 0 {
		return 0, 0, nil
	}
	zap.L().Info("replaying pending operations", zap.Int("count", len(ops)))

	for _, op := range ops {
		select {
		case <-ctx.Done():
			return applied, retained, ctx.Err()
		default:
		}

		if err := r.apply(ctx, op); err != nil {
			zap.L().Warn("pending operation retained",
				zap.Uint64("op_id", op.ID),
				zap.String("kind", string(op.Kind)),
				zap.String("entity", op.Entity),
				zap.Int("retries", op.Retries+1),
				zap.Error(err))
			if rerr := r.store.IncrementRetry(op.ID); rerr != nil {
				zap.L().Error("retry counter update failed", zap.Uint64("op_id", op.ID), zap.Error(rerr))
			}
			retained++
			continue
		}

		if derr := r.store.Delete(op.ID); derr != nil {
			return applied, retained, errors.Wrap(derr, "remove applied operation")
		}
		applied++
	}
	zap.L().Info("replay pass finished", zap.Int("applied", applied), zap.Int("retained", retained))
	return applied, retained, nil
}

func (r *Replayer) apply(ctx context.Context, op Op) error {
	exec, ok := r.execs[op.Entity]
	if !ok {
		return errors.Errorf("no executor for entity %q", op.Entity)
	}
	switch op.Kind {
	case OpCreate:
		return exec.Create(ctx, op.Payload)
	case OpUpdate:
		return exec.Update(ctx, op.TargetID, op.Payload)
	case OpDelete:
		return exec.Delete(ctx, op.TargetID)
	default:
		return errors.Errorf("unknown operation kind %q", op.Kind)
	}
}

// Watch polls the connectivity probe and replays on an offline-to-online
// transition, debounced so flapping links do not trigger redundant
// passes. It also replays at startup when pending operations exist and
// the probe reports online.
func (r *Replayer) Watch(ctx context.Context, online func() bool, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	wasOnline := online()
	if wasOnline {
		if n, _ := r.store.Count(); n > 0 {
			_, _, _ = r.ReplayOnce(ctx)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		nowOnline := online()
		if nowOnline && !wasOnline {
			// debounce: require connectivity to hold before replaying
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.debounce):
			}
			if online() {
				_, _, _ = r.ReplayOnce(ctx)
			} else {
				nowOnline = false
			}
		}
		wasOnline = nowOnline
	}
}

package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/funkostack/funkostore/internal/domain"
)

// initJob starts the background scheduler: an hourly orphaned-upload
// sweep and a periodic runtime stats report.
func (a *Application) initJob() {
	a.sched = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	if _, err := a.sched.AddFunc("@hourly", a.cleanOrphanUploads); err != nil {
		zap.S().Errorf("schedule upload gc failed: %v", err)
	}
	if _, err := a.sched.AddFunc("@every 5m", a.reportStats); err != nil {
		zap.S().Errorf("schedule stats job failed: %v", err)
	}

	a.sched.Start()
}

// cleanOrphanUploads removes stored files no funko row references. Files
// younger than an hour are kept; an upload may exist before its row does.
func (a *Application) cleanOrphanUploads() {
	names, err := a.files.List()
	if err != nil {
		zap.L().Error("upload gc list failed", zap.Error(err))
		return
	}
	if len(names) == 0 {
		return
	}

	var referenced []string
	if err := a.gormDB.Model(&domain.Funko{}).
		Distinct("image").Pluck("image", &referenced).Error; err != nil {
		zap.L().Error("upload gc query failed", zap.Error(err))
		return
	}
	inUse := make(map[string]struct{}, len(referenced)+1)
	inUse[domain.NoImage] = struct{}{}
	for _, name := range referenced {
		inUse[name] = struct{}{}
	}

	cutoff := time.Now().UTC().Add(-time.Hour).Format("20060102150405")
	removed := 0
	for _, name := range names {
		if _, ok := inUse[name]; ok {
			continue
		}
		if len(name) >= len(cutoff) && name[:len(cutoff)] > cutoff {
			continue
		}
		if err := a.files.Delete(name); err != nil {
			zap.L().Warn("upload gc delete failed", zap.String("file", name), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		zap.L().Info("upload gc removed orphaned files", zap.Int("removed", removed))
	}
}

// reportStats logs queue and connection gauges so an operator can spot a
// stuck worker or a leaking hub without metrics infrastructure.
func (a *Application) reportStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cacheUp := a.kv.Ping(ctx) == nil
	zap.L().Info("runtime stats",
		zap.Bool("cache_up", cacheUp),
		zap.Int("mail_backlog", a.mail.Depth()),
		zap.Int("ws_funkos", a.funkoHub.Count()),
		zap.Int("ws_categorias", a.catHub.Count()),
		zap.Int("side_effects_running", a.dispatcher.Running()))
}

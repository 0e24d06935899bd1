// Package workers owns the three bounded worker pools background
// jobs run on: notification delivery, webhook delivery, and the
// auto-archive sweep. Each pool grows on demand up to a cap and shrinks
// back down after an idle period, same as the teacher's pools.
package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/alitto/pond"
)

type PoolManager struct {
	NotificationPool *pond.WorkerPool
	WebhookPool      *pond.WorkerPool
	ArchivePool      *pond.WorkerPool
}

type PoolConfig struct {
	NotificationWorkers int
	WebhookWorkers      int
	ArchiveWorkers      int
}

func NewPoolManager(config PoolConfig) *PoolManager {
	return &PoolManager{
		NotificationPool: pond.New(
			config.NotificationWorkers,
			config.NotificationWorkers*4,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
		WebhookPool: pond.New(
			config.WebhookWorkers,
			config.WebhookWorkers*4,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
		ArchivePool: pond.New(
			config.ArchiveWorkers,
			config.ArchiveWorkers*2,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
	}
}

func (pm *PoolManager) SubmitNotification(task func()) {
	pm.NotificationPool.Submit(task)
}

func (pm *PoolManager) SubmitWebhook(task func()) {
	pm.WebhookPool.Submit(task)
}

func (pm *PoolManager) SubmitArchive(task func()) {
	pm.ArchivePool.Submit(task)
}

// SubmitWithTimeout runs task on pool and blocks until it finishes or
// ctx/timeout expires, recovering a panicking task instead of losing
// the pool worker permanently.
func (pm *PoolManager) SubmitWithTimeout(ctx context.Context, pool *pond.WorkerPool, task func(), timeout time.Duration) error {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{}, 1)
	pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked", "error", r)
			}
			done <- struct{}{}
		}()
		task()
	})

	select {
	case <-done:
		return nil
	case <-taskCtx.Done():
		return taskCtx.Err()
	}
}

func poolStats(p *pond.WorkerPool) map[string]interface{} {
	return map[string]interface{}{
		"running_workers":  p.RunningWorkers(),
		"idle_workers":     p.IdleWorkers(),
		"submitted_tasks":  p.SubmittedTasks(),
		"waiting_tasks":    p.WaitingTasks(),
		"successful_tasks": p.SuccessfulTasks(),
		"failed_tasks":     p.FailedTasks(),
	}
}

func (pm *PoolManager) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"notification_pool": poolStats(pm.NotificationPool),
		"webhook_pool":      poolStats(pm.WebhookPool),
		"archive_pool":      poolStats(pm.ArchivePool),
	}
}

func (pm *PoolManager) Shutdown() {
	slog.Info("shutting down worker pools")
	pm.NotificationPool.StopAndWait()
	pm.WebhookPool.StopAndWait()
	pm.ArchivePool.StopAndWait()
	slog.Info("all worker pools stopped")
}

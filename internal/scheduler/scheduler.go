// Package scheduler implements the delayed notification pipeline: a
// per-(dialog, recipient) debounce register in Redis backing a
// delayed-job queue, plus the periodic auto-archive sweep. A Scheduler
// built without a Redis client degrades to "notifications disabled"
// (Enqueue does nothing), per the documented degradation choice for an
// absent KV store.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/pohodnya/mtchat/internal/database"
	"github.com/pohodnya/mtchat/internal/models"
	"github.com/pohodnya/mtchat/internal/webhook"
	"github.com/pohodnya/mtchat/internal/workers"
)

const debounceBuffer = 5 * time.Second

// job is the payload carried from enqueue to execution.
type job struct {
	DialogID    string `json:"dialog_id"`
	RecipientID string `json:"recipient_id"`
	JobID       string `json:"job_id"`
	MessageID   string `json:"message_id"`
	SenderID    string `json:"sender_id"`
}

// Config bundles the scheduler's tunables, all with documented
// defaults applied by the caller building config.NotificationConfig.
type Config struct {
	Delay             time.Duration
	JobTimeout        time.Duration
	ArchiveAfter      time.Duration
	ArchiveCronExpr   string
	ArchiveJobTimeout time.Duration
}

type Scheduler struct {
	redis   *redis.Client
	db      *database.DB
	webhook *webhook.Sender
	pools   *workers.PoolManager
	cfg     Config
	cron    *cron.Cron
}

// New builds a Scheduler. redisClient may be nil, in which case
// Enqueue is a no-op and StartArchiveCron still runs (auto-archive
// only needs the database, not the KV store).
func New(redisClient *redis.Client, db *database.DB, sender *webhook.Sender, pools *workers.PoolManager, cfg Config) *Scheduler {
	return &Scheduler{
		redis:   redisClient,
		db:      db,
		webhook: sender,
		pools:   pools,
		cfg:     cfg,
	}
}

func debounceKey(dialogID, recipientID string) string {
	return fmt.Sprintf("debounce:%s:%s", dialogID, recipientID)
}

// Enqueue schedules a debounced notification for recipientID about
// messageID. It atomically overwrites any pending job for the same
// (dialog, recipient) pair; the superseded job discovers it is stale
// when it fires and re-reads the register.
func (s *Scheduler) Enqueue(ctx context.Context, dialogID, recipientID, messageID, senderID string) {
	if s.redis == nil {
		return
	}
	j := job{
		DialogID:    dialogID,
		RecipientID: recipientID,
		JobID:       uuid.NewString(),
		MessageID:   messageID,
		SenderID:    senderID,
	}
	ttl := s.cfg.Delay + debounceBuffer
	if err := s.redis.Set(ctx, debounceKey(dialogID, recipientID), j.JobID, ttl).Err(); err != nil {
		slog.Error("scheduler: failed to set debounce register", "error", err)
		return
	}
	delay := s.cfg.Delay
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		<-timer.C
		s.pools.SubmitNotification(func() {
			s.fire(j)
		})
	}()
}

// fire is the execution contract: re-read the debounce register, bail
// if stale, bail if the recipient already read past the trigger or
// muted the dialog, otherwise dispatch notification.pending.
func (s *Scheduler) fire(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	operation := func() error {
		return s.tryFire(ctx, j)
	}
	// Two retries after the first try: at most 3 attempts in all.
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		slog.Error("scheduler: notification job failed", "dialog_id", j.DialogID, "recipient_id", j.RecipientID, "error", err)
	}
}

func (s *Scheduler) tryFire(ctx context.Context, j job) error {
	current, err := s.redis.Get(ctx, debounceKey(j.DialogID, j.RecipientID)).Result()
	if err == redis.Nil {
		return nil // already fired or expired
	}
	if err != nil {
		return err
	}
	if current != j.JobID {
		return nil // superseded by a newer message
	}

	participant, err := s.db.GetParticipant(ctx, j.DialogID, j.RecipientID)
	if err != nil {
		return nil // participant left; nothing to notify
	}
	if !participant.NotificationsEnabled || participant.UnreadCount == 0 {
		s.redis.Del(ctx, debounceKey(j.DialogID, j.RecipientID))
		return nil
	}

	payload := models.WebhookPayload{
		Event: models.EventNotificationPending,
		Data: models.NotificationPendingData{
			DialogID:    j.DialogID,
			RecipientID: j.RecipientID,
			MessageID:   j.MessageID,
			SenderID:    j.SenderID,
		},
	}
	if err := s.webhook.Send(ctx, stampNow(payload)); err != nil {
		return err
	}
	return s.redis.Del(ctx, debounceKey(j.DialogID, j.RecipientID)).Err()
}

func stampNow(p models.WebhookPayload) models.WebhookPayload {
	p.Timestamp = time.Now()
	return p
}

// StartArchiveCron registers the periodic auto-archive sweep and
// starts the cron scheduler. Call Stop to shut it down cleanly.
func (s *Scheduler) StartArchiveCron(broadcast func(ctx context.Context, dialogID, userID string)) error {
	s.cron = cron.New()
	expr := s.cfg.ArchiveCronExpr
	if expr == "" {
		expr = "@every 5m"
	}
	_, err := s.cron.AddFunc(expr, func() {
		s.pools.SubmitArchive(func() {
			s.runArchiveSweep(broadcast)
		})
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) runArchiveSweep(broadcast func(ctx context.Context, dialogID, userID string)) {
	runID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ArchiveJobTimeout)
	defer cancel()

	cutoff := time.Now().Add(-s.cfg.ArchiveAfter)
	stale, err := s.db.FindParticipantsToAutoArchive(ctx, cutoff)
	if err != nil {
		slog.Error("archive sweep: query failed", "run_id", runID, "error", err)
		return
	}
	for _, p := range stale {
		if err := s.db.MarkArchived(ctx, p.DialogID, p.UserID); err != nil {
			slog.Error("archive sweep: mark failed", "run_id", runID, "dialog_id", p.DialogID, "user_id", p.UserID, "error", err)
			continue
		}
		if broadcast != nil {
			broadcast(ctx, p.DialogID, p.UserID)
		}
	}
	slog.Info("archive sweep complete", "run_id", runID, "archived", len(stale))
}

// Stop halts the cron scheduler.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
	"bitbucket.org/mmdatafocus/fieldops_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationDispatcher drains the notification outbox: claims a batch,
// publishes to Pub/Sub, marks SENT/FAILED with backoff, and reclaims rows a
// crashed dispatcher left PROCESSING. Rows past MaxAttempts go DEAD.
type NotificationDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration

	// PublishFunc defaults to Pub/Sub publishing; tests swap in a fake.
	PublishFunc func(ctx context.Context, msg config.PushMessage) (string, error)
}

func NewNotificationDispatcher(db *gorm.DB, logger *logrus.Logger) *NotificationDispatcher {
	d := &NotificationDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
		PublishFunc:    config.PublishNotificationWithResult,
	}
	// Direct mode is the safety net for deployments without Pub/Sub: rows
	// still drain, delivery is a structured log line a sidecar can ship.
	if strings.EqualFold(strings.TrimSpace(os.Getenv("NOTIFY_DIRECT")), "true") {
		d.PublishFunc = d.publishDirect
	}
	return d
}

func (d *NotificationDispatcher) publishDirect(ctx context.Context, msg config.PushMessage) (string, error) {
	d.Logger.WithFields(logrus.Fields{
		"notification_id": msg.ID,
		"user_id":         msg.UserId,
		"title":           msg.Title,
		"correlation_id":  msg.CorrelationId,
	}).Info("notification delivered directly")
	return fmt.Sprintf("direct-%d", msg.ID), nil
}

func (d *NotificationDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *NotificationDispatcher) dispatchOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.DB
	if db == nil {
		return
	}

	var claimed []models.NotificationRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING with a stale lock (dispatcher crashed mid-batch)
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []models.NotificationStatus{models.NotificationStatusPending, models.NotificationStatusFailed}, now, models.NotificationStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			// Poison rows go terminal instead of retrying forever.
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.NotificationStatusDead
				if err := tx.Model(&models.NotificationRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.NotificationStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.NotificationStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].PublishAttempts = claimed[i].PublishAttempts + 1
			claimed[i].LastPublishError = nil
			if err := tx.Model(&models.NotificationRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     claimed[i].PublishStatus,
				"locked_at":          claimed[i].LockedAt,
				"locked_by":          claimed[i].LockedBy,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, rec := range claimed {
		if rec.PublishStatus == models.NotificationStatusDead {
			continue
		}
		msg := models.ConvertToPushMessage(rec)
		pubID, pubErr := d.PublishFunc(ctx, msg)
		if pubErr != nil {
			d.markFailed(ctx, rec, pubErr)
			continue
		}
		d.markSent(ctx, rec, pubID)
	}
}

func (d *NotificationDispatcher) markSent(ctx context.Context, rec models.NotificationRecord, pubID string) {
	now := time.Now().UTC()
	err := d.DB.WithContext(ctx).Model(&models.NotificationRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"publish_status":     models.NotificationStatusSent,
		"published_at":       &now,
		"pub_sub_message_id": &pubID,
		"locked_at":          nil,
		"locked_by":          nil,
		"next_attempt_at":    nil,
		"last_publish_error": nil,
	}).Error
	if err != nil {
		config.LogError(d.Logger, "workflow", "NotificationDispatcher", "markSent", rec.ID, err)
	}
}

func (d *NotificationDispatcher) markFailed(ctx context.Context, rec models.NotificationRecord, pubErr error) {
	errMsg := pubErr.Error()
	next := time.Now().UTC().Add(d.backoff(rec.PublishAttempts))
	err := d.DB.WithContext(ctx).Model(&models.NotificationRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"publish_status":     models.NotificationStatusFailed,
		"last_publish_error": &errMsg,
		"next_attempt_at":    &next,
		"locked_at":          nil,
		"locked_by":          nil,
	}).Error
	if err != nil {
		config.LogError(d.Logger, "workflow", "NotificationDispatcher", "markFailed", rec.ID, err)
	}
}

// backoff doubles per attempt, capped at 10 minutes.
func (d *NotificationDispatcher) backoff(attempts int) time.Duration {
	b := d.InitialBackoff
	if b <= 0 {
		b = 5 * time.Second
	}
	for i := 1; i < attempts && b < 10*time.Minute; i++ {
		b *= 2
	}
	if b > 10*time.Minute {
		b = 10 * time.Minute
	}
	return b
}

package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
	"bitbucket.org/mmdatafocus/fieldops_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRecord is the transactional-outbox row for push/SMS dispatch:
// written inside the caller's DB transaction, published asynchronously by the
// dispatcher after commit. Dispatch failures never surface to the report flow.
type NotificationRecord struct {
	ID     int    `gorm:"primary_key;index:idx_notif_dispatch,priority:3" json:"id"`
	UserId int    `gorm:"index;not null" json:"user_id"`
	Phone  string `gorm:"size:20" json:"phone"`
	Title  string `gorm:"size:255;not null" json:"title"`
	Body   string `gorm:"type:text" json:"body"`
	Link   string `gorm:"size:255" json:"link"`

	PublishStatus    NotificationStatus `gorm:"size:20;index;not null;default:'PENDING';index:idx_notif_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time         `gorm:"index" json:"published_at"`
	PubSubMessageId  *string            `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int                `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time         `gorm:"index;index:idx_notif_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time         `gorm:"index" json:"locked_at"`
	LockedBy         *string            `gorm:"size:100" json:"locked_by"`
	LastPublishError *string            `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string             `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishToNotification writes the outbox row inside the caller's transaction.
// The dispatcher publishes after commit; nothing here talks to Pub/Sub.
func PublishToNotification(ctx context.Context, tx *gorm.DB, userId int, phone string, title string, body string, link string) error {
	record := NotificationRecord{
		UserId:        userId,
		Phone:         phone,
		Title:         title,
		Body:          body,
		Link:          link,
		PublishStatus: NotificationStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToPushMessage(record NotificationRecord) config.PushMessage {
	return config.PushMessage{
		ID:            record.ID,
		UserId:        record.UserId,
		Phone:         record.Phone,
		Title:         record.Title,
		Body:          record.Body,
		Link:          record.Link,
		CorrelationId: record.CorrelationId,
	}
}

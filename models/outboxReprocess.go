package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ReplayNotifications puts DEAD and FAILED outbox rows back to PENDING so the
// dispatcher publishes them again. With no ids every such row is replayed.
func ReplayNotifications(ctx context.Context, db *gorm.DB, ids []int64) (int64, error) {
	if db == nil {
		return 0, errors.New("outbox requires a database")
	}
	now := time.Now().UTC()

	q := db.WithContext(ctx).
		Model(&NotificationRecord{}).
		Where("publish_status IN ?", outboxReplayableStatuses)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Updates(map[string]interface{}{
		"locked_at":          nil,
		"locked_by":          nil,
		"publish_status":     OutboxPublishStatusPending,
		"publish_attempts":   0,
		"next_attempt_at":    &now,
		"last_publish_error": nil,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

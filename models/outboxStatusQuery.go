package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

func GetOutboxSummary(ctx context.Context, db *gorm.DB) (*OutboxSummary, error) {
	if db == nil {
		return nil, errors.New("outbox requires a database")
	}
	var rows []struct {
		PublishStatus string
		N             int64
	}
	if err := db.WithContext(ctx).
		Model(&NotificationRecord{}).
		Select("publish_status, COUNT(*) AS n").
		Group("publish_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	summary := &OutboxSummary{}
	for _, r := range rows {
		summary.add(r.PublishStatus, r.N)
	}

	var oldest NotificationRecord
	err := db.WithContext(ctx).
		Where("publish_status IN ?", outboxUnsentStatuses).
		Order("id ASC").
		First(&oldest).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil {
		createdAt := oldest.CreatedAt.UTC().Truncate(time.Second)
		summary.OldestPendingAt = &createdAt
	}
	return summary, nil
}

package models

import "time"

// OutboxSummary is the ops view of the notification outbox.
type OutboxSummary struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`

	// OldestPendingAt is the creation time of the oldest unsent row.
	OldestPendingAt *time.Time `json:"oldest_pending_at"`
}

func (s *OutboxSummary) add(status string, n int64) {
	switch status {
	case OutboxPublishStatusPending:
		s.Pending += n
	case OutboxPublishStatusProcessing:
		s.Processing += n
	case OutboxPublishStatusSent:
		s.Sent += n
	case OutboxPublishStatusFailed:
		s.Failed += n
	case OutboxPublishStatusDead:
		s.Dead += n
	}
}

package models

// Publish states of a NotificationRecord. A row is written PENDING in the
// same commit as the ledger mutation that raised its LedgerEvent, and ends
// either SENT or DEAD.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

var (
	// OutboxRetryableStatuses are claimed by the dispatcher once
	// next_attempt_at has passed.
	OutboxRetryableStatuses = []string{OutboxPublishStatusPending, OutboxPublishStatusFailed}

	// outboxUnsentStatuses hold events subscribers have not seen yet.
	outboxUnsentStatuses = []string{OutboxPublishStatusPending, OutboxPublishStatusProcessing, OutboxPublishStatusFailed}

	// outboxReplayableStatuses may be pushed back to PENDING by an Admin.
	outboxReplayableStatuses = []string{OutboxPublishStatusDead, OutboxPublishStatusFailed}
)

package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Reconciliation check types.
const (
	CheckTransactionChain  = "TRANSACTION_CHAIN"
	CheckAllocationRelease = "ALLOCATION_RELEASE"
	CheckReputation        = "REPUTATION"
	CheckFundCounters      = "FUND_COUNTERS"
	CheckFundTotals        = "FUND_TOTALS"
)

// ReconciliationFinding is one drift found by a reconciliation run.
// Persisted findings are history and never updated.
type ReconciliationFinding struct {
	ID            int64     `gorm:"primary_key" json:"id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (f ReconciliationFinding) String() string {
	return f.CheckType + ": " + f.Details
}

// SaveReconciliationFindings appends the findings of one run under a
// shared correlation id. Nothing is written for a clean run.
func SaveReconciliationFindings(ctx context.Context, db *gorm.DB, correlationID string, findings []ReconciliationFinding) error {
	if db == nil || len(findings) == 0 {
		return nil
	}
	rows := make([]ReconciliationFinding, 0, len(findings))
	for _, f := range findings {
		f.ID = 0
		f.CorrelationId = correlationID
		rows = append(rows, f)
	}
	return db.WithContext(ctx).Create(&rows).Error
}

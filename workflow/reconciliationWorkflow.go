package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fund_ledger/config"
	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunReconciliationWorkflow reconciles the ledger every interval until ctx
// is done. Mismatches are logged and, when db is set, appended to
// reconciliation_findings.
func RunReconciliationWorkflow(ctx context.Context, l *ledger.Ledger, db *gorm.DB, logger *logrus.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		RunReconciliationOnce(ctx, l, db, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunReconciliationOnce runs one reconciliation and records its findings.
func RunReconciliationOnce(ctx context.Context, l *ledger.Ledger, db *gorm.DB, logger *logrus.Logger) ReconciliationReport {
	report := ReconcileLedger(l)
	LogReconciliation(logger, report)
	if !report.OK() {
		if err := models.SaveReconciliationFindings(ctx, db, uuid.NewString(), report.Issues); err != nil {
			config.LogError(logger, "reconciliationWorkflow.go", "RunReconciliationOnce", "SaveReconciliationFindings", len(report.Issues), err)
		}
	}
	return report
}

func LogReconciliation(logger *logrus.Logger, report ReconciliationReport) {
	if logger == nil {
		return
	}
	entry := logger.WithFields(logrus.Fields{
		"field":               "ReconciliationChecks",
		"transactions":        report.Chain.Length,
		"last_hash":           report.Chain.LastHash,
		"allocated_funds":     report.AllocatedFunds,
		"released_funds":      report.ReleasedFunds,
		"vendors_checked":     len(report.Reputation),
		"reconciliation_time": report.CheckedAt.Format(time.RFC3339),
	})
	if report.OK() {
		entry.Debug("ledger reconciliation clean")
		return
	}
	for _, issue := range report.Issues {
		entry.WithField("check_type", issue.CheckType).Error("ledger reconciliation mismatch: " + issue.Details)
	}
}

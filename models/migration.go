package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&AccountProfile{},
		&BudgetRequest{},
		&FundAllocation{},
		&FundTotal{},
		&LedgerTransaction{},
		&LedgerCounters{},
		&NotificationRecord{},
		&ReconciliationFinding{},
		&WriterFence{},
	)
}

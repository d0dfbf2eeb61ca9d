package models

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerStore persists the ledger in MySQL through gorm.
// Every Commit is a single DB transaction: entity upserts, transaction log
// appends and outbox rows land together or not at all.
type GormLedgerStore struct {
	DB *gorm.DB

	// Epoch, when non-zero, is the WriterFence epoch this store was claimed
	// under. Commit fails with ErrWriterFenced once another writer claims.
	Epoch int64
}

func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{DB: db}
}

func (s *GormLedgerStore) Load(ctx context.Context) (*LedgerSnapshot, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("db is nil")
	}
	db := s.DB.WithContext(ctx)
	snap := &LedgerSnapshot{}
	if err := db.Order("registered_at ASC, identity ASC").Find(&snap.Accounts).Error; err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if err := db.Order("id ASC").Find(&snap.Requests).Error; err != nil {
		return nil, fmt.Errorf("load budget requests: %w", err)
	}
	if err := db.Order("id ASC").Find(&snap.Allocations).Error; err != nil {
		return nil, fmt.Errorf("load fund allocations: %w", err)
	}
	if err := db.Find(&snap.FundTotals).Error; err != nil {
		return nil, fmt.Errorf("load fund totals: %w", err)
	}
	if err := db.Order("id ASC").Find(&snap.Transactions).Error; err != nil {
		return nil, fmt.Errorf("load ledger transactions: %w", err)
	}
	err := db.Where("id = ?", LedgerCountersRowID).Take(&snap.Counters).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load ledger counters: %w", err)
	}
	snap.Counters.ID = LedgerCountersRowID
	return snap, nil
}

func (s *GormLedgerStore) Commit(ctx context.Context, cs *ChangeSet) error {
	if s == nil || s.DB == nil {
		return errors.New("db is nil")
	}
	if cs == nil {
		return nil
	}
	upsert := clause.OnConflict{UpdateAll: true}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.Epoch > 0 {
			if err := checkWriterFence(tx, s.Epoch); err != nil {
				return err
			}
		}
		for _, a := range cs.Accounts {
			if err := tx.Clauses(upsert).Create(a).Error; err != nil {
				return fmt.Errorf("save account %s: %w", a.Identity, err)
			}
		}
		for _, r := range cs.Requests {
			if err := tx.Clauses(upsert).Create(r).Error; err != nil {
				return fmt.Errorf("save budget request %d: %w", r.ID, err)
			}
		}
		for _, a := range cs.Allocations {
			if err := tx.Clauses(upsert).Create(a).Error; err != nil {
				return fmt.Errorf("save fund allocation %d: %w", a.ID, err)
			}
		}
		for i := range cs.FundTotals {
			if err := tx.Clauses(upsert).Create(&cs.FundTotals[i]).Error; err != nil {
				return fmt.Errorf("save fund total %s/%s: %w", cs.FundTotals[i].Scope, cs.FundTotals[i].Name, err)
			}
		}
		// Plain inserts: a duplicate id here means the log diverged, never overwrite.
		for _, t := range cs.Transactions {
			if err := tx.Create(t).Error; err != nil {
				return fmt.Errorf("append ledger transaction %d: %w", t.ID, err)
			}
		}
		counters := cs.Counters
		counters.ID = LedgerCountersRowID
		if err := tx.Clauses(upsert).Create(&counters).Error; err != nil {
			return fmt.Errorf("save ledger counters: %w", err)
		}
		if len(cs.Events) > 0 {
			records := make([]NotificationRecord, 0, len(cs.Events))
			for _, ev := range cs.Events {
				records = append(records, NewNotificationRecord(ev))
			}
			if err := tx.Create(&records).Error; err != nil {
				return fmt.Errorf("write notification outbox: %w", err)
			}
		}
		return nil
	})
}

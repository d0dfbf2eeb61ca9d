package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WriterFence is the single-row epoch bumped by every process that takes the
// writer lease. A GormLedgerStore bound to an older epoch can no longer commit.
type WriterFence struct {
	ID        int       `gorm:"primary_key" json:"-"`
	Epoch     int64     `gorm:"not null;default:0" json:"epoch"`
	Holder    string    `gorm:"size:100" json:"holder"`
	ClaimedAt time.Time `json:"claimed_at"`
}

const WriterFenceRowID = 1

var ErrWriterFenced = errors.New("ledger store fenced off by a newer writer")

// ClaimWriterFence bumps the fence epoch and returns the new value. Call it
// after obtaining the writer lease and before loading the ledger.
func ClaimWriterFence(ctx context.Context, db *gorm.DB, holder string) (int64, error) {
	if db == nil {
		return 0, errors.New("db is nil")
	}
	var epoch int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fence, err := lockWriterFence(tx)
		if err != nil {
			return err
		}
		fence.Epoch++
		fence.Holder = holder
		fence.ClaimedAt = time.Now().UTC()
		if err := tx.Save(&fence).Error; err != nil {
			return fmt.Errorf("save writer fence: %w", err)
		}
		epoch = fence.Epoch
		return nil
	})
	return epoch, err
}

// lockWriterFence reads the fence row FOR UPDATE, creating it on first use.
func lockWriterFence(tx *gorm.DB) (WriterFence, error) {
	seed := WriterFence{ID: WriterFenceRowID, ClaimedAt: time.Now().UTC()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return WriterFence{}, fmt.Errorf("init writer fence: %w", err)
	}
	var fence WriterFence
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", WriterFenceRowID).Take(&fence).Error; err != nil {
		return WriterFence{}, fmt.Errorf("lock writer fence: %w", err)
	}
	return fence, nil
}

func checkWriterFence(tx *gorm.DB, epoch int64) error {
	var fence WriterFence
	err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Where("id = ?", WriterFenceRowID).Take(&fence).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: no fence row for epoch %d", ErrWriterFenced, epoch)
	}
	if err != nil {
		return fmt.Errorf("read writer fence: %w", err)
	}
	if fence.Epoch != epoch {
		return fmt.Errorf("%w: store epoch %d, current %d (%s)", ErrWriterFenced, epoch, fence.Epoch, fence.Holder)
	}
	return nil
}

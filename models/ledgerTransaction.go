package models

import "time"

// LedgerTransaction is one append-only entry of the fund movement log.
// Rows are never updated; config.AppendOnlyGuardPlugin enforces that at the gorm layer.
type LedgerTransaction struct {
	ID          int64           `gorm:"primary_key;autoIncrement:false" json:"id"`
	Kind        TransactionKind `gorm:"size:32;index;not null" json:"kind"`
	From        string          `gorm:"column:from_identity;size:128;index;not null" json:"from"`
	To          string          `gorm:"column:to_identity;size:128;index;not null" json:"to"`
	Amount      int64           `gorm:"not null" json:"amount"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	BlockRef    uint64          `gorm:"not null" json:"block_ref"`
	Provenance  string          `gorm:"size:64;not null" json:"provenance"`
	Reversible  bool            `gorm:"not null" json:"reversible"`
	PrevHash    string          `gorm:"size:64;not null" json:"prev_hash"`
	Hash        string          `gorm:"size:64;uniqueIndex;not null" json:"hash"`
}

package models

// LedgerCounters is the single-row aggregate state of the ledger.
type LedgerCounters struct {
	ID                int    `gorm:"primary_key" json:"-"`
	LastRequestID     int64  `gorm:"not null;default:0" json:"last_request_id"`
	LastAllocationID  int64  `gorm:"not null;default:0" json:"last_allocation_id"`
	LastTransactionID int64  `gorm:"not null;default:0" json:"last_transaction_id"`
	AllocatedFunds    int64  `gorm:"not null;default:0" json:"allocated_funds"`
	ReleasedFunds     int64  `gorm:"not null;default:0" json:"released_funds"`
	AllocatedEver     int64  `gorm:"not null;default:0" json:"allocated_ever"`
	BlockTick         uint64 `gorm:"not null;default:0" json:"block_tick"`
	LastHash          string `gorm:"size:64" json:"last_hash"`
}

const LedgerCountersRowID = 1

package models

// ChangeSet is everything one accepted mutation writes. The ledger builds it on
// copies of its state and hands it to the store; it is applied in memory only
// after the store commits it.
type ChangeSet struct {
	Requests     []*BudgetRequest
	Allocations  []*FundAllocation
	Accounts     []*AccountProfile
	FundTotals   []FundTotal
	Transactions []*LedgerTransaction
	Events       []LedgerEvent
	Counters     LedgerCounters
}

// LedgerSnapshot is the full persisted state used to open a ledger.
type LedgerSnapshot struct {
	Requests     []*BudgetRequest
	Allocations  []*FundAllocation
	Accounts     []*AccountProfile
	FundTotals   []FundTotal
	Transactions []*LedgerTransaction
	Counters     LedgerCounters
}

func (s *LedgerSnapshot) IsEmpty() bool {
	return s == nil || (len(s.Accounts) == 0 && len(s.Requests) == 0 && len(s.Transactions) == 0)
}

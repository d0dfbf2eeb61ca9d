package ledger

import (
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/shopspring/decimal"
)

// MaxPageSize caps GetTransactionHistory pages.
const MaxPageSize = 100

func (l *Ledger) GetRequest(id int64) (*models.BudgetRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.requests[id]
	if !ok {
		return nil, notFound("GetRequest", "budget request %d does not exist", id)
	}
	return r.Clone(), nil
}

func (l *Ledger) GetAllocation(id int64) (*models.FundAllocation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.allocations[id]
	if !ok {
		return nil, notFound("GetAllocation", "fund allocation %d does not exist", id)
	}
	return a.Clone(), nil
}

// ListRequestsByRequester returns the requester's requests in creation order.
func (l *Ledger) ListRequestsByRequester(identity string) []*models.BudgetRequest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.requestsByRequester[identity]
	out := make([]*models.BudgetRequest, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.requests[id].Clone())
	}
	return out
}

// ListAllocationsByVendor returns the vendor's allocations in creation order.
func (l *Ledger) ListAllocationsByVendor(identity string) []*models.FundAllocation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.allocationsByVendor[identity]
	out := make([]*models.FundAllocation, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.allocations[id].Clone())
	}
	return out
}

func (l *Ledger) GetAccount(identity string) (*models.AccountProfile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p := l.registry.get(identity)
	if p == nil {
		return nil, notFound("GetAccount", "account %s is not registered", identity)
	}
	return p.Clone(), nil
}

// ListAccounts returns every registered account in registration order.
func (l *Ledger) ListAccounts() []*models.AccountProfile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*models.AccountProfile, 0, len(l.registry.order))
	for _, identity := range l.registry.order {
		out = append(out, l.registry.get(identity).Clone())
	}
	return out
}

// GetFundTotal returns the approved amount for a department or project, 0
// when nothing was approved under that name.
func (l *Ledger) GetFundTotal(scope models.FundScope, name string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fundTotals[models.FundTotalKey{Scope: scope, Name: name}]
}

type DashboardStats struct {
	TotalRequests     int `json:"total_requests"`
	PendingRequests   int `json:"pending_requests"`
	ApprovedRequests  int `json:"approved_requests"`
	RejectedRequests  int `json:"rejected_requests"`
	AllocatedRequests int `json:"allocated_requests"`

	TotalAllocations     int `json:"total_allocations"`
	ReleasedAllocations  int `json:"released_allocations"`
	RecoveredAllocations int `json:"recovered_allocations"`
	AwaitingCompliance   int `json:"awaiting_compliance"`

	TotalTransactions int `json:"total_transactions"`
	TotalAccounts     int `json:"total_accounts"`
	ActiveVendors     int `json:"active_vendors"`

	AllocatedFunds int64 `json:"allocated_funds"`
	ReleasedFunds  int64 `json:"released_funds"`
	AllocatedEver  int64 `json:"allocated_ever"`
	// ReleaseRatio is ReleasedFunds / AllocatedEver rounded to 4 places.
	ReleaseRatio decimal.Decimal `json:"release_ratio"`
}

func (l *Ledger) GetDashboardStats() DashboardStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := DashboardStats{
		TotalRequests:     len(l.requests),
		TotalAllocations:  len(l.allocations),
		TotalTransactions: len(l.log),
		TotalAccounts:     len(l.registry.accounts),
		AllocatedFunds:    l.counters.AllocatedFunds,
		ReleasedFunds:     l.counters.ReleasedFunds,
		AllocatedEver:     l.counters.AllocatedEver,
		ReleaseRatio:      decimal.Zero,
	}
	for _, r := range l.requests {
		switch r.State {
		case models.BudgetStatePending:
			s.PendingRequests++
		case models.BudgetStateApproved:
			s.ApprovedRequests++
		case models.BudgetStateRejected:
			s.RejectedRequests++
		case models.BudgetStateAllocated:
			s.AllocatedRequests++
		}
	}
	for _, a := range l.allocations {
		switch {
		case a.Recovered:
			s.RecoveredAllocations++
		case a.IsReleased():
			s.ReleasedAllocations++
		default:
			s.AwaitingCompliance++
		}
	}
	for _, p := range l.registry.accounts {
		if p.Role == models.RoleVendor && p.Active {
			s.ActiveVendors++
		}
	}
	if s.AllocatedEver > 0 {
		s.ReleaseRatio = decimal.NewFromInt(s.ReleasedFunds).
			Div(decimal.NewFromInt(s.AllocatedEver)).
			Round(4)
	}
	return s
}

// GetTransactionHistory pages the log newest first: item i of the page is
// the (offset+i)-th most recent transaction.
func (l *Ledger) GetTransactionHistory(limit, offset int) ([]*models.LedgerTransaction, error) {
	const op = "GetTransactionHistory"
	if limit < 0 || offset < 0 {
		return nil, invalidInput(op, "limit and offset must not be negative")
	}
	if limit > MaxPageSize {
		return nil, invalidInput(op, "limit must not exceed %d", MaxPageSize)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.log)
	out := make([]*models.LedgerTransaction, 0, limit)
	for i := 0; i < limit && offset+i < n; i++ {
		c := *l.log[n-1-offset-i]
		out = append(out, &c)
	}
	return out, nil
}

// TransactionCount is the length of the transaction log.
func (l *Ledger) TransactionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.log)
}

// Transactions returns a copy of the whole log, oldest first.
func (l *Ledger) Transactions() []*models.LedgerTransaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*models.LedgerTransaction, 0, len(l.log))
	for _, t := range l.log {
		c := *t
		out = append(out, &c)
	}
	return out
}

// Counters returns the aggregate totals.
func (l *Ledger) Counters() models.LedgerCounters {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counters
}

package ledger

import (
	"sort"

	"github.com/mmdatafocus/fund_ledger/models"
)

// Snapshot copies the whole ledger state under one read lock. Counters,
// fund totals, entities and the log in one snapshot always agree, however
// many mutations commit while it is being examined.
func (l *Ledger) Snapshot() *models.LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := &models.LedgerSnapshot{
		Accounts:     make([]*models.AccountProfile, 0, len(l.registry.order)),
		Requests:     make([]*models.BudgetRequest, 0, len(l.requests)),
		Allocations:  make([]*models.FundAllocation, 0, len(l.allocations)),
		FundTotals:   make([]models.FundTotal, 0, len(l.fundTotals)),
		Transactions: make([]*models.LedgerTransaction, 0, len(l.log)),
		Counters:     l.counters,
	}
	for _, identity := range l.registry.order {
		snap.Accounts = append(snap.Accounts, l.registry.get(identity).Clone())
	}
	for _, r := range l.requests {
		snap.Requests = append(snap.Requests, r.Clone())
	}
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].ID < snap.Requests[j].ID })
	for _, a := range l.allocations {
		snap.Allocations = append(snap.Allocations, a.Clone())
	}
	sort.Slice(snap.Allocations, func(i, j int) bool { return snap.Allocations[i].ID < snap.Allocations[j].ID })
	for k, v := range l.fundTotals {
		snap.FundTotals = append(snap.FundTotals, models.FundTotal{Scope: k.Scope, Name: k.Name, Amount: v})
	}
	sort.Slice(snap.FundTotals, func(i, j int) bool {
		if snap.FundTotals[i].Scope == snap.FundTotals[j].Scope {
			return snap.FundTotals[i].Name < snap.FundTotals[j].Name
		}
		return snap.FundTotals[i].Scope < snap.FundTotals[j].Scope
	})
	for _, t := range l.log {
		c := *t
		snap.Transactions = append(snap.Transactions, &c)
	}
	return snap
}

// VerifySnapshotChain re-hashes a snapshot's log with this ledger's chain key.
func (l *Ledger) VerifySnapshotChain(snap *models.LedgerSnapshot) ChainReport {
	if snap == nil {
		return verifyTransactions(l.hasher, nil)
	}
	return verifyTransactions(l.hasher, snap.Transactions)
}

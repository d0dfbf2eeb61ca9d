package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/models"
)

// ReconciliationReport is the outcome of re-deriving the ledger aggregates
// from its entities and transaction log.
type ReconciliationReport struct {
	CheckedAt time.Time          `json:"checked_at"`
	Chain     ledger.ChainReport `json:"chain"`

	AllocatedFunds         int64 `json:"allocated_funds"`
	ExpectedAllocatedFunds int64 `json:"expected_allocated_funds"`
	ReleasedFunds          int64 `json:"released_funds"`
	ExpectedReleasedFunds  int64 `json:"expected_released_funds"`

	Reputation []ledger.ReputationAudit       `json:"reputation,omitempty"`
	Issues     []models.ReconciliationFinding `json:"issues,omitempty"`
}

func (r ReconciliationReport) OK() bool {
	return len(r.Issues) == 0
}

func (r *ReconciliationReport) addIssue(check, format string, args ...any) {
	r.Issues = append(r.Issues, models.ReconciliationFinding{CheckType: check, Details: fmt.Sprintf(format, args...)})
}

// ReconcileLedger checks the global ledger invariants against one consistent
// snapshot: the hash chain, allocated and released totals against the
// allocations, fund totals against approved requests, and every vendor's
// cached reputation against a replay of the log.
func ReconcileLedger(l *ledger.Ledger) ReconciliationReport {
	snap := l.Snapshot()
	return ReconcileSnapshot(snap, l.VerifySnapshotChain(snap))
}

// ReconcileSnapshot runs the checks of ReconcileLedger over snap, given the
// verification of its transaction chain.
func ReconcileSnapshot(snap *models.LedgerSnapshot, chain ledger.ChainReport) ReconciliationReport {
	report := ReconciliationReport{CheckedAt: time.Now().UTC(), Chain: chain}
	if !chain.Valid {
		report.addIssue(models.CheckTransactionChain, "transaction chain broken at %d: %s", chain.BrokenAt, chain.Reason)
	}
	report.AllocatedFunds = snap.Counters.AllocatedFunds
	report.ReleasedFunds = snap.Counters.ReleasedFunds

	expectedTotals := map[models.FundTotalKey]int64{}
	for _, r := range snap.Requests {
		if r.State == models.BudgetStateApproved || r.State == models.BudgetStateAllocated {
			expectedTotals[models.FundTotalKey{Scope: models.FundScopeDepartment, Name: r.Department}] += r.Amount
			expectedTotals[models.FundTotalKey{Scope: models.FundScopeProject, Name: r.Project}] += r.Amount
		}
	}
	for _, a := range snap.Allocations {
		report.ExpectedAllocatedFunds += a.AllocatedAmount
		report.ExpectedReleasedFunds += a.ReleasedAmount
		if a.ReleasedAmount != 0 && a.ReleasedAmount != a.AllocatedAmount {
			report.addIssue(models.CheckAllocationRelease, "allocation %d released %d of %d", a.ID, a.ReleasedAmount, a.AllocatedAmount)
		}
	}

	var vendors []*models.AccountProfile
	for _, p := range snap.Accounts {
		if p.Role == models.RoleVendor {
			vendors = append(vendors, p)
		}
	}
	for _, audit := range ledger.ReplayReputations(vendors, snap.Transactions) {
		report.Reputation = append(report.Reputation, audit)
		if !audit.Consistent {
			report.addIssue(models.CheckReputation, "vendor %s reputation %d, log replays to %d", audit.Identity, audit.Cached, audit.Derived)
		}
	}

	if report.AllocatedFunds != report.ExpectedAllocatedFunds {
		report.addIssue(models.CheckFundCounters, "allocated funds %d, allocations sum to %d", report.AllocatedFunds, report.ExpectedAllocatedFunds)
	}
	if report.ReleasedFunds != report.ExpectedReleasedFunds {
		report.addIssue(models.CheckFundCounters, "released funds %d, allocations sum to %d", report.ReleasedFunds, report.ExpectedReleasedFunds)
	}

	actualTotals := make(map[models.FundTotalKey]int64, len(snap.FundTotals))
	for _, t := range snap.FundTotals {
		actualTotals[t.Key()] = t.Amount
	}
	keys := make([]models.FundTotalKey, 0, len(expectedTotals)+len(actualTotals))
	for k := range expectedTotals {
		keys = append(keys, k)
	}
	for k := range actualTotals {
		if _, ok := expectedTotals[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Scope == keys[j].Scope {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Scope < keys[j].Scope
	})
	for _, k := range keys {
		if got := actualTotals[k]; got != expectedTotals[k] {
			report.addIssue(models.CheckFundTotals, "%s %q total %d, approved requests sum to %d", k.Scope, k.Name, got, expectedTotals[k])
		}
	}
	return report
}

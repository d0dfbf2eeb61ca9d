package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/fund_ledger/models"
)

// AllocateFunds assigns the full amount of an Approved request to a vendor.
// The request becomes Allocated. Admin only.
func (l *Ledger) AllocateFunds(ctx context.Context, caller Caller, requestID int64, vendor string, requirements string) (*models.FundAllocation, error) {
	const op = "AllocateFunds"
	var out *models.FundAllocation
	err := l.mutate(ctx, op, caller, func(m *mutation) error {
		if _, err := l.authorize(op, caller, models.RoleAdmin); err != nil {
			return err
		}
		r, err := m.request(requestID)
		if err != nil {
			return err
		}
		if r.State != models.BudgetStateApproved {
			return invalidState(op, "budget request %d is %s, not %s", requestID, r.State, models.BudgetStateApproved)
		}
		vendor = strings.TrimSpace(vendor)
		v := m.account(vendor)
		if v == nil {
			return notFound(op, "vendor %s is not registered", vendor)
		}
		if v.Role != models.RoleVendor {
			return invalidInput(op, "account %s is a %s, not a vendor", vendor, v.Role)
		}
		if !v.Active {
			return invalidInput(op, "vendor %s is inactive", vendor)
		}

		id := m.counters.LastAllocationID + 1
		a := &models.FundAllocation{
			ID:                  id,
			RequestID:           r.ID,
			Vendor:              vendor,
			AllocatedAmount:     r.Amount,
			Requirements:        strings.TrimSpace(requirements),
			ComplianceDocuments: models.DocumentRefs{},
			AllocatedAt:         m.now,
		}
		if err := m.add("allocated funds", &m.counters.AllocatedFunds, a.AllocatedAmount); err != nil {
			return err
		}
		if err := m.add("allocated-ever total", &m.counters.AllocatedEver, a.AllocatedAmount); err != nil {
			return err
		}
		if err := m.add("vendor "+vendor+" cumulative allocation", &v.CumulativeAllocated, a.AllocatedAmount); err != nil {
			return err
		}
		m.counters.LastAllocationID = id
		r.State = models.BudgetStateAllocated
		m.putAllocation(a)

		m.emit(models.EventBudgetStateChanged, r.ID, r.Requester, r.Amount, stateChange(models.BudgetStateApproved, r.State))
		m.emit(models.EventFundsAllocated, a.ID, vendor, a.AllocatedAmount, fmt.Sprintf("budget request #%d", r.ID))
		if _, err := m.record(models.TransactionKindAllocation, caller.Identity, vendor, a.AllocatedAmount,
			fmt.Sprintf("Allocation #%d for budget request #%d", a.ID, r.ID)); err != nil {
			return err
		}
		out = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitComplianceDocuments attaches document references to an allocation.
// Only the allocation's vendor may submit, any number of times until the
// allocation is verified or recovered. Refs already attached are skipped.
func (l *Ledger) SubmitComplianceDocuments(ctx context.Context, caller Caller, allocationID int64, docRefs []string) (*models.FundAllocation, error) {
	const op = "SubmitComplianceDocuments"
	var out *models.FundAllocation
	err := l.mutate(ctx, op, caller, func(m *mutation) error {
		if _, err := l.authorize(op, caller, models.RoleVendor); err != nil {
			return err
		}
		a, err := m.allocation(allocationID)
		if err != nil {
			return err
		}
		if a.Vendor != caller.Identity {
			return unauthorized(op, "allocation %d belongs to another vendor", allocationID)
		}
		if len(docRefs) == 0 {
			return invalidInput(op, "at least one document reference is required")
		}
		refs := make([]string, 0, len(docRefs))
		for i, ref := range docRefs {
			ref = strings.TrimSpace(ref)
			if ref == "" {
				return invalidInput(op, "document reference %d is empty", i)
			}
			refs = append(refs, ref)
		}
		if a.Recovered {
			return invalidState(op, "allocation %d was recovered", allocationID)
		}
		if a.ComplianceMet {
			return invalidState(op, "allocation %d is already verified", allocationID)
		}

		seen := make(map[string]bool, len(a.ComplianceDocuments))
		for _, ref := range a.ComplianceDocuments {
			seen[ref] = true
		}
		added := 0
		for _, ref := range refs {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			a.ComplianceDocuments = append(a.ComplianceDocuments, ref)
			added++
		}
		if added > 0 {
			m.emit(models.EventComplianceDocumentsSubmitted, a.ID, a.Vendor, 0,
				fmt.Sprintf("%d document(s), %d total", added, len(a.ComplianceDocuments)))
		}
		out = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyCompliance marks an allocation's documents as verified and releases
// its funds to the vendor in the same step. Admin only.
func (l *Ledger) VerifyCompliance(ctx context.Context, caller Caller, allocationID int64) (*models.FundAllocation, error) {
	const op = "VerifyCompliance"
	var out *models.FundAllocation
	err := l.mutate(ctx, op, caller, func(m *mutation) error {
		if _, err := l.authorize(op, caller, models.RoleAdmin); err != nil {
			return err
		}
		a, err := m.allocation(allocationID)
		if err != nil {
			return err
		}
		if a.Recovered {
			return invalidState(op, "allocation %d was recovered", allocationID)
		}
		if a.ComplianceMet || a.IsReleased() {
			return alreadyProcessed(op, "allocation %d is already verified", allocationID)
		}
		if len(a.ComplianceDocuments) == 0 {
			return invalidState(op, "allocation %d has no compliance documents", allocationID)
		}

		a.ComplianceMet = true
		m.emit(models.EventComplianceVerified, a.ID, a.Vendor, a.AllocatedAmount,
			fmt.Sprintf("%d document(s)", len(a.ComplianceDocuments)))
		if err := m.release(a); err != nil {
			return err
		}
		out = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// release pays out a verified allocation exactly once.
func (m *mutation) release(a *models.FundAllocation) error {
	if !a.ComplianceMet {
		return invalidState(m.op, "allocation %d is not verified", a.ID)
	}
	if a.IsReleased() || a.ReleasedAmount != 0 {
		return alreadyProcessed(m.op, "allocation %d is already released", a.ID)
	}
	v := m.account(a.Vendor)
	if v == nil {
		return notFound(m.op, "vendor %s is not registered", a.Vendor)
	}

	if err := m.add("released funds", &m.counters.ReleasedFunds, a.AllocatedAmount); err != nil {
		return err
	}
	if err := m.add("vendor "+a.Vendor+" cumulative withdrawal", &v.CumulativeWithdrawn, a.AllocatedAmount); err != nil {
		return err
	}
	now := m.now
	a.ReleasedAmount = a.AllocatedAmount
	a.ReleasedAt = &now

	m.emit(models.EventFundsReleased, a.ID, a.Vendor, a.ReleasedAmount, "compliance verified")
	if _, err := m.record(models.TransactionKindComplianceRelease, LedgerIdentity, a.Vendor, a.ReleasedAmount,
		fmt.Sprintf("Compliance release for allocation #%d", a.ID)); err != nil {
		return err
	}
	m.adjustReputation(v, models.ReputationReleaseBonus)
	return nil
}

// EmergencyRecover pulls back an unreleased allocation. The allocation
// amount drops to zero, the vendor loses reputation and a withdrawal from
// vendor to admin is recorded. Admin only.
func (l *Ledger) EmergencyRecover(ctx context.Context, caller Caller, allocationID int64, reason string) (*models.FundAllocation, error) {
	const op = "EmergencyRecover"
	var out *models.FundAllocation
	err := l.mutate(ctx, op, caller, func(m *mutation) error {
		if _, err := l.authorize(op, caller, models.RoleAdmin); err != nil {
			return err
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return invalidInput(op, "recovery reason is required")
		}
		a, err := m.allocation(allocationID)
		if err != nil {
			return err
		}
		if a.IsReleased() {
			return alreadyProcessed(op, "allocation %d was already released", allocationID)
		}
		if a.Recovered {
			return alreadyProcessed(op, "allocation %d was already recovered", allocationID)
		}
		v := m.account(a.Vendor)
		if v == nil {
			return notFound(op, "vendor %s is not registered", a.Vendor)
		}

		original := a.AllocatedAmount
		if err := m.add("allocated funds", &m.counters.AllocatedFunds, -original); err != nil {
			return err
		}
		a.AllocatedAmount = 0
		a.Recovered = true

		m.emit(models.EventEmergencyWithdrawal, a.ID, a.Vendor, original, reason)
		if _, err := m.record(models.TransactionKindWithdrawal, a.Vendor, caller.Identity, original,
			fmt.Sprintf("Emergency recovery of allocation #%d: %s", a.ID, reason)); err != nil {
			return err
		}
		m.adjustReputation(v, models.ReputationRecoveryPenalty)
		out = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

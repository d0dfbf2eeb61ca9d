package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/mmdatafocus/fund_ledger/utils"
)

// SubmitRequest records a new Pending budget request for the caller.
// Any active registered account may submit.
func (l *Ledger) SubmitRequest(ctx context.Context, caller Caller, input models.NewBudgetRequest) (*models.BudgetRequest, error) {
	const op = "SubmitRequest"
	var out *models.BudgetRequest
	err := l.mutate(ctx, op, caller, func(m *mutation) error {
		if _, err := l.authorize(op, caller, models.RoleAdmin, models.RoleVendor, models.RoleAuditor); err != nil {
			return err
		}
		input.Department = strings.TrimSpace(input.Department)
		input.Project = strings.TrimSpace(input.Project)
		input.DocumentRef = strings.TrimSpace(input.DocumentRef)
		if err := utils.ValidateStruct(input); err != nil {
			return invalidInput(op, "%s", utils.FormatValidationErrors(err))
		}

		id := m.counters.LastRequestID + 1
		r := &models.BudgetRequest{
			ID:          id,
			Requester:   caller.Identity,
			Department:  input.Department,
			Project:     input.Project,
			Amount:      input.Amount,
			Description: input.Description,
			DocumentRef: input.DocumentRef,
			State:       models.BudgetStatePending,
			CreatedAt:   m.now,
		}
		m.counters.LastRequestID = id
		m.putRequest(r)
		m.emit(models.EventBudgetRequestCreated, id, caller.Identity, r.Amount, r.Department+"/"+r.Project)
		out = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApproveRequest moves a Pending request to Approved and adds its amount to
// the department and project fund totals. Admin only.
func (l *Ledger) ApproveRequest(ctx context.Context, caller Caller, requestID int64) (*models.BudgetRequest, error) {
	const op = "ApproveRequest"
	var out *models.BudgetRequest
	err := l.mutate(ctx, op, caller, func(m *mutation) error {
		if _, err := l.authorize(op, caller, models.RoleAdmin); err != nil {
			return err
		}
		r, err := m.request(requestID)
		if err != nil {
			return err
		}
		if r.State != models.BudgetStatePending {
			return invalidState(op, "budget request %d is %s, not %s", requestID, r.State, models.BudgetStatePending)
		}

		if err := m.addFundTotal(models.FundScopeDepartment, r.Department, r.Amount); err != nil {
			return err
		}
		if err := m.addFundTotal(models.FundScopeProject, r.Project, r.Amount); err != nil {
			return err
		}
		approver := caller.Identity
		now := m.now
		r.State = models.BudgetStateApproved
		r.ApprovedBy = &approver
		r.ApprovedAt = &now
		m.emit(models.EventBudgetStateChanged, r.ID, r.Requester, r.Amount, stateChange(models.BudgetStatePending, r.State))
		out = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RejectRequest moves a Pending request to Rejected and records a
// zero-amount transaction carrying the reason. Admin only.
func (l *Ledger) RejectRequest(ctx context.Context, caller Caller, requestID int64, reason string) (*models.BudgetRequest, error) {
	const op = "RejectRequest"
	var out *models.BudgetRequest
	err := l.mutate(ctx, op, caller, func(m *mutation) error {
		if _, err := l.authorize(op, caller, models.RoleAdmin); err != nil {
			return err
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return invalidInput(op, "rejection reason is required")
		}
		r, err := m.request(requestID)
		if err != nil {
			return err
		}
		if r.State != models.BudgetStatePending {
			return invalidState(op, "budget request %d is %s, not %s", requestID, r.State, models.BudgetStatePending)
		}

		approver := caller.Identity
		now := m.now
		r.State = models.BudgetStateRejected
		r.ApprovedBy = &approver
		r.ApprovedAt = &now
		r.RejectionReason = reason
		m.emit(models.EventBudgetStateChanged, r.ID, r.Requester, r.Amount, stateChange(models.BudgetStatePending, r.State))
		if _, err := m.record(models.TransactionKindAllocation, caller.Identity, r.Requester, 0,
			fmt.Sprintf("Budget request #%d rejected: %s", r.ID, reason)); err != nil {
			return err
		}
		out = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stateChange(from, to models.BudgetState) string {
	return string(from) + " -> " + string(to)
}

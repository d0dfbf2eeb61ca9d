package models

type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleVendor  Role = "Vendor"
	RoleAuditor Role = "Auditor"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleVendor, RoleAuditor:
		return true
	}
	return false
}

// BudgetState is the lifecycle of a BudgetRequest.
// Pending -> Approved -> Allocated, Pending -> Rejected.
type BudgetState string

const (
	BudgetStatePending   BudgetState = "Pending"
	BudgetStateApproved  BudgetState = "Approved"
	BudgetStateRejected  BudgetState = "Rejected"
	BudgetStateAllocated BudgetState = "Allocated"
)

func (s BudgetState) IsValid() bool {
	switch s {
	case BudgetStatePending, BudgetStateApproved, BudgetStateRejected, BudgetStateAllocated:
		return true
	}
	return false
}

// IsTerminal reports whether no further request transition exists.
func (s BudgetState) IsTerminal() bool {
	return s == BudgetStateRejected || s == BudgetStateAllocated
}

type TransactionKind string

const (
	TransactionKindAllocation        TransactionKind = "Allocation"
	TransactionKindWithdrawal        TransactionKind = "Withdrawal"
	TransactionKindReallocation      TransactionKind = "Reallocation"
	TransactionKindComplianceRelease TransactionKind = "ComplianceRelease"
)

func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindAllocation, TransactionKindWithdrawal, TransactionKindReallocation, TransactionKindComplianceRelease:
		return true
	}
	return false
}

// IsReversible is false only for compliance releases; released funds are final.
func (k TransactionKind) IsReversible() bool {
	return k != TransactionKindComplianceRelease
}

type FundScope string

const (
	FundScopeDepartment FundScope = "department"
	FundScopeProject    FundScope = "project"
)

type EventKind string

const (
	EventBudgetRequestCreated         EventKind = "BudgetRequestCreated"
	EventBudgetStateChanged           EventKind = "BudgetStateChanged"
	EventFundsAllocated               EventKind = "FundsAllocated"
	EventFundsReleased                EventKind = "FundsReleased"
	EventComplianceDocumentsSubmitted EventKind = "ComplianceDocumentsSubmitted"
	EventComplianceVerified           EventKind = "ComplianceVerified"
	EventTransactionRecorded          EventKind = "TransactionRecorded"
	EventUserRegistered               EventKind = "UserRegistered"
	EventUserStatusChanged            EventKind = "UserStatusChanged"
	EventReputationUpdated            EventKind = "ReputationUpdated"
	EventEmergencyWithdrawal          EventKind = "EmergencyWithdrawal"
)

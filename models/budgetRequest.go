package models

import "time"

type BudgetRequest struct {
	ID              int64       `gorm:"primary_key;autoIncrement:false" json:"id"`
	Requester       string      `gorm:"size:128;index;not null" json:"requester"`
	Department      string      `gorm:"size:255;index;not null" json:"department"`
	Project         string      `gorm:"size:255;index;not null" json:"project"`
	Amount          int64       `gorm:"not null" json:"amount"`
	Description     string      `gorm:"type:text" json:"description"`
	DocumentRef     string      `gorm:"size:1024" json:"document_ref"`
	State           BudgetState `gorm:"size:20;index;not null" json:"state"`
	CreatedAt       time.Time   `gorm:"not null" json:"created_at"`
	ApprovedBy      *string     `gorm:"size:128" json:"approved_by"`
	ApprovedAt      *time.Time  `json:"approved_at"`
	RejectionReason string      `gorm:"type:text" json:"rejection_reason,omitempty"`
}

// MaxAmount caps one request amount at 2^53 minor units, the largest integer
// a JSON number carries exactly.
const MaxAmount = int64(1) << 53

type NewBudgetRequest struct {
	Department  string `json:"department" validate:"required,max=255"`
	Project     string `json:"project" validate:"required,max=255"`
	Amount      int64  `json:"amount" validate:"gt=0,lte=9007199254740992"`
	Description string `json:"description"`
	DocumentRef string `json:"document_ref" validate:"max=1024"`
}

func (r *BudgetRequest) Clone() *BudgetRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.ApprovedBy != nil {
		v := *r.ApprovedBy
		c.ApprovedBy = &v
	}
	if r.ApprovedAt != nil {
		v := *r.ApprovedAt
		c.ApprovedAt = &v
	}
	return &c
}

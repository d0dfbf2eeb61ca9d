package models

import "time"

// Reputation bounds and adjustments.
const (
	ReputationMin             = 0
	ReputationMax             = 100
	ReputationDefault         = 50
	ReputationOperator        = 100
	ReputationReleaseBonus    = 10
	ReputationRecoveryPenalty = -20
)

type AccountProfile struct {
	Identity            string    `gorm:"primary_key;size:128" json:"identity"`
	Role                Role      `gorm:"size:16;index;not null" json:"role"`
	Name                string    `gorm:"size:255;not null" json:"name"`
	ContactEmail        string    `gorm:"size:255" json:"contact_email"`
	ContactPhone        string    `gorm:"size:32" json:"contact_phone"`
	Active              bool      `gorm:"not null;default:true" json:"active"`
	CumulativeAllocated int64     `gorm:"not null;default:0" json:"cumulative_allocated"`
	CumulativeWithdrawn int64     `gorm:"not null;default:0" json:"cumulative_withdrawn"`
	ReputationScore     int       `gorm:"not null" json:"reputation_score"`
	BaseReputation      int       `gorm:"not null" json:"base_reputation"`
	RegisteredAt        time.Time `gorm:"not null" json:"registered_at"`
}

type NewAccount struct {
	Identity     string `json:"identity" validate:"required,max=128"`
	Role         Role   `json:"role" validate:"required"`
	Name         string `json:"name" validate:"required,max=255"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email,max=255"`
	ContactPhone string `json:"contact_phone" validate:"omitempty,max=32"`
}

func (p *AccountProfile) Clone() *AccountProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// DocumentRefs is stored as a JSON array in a text column.
type DocumentRefs []string

func (d DocumentRefs) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *DocumentRefs) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("document refs must be text")
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*d = out
	return nil
}

type FundAllocation struct {
	ID                  int64        `gorm:"primary_key;autoIncrement:false" json:"id"`
	RequestID           int64        `gorm:"uniqueIndex;not null" json:"request_id"`
	Vendor              string       `gorm:"size:128;index;not null" json:"vendor"`
	AllocatedAmount     int64        `gorm:"not null" json:"allocated_amount"`
	ReleasedAmount      int64        `gorm:"not null;default:0" json:"released_amount"`
	Requirements        string       `gorm:"type:text" json:"requirements"`
	ComplianceDocuments DocumentRefs `gorm:"type:text" json:"compliance_documents"`
	ComplianceMet       bool         `gorm:"not null;default:false" json:"compliance_met"`
	Recovered           bool         `gorm:"not null;default:false" json:"recovered"`
	AllocatedAt         time.Time    `gorm:"not null" json:"allocated_at"`
	ReleasedAt          *time.Time   `json:"released_at"`
}

func (a *FundAllocation) IsReleased() bool {
	return a.ReleasedAt != nil
}

func (a *FundAllocation) Clone() *FundAllocation {
	if a == nil {
		return nil
	}
	c := *a
	if a.ComplianceDocuments != nil {
		c.ComplianceDocuments = append(DocumentRefs(nil), a.ComplianceDocuments...)
	}
	if a.ReleasedAt != nil {
		v := *a.ReleasedAt
		c.ReleasedAt = &v
	}
	return &c
}

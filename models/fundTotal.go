package models

// FundTotal is the running approved amount per department or project.
type FundTotal struct {
	Scope  FundScope `gorm:"primary_key;size:16" json:"scope"`
	Name   string    `gorm:"primary_key;size:255" json:"name"`
	Amount int64     `gorm:"not null;default:0" json:"amount"`
}

// FundTotalKey identifies a FundTotal row.
type FundTotalKey struct {
	Scope FundScope
	Name  string
}

func (t FundTotal) Key() FundTotalKey {
	return FundTotalKey{Scope: t.Scope, Name: t.Name}
}

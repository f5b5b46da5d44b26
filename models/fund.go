package models

import "time"

// GlobalFund is the single month-independent running balance of money paid
// in versus money spent. Exactly one row exists; TotalMealFundCents never
// goes below zero. All mutations run inside a transaction holding a row
// lock on this record.
type GlobalFund struct {
	ID                  uint      `gorm:"primaryKey" json:"-"`
	TotalMealFundCents  int64     `gorm:"not null;default:0" json:"total_meal_fund_cents"`
	TotalSpendingsCents int64     `gorm:"not null;default:0" json:"total_spendings_cents"`
	Version             int64     `gorm:"not null;default:0" json:"-"`
	LastUpdated         time.Time `json:"last_updated"`
}

package models

import "time"

// Receipt is an uploaded receipt image attached to an expense. The OCR
// suggestion is advisory; it never overwrites the recorded amount.
type Receipt struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"-"`
	ExpenseID   uint      `gorm:"not null;index" json:"expense_id"`
	FileName    string    `gorm:"size:255;not null" json:"file_name"`
	StorePath   string    `gorm:"size:512;not null" json:"store_path"`
	ContentType string    `gorm:"size:128" json:"content_type,omitempty"`
	// SuggestedAmountCents is the OCR-extracted total, 0 when nothing was
	// recognized.
	SuggestedAmountCents int64 `json:"suggested_amount_cents"`
}

package models

import "time"

// Due payment statuses.
const (
	DuePending  = "pending"
	DueResolved = "resolved"
)

// Due is an unpaid pay-later expense waiting to be settled from the global
// fund. It is resolved only through the fund ledger's deduction, never by a
// direct status write.
type Due struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"updated_at"`
	Month         string    `gorm:"size:7;not null;index" json:"month"`
	AmountCents   int64     `gorm:"not null" json:"amount_cents"`
	ExpenseID     uint      `gorm:"not null;uniqueIndex" json:"expense_id"`
	ShopperID     *uint     `gorm:"index" json:"shopper_id,omitempty"`
	PaymentStatus string    `gorm:"size:16;not null;default:pending;index" json:"payment_status"`
	DueDate       string    `gorm:"size:10" json:"due_date,omitempty"`
	Priority      string    `gorm:"size:16" json:"priority,omitempty"`
	ContactInfo   string    `gorm:"size:255" json:"contact_info,omitempty"`
}

package models

import "time"

// Expense categories.
const (
	CategoryGroceries = "groceries"
	CategoryOther     = "other"
)

// Contribution is a member's cumulative meal-fund contribution for one month.
// New payments are added onto AmountCents, never replace it; Version guards
// the read-modify-write against concurrent writers.
type Contribution struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
	Month       string    `gorm:"size:7;not null;index;uniqueIndex:idx_contrib_month_member" json:"month"`
	MemberID    uint      `gorm:"not null;uniqueIndex:idx_contrib_month_member" json:"member_id"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"` // smallest currency unit
	Version     int64     `gorm:"not null;default:0" json:"-"`
}

// MealRecord is one member's meal count for one day of a month. Writing a
// day's count replaces the stored value.
type MealRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
	Month     string    `gorm:"size:7;not null;index;uniqueIndex:idx_meal_month_member_day" json:"month"`
	MemberID  uint      `gorm:"not null;uniqueIndex:idx_meal_month_member_day" json:"member_id"`
	Day       int       `gorm:"not null;uniqueIndex:idx_meal_month_member_day" json:"day"` // 1-31
	Count     int64     `gorm:"not null" json:"count"`
}

// Expense is a grocery or other spend for a month. PayLater expenses do not
// touch the global fund until their due is resolved.
type Expense struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
	Month       string    `gorm:"size:7;not null;index" json:"month"`
	Day         int       `gorm:"not null" json:"day"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	Category    string    `gorm:"size:16;not null" json:"category"`
	ShopperID   *uint     `gorm:"index" json:"shopper_id,omitempty"`
	Title       string    `gorm:"size:255" json:"title,omitempty"`
	PayLater    bool      `gorm:"not null;default:false" json:"pay_later"`
	DueDate     string    `gorm:"size:10" json:"due_date,omitempty"`
	Priority    string    `gorm:"size:16" json:"priority,omitempty"`
	ContactInfo string    `gorm:"size:255" json:"contact_info,omitempty"`
}

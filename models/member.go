package models

import "time"

// Resident types. Room members live in the mess; dining members only eat there.
const (
	ResidentTypeRoom   = "room"
	ResidentTypeDining = "dining"
)

// Member statuses. Members are archived, never hard-deleted, so historical
// month data keeps resolving.
const (
	MemberStatusActive   = "active"
	MemberStatusArchived = "archived"
)

// Member is a mess member taking part in the meal fund.
type Member struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	ShortName string    `gorm:"size:64;not null;uniqueIndex" json:"short_name"`
	// ResidentType is "room" or "dining".
	ResidentType string `gorm:"size:16;not null" json:"resident_type"`
	// ActiveFrom and ArchiveFrom are "YYYY-MM" month keys. ArchiveFrom is
	// empty while the member is active. A member is eligible for month M when
	// ActiveFrom <= M and (ArchiveFrom == "" or M < ArchiveFrom).
	ActiveFrom  string `gorm:"size:7;not null;index" json:"active_from"`
	ArchiveFrom string `gorm:"size:7;index" json:"archive_from,omitempty"`
	Status      string `gorm:"size:16;not null;default:active" json:"status"`
}

// EligibleFor reports whether the member takes part in the given "YYYY-MM"
// month. Lexical comparison matches chronological order for this format.
func (m *Member) EligibleFor(month string) bool {
	if m.ActiveFrom > month {
		return false
	}
	if m.ArchiveFrom != "" && month >= m.ArchiveFrom {
		return false
	}
	return true
}

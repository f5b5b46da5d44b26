package models

import "time"

// Manager is a dashboard operator account. The PIN is stored as a bcrypt
// hash only.
type Manager struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Username  string `gorm:"size:255;not null;unique"`
	HashedPIN []byte `gorm:"not null"`
	RoleID    *uint  `gorm:"index"`
	Role      Role   `gorm:"foreignKey:RoleID;references:ID"`
}

// Role represents manager roles with numeric primary key
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}

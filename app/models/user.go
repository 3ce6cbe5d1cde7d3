package models

import "time"

// User mirrors the registration-owned users table. The billing core only
// reads the contact email when creating a Stripe customer; all writes to this
// table happen elsewhere.
type User struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150)" json:"name"`
	Email     string    `gorm:"uniqueIndex;type:varchar(200)" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

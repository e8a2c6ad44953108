package models

import "time"

// Address is a shipping address. Each address belongs to exactly one user.
type Address struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string    `json:"user_id" gorm:"index;type:varchar(36)"`
	FullName   string    `json:"full_name" validate:"required,max=100"`
	Line1      string    `json:"line1" validate:"required,max=200"`
	Line2      string    `json:"line2" validate:"omitempty,max=200"`
	City       string    `json:"city" validate:"required,max=100"`
	State      string    `json:"state" validate:"required,max=100"`
	PostalCode string    `json:"postal_code" validate:"required,max=20"`
	Phone      string    `json:"phone" validate:"required,max=20"`
	CreatedAt  time.Time `json:"created_at"`
}

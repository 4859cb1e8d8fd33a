package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq" // required for pq.StringArray
	"gorm.io/gorm"
)

// Roles recognized by the chat core.
const (
	RoleCustomer = "customer"
	RoleOperator = "operator"
)

// User is the directory entry behind a chat identity. Customers come from the
// storefront account base, operators from the staff table; the chat core only
// needs id, display name and role.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"` // UUID
	DisplayName string `gorm:"type:text;not null" json:"displayName"`
	Role        string `gorm:"type:text;not null;index" json:"role"`
	// TelegramID is set for operators who receive offline alerts via the
	// staff bot. May be empty.
	TelegramID string `json:"-"`
	// Departments tags operators for dashboard filtering ("billing",
	// "shipping", ...). Stored as a PostgreSQL text array.
	Departments pq.StringArray `gorm:"type:text[]" json:"departments,omitempty"`
}

// BeforeCreate is a GORM hook generating a user UUID when the ID is not set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// IsOperator reports whether the user acts as support staff.
func (u *User) IsOperator() bool {
	return u.Role == RoleOperator
}

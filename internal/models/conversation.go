package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation status lifecycle. CLOSED is terminal: a closed conversation is
// never reopened, the customer starts a new one instead.
const (
	ConversationStatusPending = "PENDING"
	ConversationStatusOpen    = "OPEN"
	ConversationStatusClosed  = "CLOSED"
)

// Conversation represents a support thread between one customer and at most
// one assigned operator.
type Conversation struct {
	// ID is the unique identifier for the conversation (UUID).
	ID string `gorm:"primaryKey" json:"id"`
	// CustomerID is the owning customer. Immutable once created.
	CustomerID string `gorm:"type:uuid;not null;index:idx_customer_status" json:"customerId"`
	// OperatorID is the assigned operator, nil while unclaimed.
	OperatorID *string `gorm:"type:uuid" json:"operatorId,omitempty"`
	// Subject is an optional free-text label supplied at creation.
	Subject string `gorm:"type:text" json:"subject,omitempty"`
	// Status is one of the ConversationStatus* constants.
	Status string `gorm:"not null;index:idx_customer_status" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is bumped on every message append and status change, and
	// drives the most-recently-updated ordering of the operator dashboard.
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate is a GORM hook generating the conversation UUID and defaulting
// the status when not set by the caller.
func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = ConversationStatusPending
	}
	return
}

// IsClosed reports whether the conversation is in its terminal state.
func (c *Conversation) IsClosed() bool {
	return c.Status == ConversationStatusClosed
}

// IsActive reports whether the conversation still accepts messages.
func (c *Conversation) IsActive() bool {
	return c.Status == ConversationStatusPending || c.Status == ConversationStatusOpen
}

// ConversationPreview is a dashboard listing row: the conversation plus its
// latest message, if any.
type ConversationPreview struct {
	Conversation Conversation `json:"conversation"`
	LastMessage  *Message     `json:"lastMessage,omitempty"`
}

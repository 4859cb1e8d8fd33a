package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a single unit of text inside a conversation. Messages are
// append-only and immutable once created, except for the IsRead flag which is
// flipped when the other party marks the conversation read.
type Message struct {
	// ID is the unique identifier for the message (UUID). Clients use it to
	// deduplicate pushes delivered over more than one connection.
	ID string `gorm:"primaryKey" json:"id"`
	// ConversationID is the owning conversation. Immutable.
	ConversationID string `gorm:"type:uuid;not null;index:idx_conversation_created" json:"conversationId"`
	// SenderID is the user who sent the message.
	SenderID string `gorm:"type:uuid;not null" json:"senderId"`
	// SenderRole is RoleCustomer or RoleOperator.
	SenderRole string `gorm:"type:text;not null" json:"senderRole"`
	// Content is the opaque text payload. Never empty.
	Content string `gorm:"type:text;not null" json:"content"`
	// IsRead starts false and becomes true when the other party marks the
	// conversation read.
	IsRead bool `gorm:"not null;default:false" json:"isRead"`
	// CreatedAt orders messages within a conversation.
	CreatedAt time.Time `gorm:"index:idx_conversation_created" json:"createdAt"`
}

// BeforeCreate is a GORM hook generating the message UUID.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

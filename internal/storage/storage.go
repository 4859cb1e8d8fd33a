package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"supportchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// BroadcastChannel is the Redis Pub/Sub channel carrying message events
// between server processes.
const BroadcastChannel = "chat:events"

// Store is the persistence contract of the chat core. All operations are
// atomic at the single-row level; AppendMessage additionally bumps the
// conversation timestamp inside one transaction.
type Store interface {
	// Users
	GetUserByID(id string) (*models.User, error)
	SaveUser(user *models.User) error
	FindOrCreateUser(user *models.User) (*models.User, error)
	GetOperatorTelegramIDs() ([]string, error)

	// Conversations
	FindActiveConversation(customerID string) (*models.Conversation, error)
	CreateConversation(customerID, subject string) (*models.Conversation, error)
	GetConversation(id string) (*models.Conversation, error)
	GetConversationMessages(conversationID string, limit int) ([]models.Message, error)
	SetConversationStatus(conversationID, status string) error
	AssignOperator(conversationID, operatorID string) error
	ListConversations(status string) ([]models.ConversationPreview, error)
	PurgeClosedBefore(cutoff time.Time) (int64, error)

	// Messages
	AppendMessage(conversationID, senderID, senderRole, content string) (*models.Message, error)
	MarkMessagesRead(conversationID, readerID string) (int64, error)
	CountUnread(userID, role string) (int64, error)

	// Cross-process fan-out
	PublishEvent(evt models.RemoteEvent) error
}

// Service is the gorm + Redis implementation of Store.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService constructs the Store backing the chat hub.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// GetUserByID loads a directory entry. Returns nil without error when the
// user does not exist.
func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveUser upserts a user row.
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// FindOrCreateUser loads the user with the given ID, creating the row from
// the supplied fields on first contact.
func (s *Service) FindOrCreateUser(user *models.User) (*models.User, error) {
	var found models.User
	result := s.DB.Where("id = ?", user.ID).FirstOrCreate(&found, user)
	if result.Error != nil {
		log.Printf("ERROR: Failed to find or create user %s: %v", user.ID, result.Error)
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("INFO: New user %s (%s) saved to database.", found.ID, found.Role)
	}
	return &found, nil
}

// GetOperatorTelegramIDs returns the Telegram chat ids of operators enrolled
// for offline alerts.
func (s *Service) GetOperatorTelegramIDs() ([]string, error) {
	var ids []string
	err := s.DB.Model(&models.User{}).
		Where("role = ? AND telegram_id <> ''", models.RoleOperator).
		Pluck("telegram_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindActiveConversation returns the customer's single non-closed
// conversation, or nil when none exists.
func (s *Service) FindActiveConversation(customerID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.Where("customer_id = ? AND status <> ?", customerID, models.ConversationStatusClosed).
		Order("created_at desc").
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to find active conversation for customer %s: %v", customerID, err)
		return nil, err
	}
	return &conv, nil
}

// CreateConversation opens a new PENDING conversation for the customer.
// A partial unique index on (customer_id) WHERE status <> 'CLOSED' backs the
// single-active-conversation invariant at the storage layer; gorm tags cannot
// express it, so the migration step creates it with raw SQL.
func (s *Service) CreateConversation(customerID, subject string) (*models.Conversation, error) {
	conv := &models.Conversation{
		CustomerID: customerID,
		Subject:    strings.TrimSpace(subject),
		Status:     models.ConversationStatusPending,
	}
	if err := s.DB.Create(conv).Error; err != nil {
		log.Printf("ERROR: Failed to create conversation for customer %s: %v", customerID, err)
		return nil, err
	}
	return conv, nil
}

// GetConversation loads a conversation by id. Returns nil without error when
// it does not exist.
func (s *Service) GetConversation(id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to get conversation %s: %v", id, err)
		return nil, err
	}
	return &conv, nil
}

// GetConversationMessages returns the most recent messages of a conversation
// ordered oldest-first. A limit <= 0 loads the full history.
func (s *Service) GetConversationMessages(conversationID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	q := s.DB.Where("conversation_id = ?", conversationID).Order("created_at asc")
	if limit > 0 {
		// Take the newest window but keep chronological order.
		sub := s.DB.Model(&models.Message{}).
			Select("id").
			Where("conversation_id = ?", conversationID).
			Order("created_at desc").
			Limit(limit)
		q = s.DB.Where("id IN (?)", sub).Order("created_at asc")
	}
	if err := q.Find(&messages).Error; err != nil {
		log.Printf("ERROR: Failed to get messages for conversation %s: %v", conversationID, err)
		return nil, err
	}
	return messages, nil
}

// SetConversationStatus updates the lifecycle status and bumps updated_at.
// Setting the current status again is a no-op at the row level, which keeps
// racing PENDING->OPEN transitions idempotent.
func (s *Service) SetConversationStatus(conversationID, status string) error {
	return s.DB.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": gorm.Expr("NOW()"),
		}).Error
}

// AssignOperator records the first operator who replied. The assignment is
// informational, not an exclusive claim.
func (s *Service) AssignOperator(conversationID, operatorID string) error {
	return s.DB.Model(&models.Conversation{}).
		Where("id = ? AND operator_id IS NULL", conversationID).
		Update("operator_id", operatorID).Error
}

// ListConversations returns conversations most-recently-updated first, each
// with its latest message attached for the dashboard preview. An empty status
// filter lists every conversation.
func (s *Service) ListConversations(status string) ([]models.ConversationPreview, error) {
	var convs []models.Conversation
	q := s.DB.Order("updated_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&convs).Error; err != nil {
		log.Printf("ERROR: Failed to list conversations: %v", err)
		return nil, err
	}

	previews := make([]models.ConversationPreview, 0, len(convs))
	for _, conv := range convs {
		preview := models.ConversationPreview{Conversation: conv}
		var last models.Message
		err := s.DB.Where("conversation_id = ?", conv.ID).
			Order("created_at desc").
			First(&last).Error
		if err == nil {
			preview.LastMessage = &last
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		previews = append(previews, preview)
	}
	return previews, nil
}

// PurgeClosedBefore deletes closed conversations and their messages whose
// last activity predates the cutoff. Data-retention tool, used by the ops CLI
// only; the chat core itself never deletes.
func (s *Service) PurgeClosedBefore(cutoff time.Time) (int64, error) {
	var purged int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Conversation{}).
			Where("status = ? AND updated_at < ?", models.ConversationStatusClosed, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("conversation_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&models.Conversation{})
		purged = result.RowsAffected
		return result.Error
	})
	return purged, err
}

// AppendMessage persists a message and bumps the owning conversation's
// updated_at in the same transaction.
func (s *Service) AppendMessage(conversationID, senderID, senderRole, content string) (*models.Message, error) {
	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderRole:     senderRole,
		Content:        content,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", gorm.Expr("NOW()")).Error
	})
	if err != nil {
		log.Printf("ERROR: Failed to append message to conversation %s: %v", conversationID, err)
		return nil, err
	}
	return msg, nil
}

// MarkMessagesRead flips IsRead on every message in the conversation not sent
// by the reader and returns the number of rows changed. Calling it again
// without new messages changes zero rows.
func (s *Service) MarkMessagesRead(conversationID, readerID string) (int64, error) {
	result := s.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Update("is_read", true)
	if result.Error != nil {
		log.Printf("ERROR: Failed to mark messages read in conversation %s: %v", conversationID, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountUnread tallies messages addressed to the user that are still unread.
// Customers count operator messages in their own conversations; operators act
// as general support and count customer messages across assigned plus
// unclaimed non-closed conversations.
func (s *Service) CountUnread(userID, role string) (int64, error) {
	var count int64
	q := s.DB.Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.is_read = ? AND messages.sender_id <> ?", false, userID)
	if role == models.RoleOperator {
		q = q.Where("conversations.status <> ?", models.ConversationStatusClosed).
			Where("conversations.operator_id = ? OR conversations.operator_id IS NULL", userID).
			Where("messages.sender_role = ?", models.RoleCustomer)
	} else {
		q = q.Where("conversations.customer_id = ?", userID).
			Where("messages.sender_role = ?", models.RoleOperator)
	}
	if err := q.Count(&count).Error; err != nil {
		log.Printf("ERROR: Failed to count unread for user %s: %v", userID, err)
		return 0, err
	}
	return count, nil
}

// PublishEvent pushes a message event onto the Redis broadcast channel so
// sibling processes can deliver it to their local connections.
func (s *Service) PublishEvent(evt models.RemoteEvent) error {
	if s.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, BroadcastChannel, payload).Err()
}

// SubscribeEvents subscribes to the broadcast channel. The caller owns the
// returned PubSub and must close it.
func (s *Service) SubscribeEvents() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, BroadcastChannel)
}

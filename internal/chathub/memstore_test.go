package chathub_test

import (
	"strings"
	"sync"
	"time"

	"supportchat/backend/internal/models"

	"github.com/google/uuid"
)

// memStore is a stateful in-memory implementation of storage.Store with the
// same semantics the real gorm service has. Property-style hub tests run
// against it so assertions can inspect persisted state directly.
type memStore struct {
	mu        sync.Mutex
	convs     map[string]*models.Conversation
	msgs      map[string][]models.Message
	published []models.RemoteEvent
	clock     time.Time
}

func newMemStore() *memStore {
	return &memStore{
		convs: make(map[string]*models.Conversation),
		msgs:  make(map[string][]models.Message),
		clock: time.Now(),
	}
}

// tick returns a strictly increasing timestamp so message ordering is
// deterministic.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *memStore) GetUserByID(id string) (*models.User, error) { return nil, nil }
func (s *memStore) SaveUser(user *models.User) error            { return nil }
func (s *memStore) FindOrCreateUser(user *models.User) (*models.User, error) {
	return user, nil
}
func (s *memStore) GetOperatorTelegramIDs() ([]string, error) { return nil, nil }

func (s *memStore) FindActiveConversation(customerID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.CustomerID == customerID && !conv.IsClosed() {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateConversation(customerID, subject string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	conv := &models.Conversation{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Subject:    strings.TrimSpace(subject),
		Status:     models.ConversationStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.convs[conv.ID] = conv
	copied := *conv
	return &copied, nil
}

func (s *memStore) GetConversation(id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, nil
	}
	copied := *conv
	return &copied, nil
}

func (s *memStore) GetConversationMessages(conversationID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append([]models.Message(nil), s.msgs[conversationID]...)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *memStore) SetConversationStatus(conversationID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[conversationID]; ok {
		conv.Status = status
		conv.UpdatedAt = s.tick()
	}
	return nil
}

func (s *memStore) AssignOperator(conversationID, operatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[conversationID]; ok && conv.OperatorID == nil {
		conv.OperatorID = &operatorID
	}
	return nil
}

func (s *memStore) ListConversations(status string) ([]models.ConversationPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ConversationPreview
	for _, conv := range s.convs {
		if status != "" && conv.Status != status {
			continue
		}
		preview := models.ConversationPreview{Conversation: *conv}
		if msgs := s.msgs[conv.ID]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			preview.LastMessage = &last
		}
		out = append(out, preview)
	}
	return out, nil
}

func (s *memStore) PurgeClosedBefore(cutoff time.Time) (int64, error) { return 0, nil }

func (s *memStore) AppendMessage(conversationID, senderID, senderRole, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderRole:     senderRole,
		Content:        content,
		CreatedAt:      s.tick(),
	}
	s.msgs[conversationID] = append(s.msgs[conversationID], msg)
	if conv, ok := s.convs[conversationID]; ok {
		conv.UpdatedAt = msg.CreatedAt
	}
	copied := msg
	return &copied, nil
}

func (s *memStore) MarkMessagesRead(conversationID, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var flipped int64
	msgs := s.msgs[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			flipped++
		}
	}
	return flipped, nil
}

func (s *memStore) CountUnread(userID, role string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for convID, conv := range s.convs {
		if role == models.RoleOperator {
			if conv.IsClosed() {
				continue
			}
			if conv.OperatorID != nil && *conv.OperatorID != userID {
				continue
			}
		} else if conv.CustomerID != userID {
			continue
		}
		for _, msg := range s.msgs[convID] {
			if msg.IsRead || msg.SenderID == userID {
				continue
			}
			if role == models.RoleOperator && msg.SenderRole != models.RoleCustomer {
				continue
			}
			if role == models.RoleCustomer && msg.SenderRole != models.RoleOperator {
				continue
			}
			count++
		}
	}
	return count, nil
}

func (s *memStore) PublishEvent(evt models.RemoteEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, evt)
	return nil
}

// messageCount reports how many messages a conversation holds.
func (s *memStore) messageCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs[conversationID])
}

// conversationStatus reads the persisted status directly.
func (s *memStore) conversationStatus(conversationID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[conversationID]; ok {
		return conv.Status
	}
	return ""
}

package chathub_test

import (
	"time"

	"supportchat/backend/internal/chathub"
	"supportchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of the storage.Store interface, used where a
// test only asserts that a call happened. Stateful scenarios use memStore
// instead.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetUserByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStore) FindOrCreateUser(user *models.User) (*models.User, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) GetOperatorTelegramIDs() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) FindActiveConversation(customerID string) (*models.Conversation, error) {
	args := m.Called(customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStore) CreateConversation(customerID, subject string) (*models.Conversation, error) {
	args := m.Called(customerID, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStore) GetConversation(id string) (*models.Conversation, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStore) GetConversationMessages(conversationID string, limit int) ([]models.Message, error) {
	args := m.Called(conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStore) SetConversationStatus(conversationID, status string) error {
	args := m.Called(conversationID, status)
	return args.Error(0)
}

func (m *MockStore) AssignOperator(conversationID, operatorID string) error {
	args := m.Called(conversationID, operatorID)
	return args.Error(0)
}

func (m *MockStore) ListConversations(status string) ([]models.ConversationPreview, error) {
	args := m.Called(status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationPreview), args.Error(1)
}

func (m *MockStore) PurgeClosedBefore(cutoff time.Time) (int64, error) {
	args := m.Called(cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) AppendMessage(conversationID, senderID, senderRole, content string) (*models.Message, error) {
	args := m.Called(conversationID, senderID, senderRole, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStore) MarkMessagesRead(conversationID, readerID string) (int64, error) {
	args := m.Called(conversationID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) CountUnread(userID, role string) (int64, error) {
	args := m.Called(userID, role)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) PublishEvent(evt models.RemoteEvent) error {
	args := m.Called(evt)
	return args.Error(0)
}

// mockClient is a test double for the chathub.Client interface with a
// buffered send channel the tests drain.
type mockClient struct {
	userID      string
	displayName string
	role        string
	send        chan models.ServerEvent
	closed      bool
}

func newMockClient(id, name, role string) *mockClient {
	return &mockClient{
		userID:      id,
		displayName: name,
		role:        role,
		send:        make(chan models.ServerEvent, 64),
	}
}

func (c *mockClient) GetUserID() string                         { return c.userID }
func (c *mockClient) GetDisplayName() string                    { return c.displayName }
func (c *mockClient) GetRole() string                           { return c.role }
func (c *mockClient) GetSendChannel() chan<- models.ServerEvent { return c.send }
func (c *mockClient) Run()                                      {}
func (c *mockClient) Close()                                    { c.closed = true }

// waitFor drains the client's send channel until an event with the given
// name arrives, or fails the test after the timeout.
func waitFor(t testingT, c *mockClient, event string) models.ServerEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-c.send:
			if evt.Event == event {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event for user %s", event, c.userID)
			return models.ServerEvent{}
		}
	}
}

// drain empties the client's send channel and returns what was queued.
func drain(c *mockClient) []models.ServerEvent {
	var out []models.ServerEvent
	for {
		select {
		case evt := <-c.send:
			out = append(out, evt)
		default:
			return out
		}
	}
}

// countEvents tallies queued events by name.
func countEvents(events []models.ServerEvent, name string) int {
	n := 0
	for _, evt := range events {
		if evt.Event == name {
			n++
		}
	}
	return n
}

// testingT is the subset of *testing.T the helpers need.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// sendIntent feeds one frame into the hub and gives the loop time to
// process it.
func sendIntent(hub *chathub.ManagerService, c chathub.Client, frame models.ClientIntent) {
	hub.IntentCh <- chathub.Intent{Client: c, Frame: frame}
	time.Sleep(50 * time.Millisecond)
}

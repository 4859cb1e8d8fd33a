package chathub

import (
	"log"

	"supportchat/backend/internal/models"
	"supportchat/backend/internal/storage"

	"github.com/google/uuid"
)

// Intent is one client frame awaiting processing, paired with the connection
// it arrived on. The transport guarantees in-order delivery per connection;
// intents from different connections interleave arbitrarily.
type Intent struct {
	Client Client
	Frame  models.ClientIntent
}

// AlertSink receives out-of-band operator alerts (e.g. the staff Telegram
// bot) when no operator connection is online to pick up a customer.
type AlertSink interface {
	NotifyNewConversation(conv models.Conversation, customerName string)
	NotifyUnattendedMessage(conv models.Conversation, msg models.Message, senderName string)
}

// ManagerService is the conversation session manager: a single goroutine
// owning conversation lifecycle, message relay, read receipts, typing and
// unread bookkeeping. All mutations go through its Run loop, so intents
// within one process are processed one at a time.
type ManagerService struct {
	Registry *Registry
	Fanout   *Fanout
	Storage  storage.Store

	RegisterCh   chan Client
	UnregisterCh chan Client
	IntentCh     chan Intent
	// RemoteCh receives message events published by sibling processes.
	RemoteCh chan models.RemoteEvent

	// Alerts is optional; nil disables out-of-band operator alerts.
	Alerts AlertSink

	// originID identifies this process on the Redis broadcast channel.
	originID string
	// historyLimit bounds the message window returned with a conversation.
	historyLimit int

	done chan struct{}
}

// NewManagerService constructs the hub around a Store.
func NewManagerService(s storage.Store, historyLimit int) *ManagerService {
	return &ManagerService{
		Registry:     NewRegistry(),
		Fanout:       NewFanout(),
		Storage:      s,
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IntentCh:     make(chan Intent, 64),
		RemoteCh:     make(chan models.RemoteEvent, 64),
		originID:     uuid.New().String(),
		historyLimit: historyLimit,
		done:         make(chan struct{}),
	}
}

// SetAlertSink wires the optional offline-operator alert channel.
func (m *ManagerService) SetAlertSink(a AlertSink) {
	m.Alerts = a
}

// OriginID returns this process's id on the broadcast channel.
func (m *ManagerService) OriginID() string {
	return m.originID
}

// Run is the hub's main loop. It owns every state mutation; callers feed it
// through the channels and never touch the registry maps directly.
func (m *ManagerService) Run() {
	for {
		select {
		case client := <-m.RegisterCh:
			m.handleRegister(client)

		case client := <-m.UnregisterCh:
			m.handleUnregister(client)

		case intent := <-m.IntentCh:
			m.handleIntent(intent)

		case evt := <-m.RemoteCh:
			m.handleRemoteEvent(evt)

		case <-m.done:
			return
		}
	}
}

// Stop terminates the Run loop. Existing connections are closed by their own
// pumps when the server shuts down the listener.
func (m *ManagerService) Stop() {
	close(m.done)
}

// handleRegister admits an authenticated connection: records presence,
// restores the customer's active conversation subscription, and pushes the
// current unread count so a reconnecting client starts consistent.
func (m *ManagerService) handleRegister(c Client) {
	m.Registry.Register(c)
	log.Printf("INFO: Client registered: user=%s role=%s", c.GetUserID(), c.GetRole())

	if c.GetRole() == models.RoleCustomer {
		conv, err := m.Storage.FindActiveConversation(c.GetUserID())
		if err == nil && conv != nil {
			m.Registry.JoinRoom(c, conv.ID)
		}
	}

	count, err := m.Storage.CountUnread(c.GetUserID(), c.GetRole())
	if err != nil {
		log.Printf("ERROR: Failed to compute unread count for %s: %v", c.GetUserID(), err)
		return
	}
	m.Fanout.Deliver(UnreadCountEvent(count), []Client{c})
}

// handleUnregister drops a connection. Safe to call twice: the registry
// reports whether the connection was still present, and the client is closed
// only on the first removal. Persisted state is untouched.
func (m *ManagerService) handleUnregister(c Client) {
	if m.Registry.Unregister(c) {
		c.Close()
		log.Printf("INFO: Client unregistered: user=%s", c.GetUserID())
	}
}

// handleIntent dispatches one decoded frame to its handler.
func (m *ManagerService) handleIntent(in Intent) {
	switch in.Frame.Event {
	case models.EventStartConversation:
		m.handleStartConversation(in.Client, in.Frame)
	case models.EventJoinConversation:
		m.handleJoinConversation(in.Client, in.Frame)
	case models.EventSendMessage:
		m.handleSendMessage(in.Client, in.Frame)
	case models.EventMarkAsRead:
		m.handleMarkAsRead(in.Client, in.Frame)
	case models.EventGetConversations:
		m.handleGetConversations(in.Client, in.Frame)
	case models.EventCloseConversation:
		m.handleCloseConversation(in.Client, in.Frame)
	case models.EventTyping:
		m.handleTyping(in.Client, in.Frame)
	default:
		log.Printf("WARNING: Unknown intent %q from user %s", in.Frame.Event, in.Client.GetUserID())
		m.reject(in.Client, in.Frame.Event, in.Frame.ConversationID, "unknown intent")
	}
}

// handleRemoteEvent delivers a message persisted by a sibling process to the
// connections this process holds. Events originating here were already
// delivered locally and are skipped.
func (m *ManagerService) handleRemoteEvent(evt models.RemoteEvent) {
	if evt.OriginID == m.originID {
		return
	}
	m.relayMessage(evt.Conversation, evt.Message, evt.SenderName)
}

// reject returns an error acknowledgment to the offending connection only.
// Invalid intents never mutate state and are never broadcast.
func (m *ManagerService) reject(c Client, intent, conversationID, reason string) {
	m.Fanout.Deliver(ErrorAckEvent(intent, conversationID, reason), []Client{c})
}

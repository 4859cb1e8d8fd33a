package chathub

import (
	"log"
	"strings"

	"supportchat/backend/internal/models"
)

// Intent handlers. One per wire event; each validates against current
// conversation state, mutates the store, and fans the resulting event out to
// the relevant connections. Persistence always happens before any push, so a
// lost push never loses a message.

// handleStartConversation resumes the customer's active conversation or
// creates a new PENDING one. Creating announces the conversation to every
// connected operator; when none is online the alert sink is notified instead.
func (m *ManagerService) handleStartConversation(c Client, f models.ClientIntent) {
	if c.GetRole() != models.RoleCustomer {
		m.reject(c, f.Event, "", "only customers start conversations")
		return
	}

	conv, err := m.Storage.FindActiveConversation(c.GetUserID())
	if err != nil {
		m.reject(c, f.Event, "", "store unavailable")
		return
	}

	// A fresh conversation has no history, so the create path carries no
	// store call between announcing to operators and acking the customer.
	var messages []models.Message
	if conv == nil {
		conv, err = m.Storage.CreateConversation(c.GetUserID(), f.Subject)
		if err != nil {
			m.reject(c, f.Event, "", "store unavailable")
			return
		}
		m.Fanout.Deliver(
			ConversationEvent(models.EventNewConversation, *conv, nil),
			m.Registry.OperatorConnections(),
		)
		if m.Alerts != nil && !m.Registry.OperatorOnline() {
			m.Alerts.NotifyNewConversation(*conv, c.GetDisplayName())
		}
	} else {
		messages, err = m.Storage.GetConversationMessages(conv.ID, m.historyLimit)
		if err != nil {
			m.reject(c, f.Event, conv.ID, "store unavailable")
			return
		}
	}

	m.Registry.JoinRoom(c, conv.ID)
	m.Fanout.Deliver(ConversationEvent(models.EventConversationStarted, *conv, messages), []Client{c})
}

// handleJoinConversation subscribes an operator connection to a conversation
// room and returns its history. Joining changes neither status nor
// assignment; the customer is told an operator is watching.
func (m *ManagerService) handleJoinConversation(c Client, f models.ClientIntent) {
	if c.GetRole() != models.RoleOperator {
		m.reject(c, f.Event, f.ConversationID, "only operators join conversations")
		return
	}
	conv, err := m.Storage.GetConversation(f.ConversationID)
	if err != nil {
		m.reject(c, f.Event, f.ConversationID, "store unavailable")
		return
	}
	if conv == nil {
		m.reject(c, f.Event, f.ConversationID, "conversation not found")
		return
	}

	m.Registry.JoinRoom(c, conv.ID)

	messages, err := m.Storage.GetConversationMessages(conv.ID, m.historyLimit)
	if err != nil {
		m.reject(c, f.Event, conv.ID, "store unavailable")
		return
	}
	m.Fanout.Deliver(ConversationEvent(models.EventConversationJoined, *conv, messages), []Client{c})
	m.Fanout.Deliver(AdminJoinedEvent(conv.ID, c), m.Registry.ConnectionsFor(conv.CustomerID))
}

// handleSendMessage validates, persists and relays one message. A message
// from an operator moves a PENDING conversation to OPEN and records the first
// responder as the assigned operator; neither step is an exclusive claim.
func (m *ManagerService) handleSendMessage(c Client, f models.ClientIntent) {
	content := strings.TrimSpace(f.Content)
	if content == "" {
		m.reject(c, f.Event, f.ConversationID, "empty message content")
		return
	}

	conv, err := m.Storage.GetConversation(f.ConversationID)
	if err != nil {
		m.reject(c, f.Event, f.ConversationID, "store unavailable")
		return
	}
	if conv == nil {
		m.reject(c, f.Event, f.ConversationID, "conversation not found")
		return
	}
	if conv.IsClosed() {
		m.reject(c, f.Event, conv.ID, "conversation is closed")
		return
	}
	if c.GetRole() == models.RoleCustomer && conv.CustomerID != c.GetUserID() {
		m.reject(c, f.Event, conv.ID, "not a participant")
		return
	}

	msg, err := m.Storage.AppendMessage(conv.ID, c.GetUserID(), c.GetRole(), content)
	if err != nil {
		m.reject(c, f.Event, conv.ID, "store unavailable")
		return
	}

	if c.GetRole() == models.RoleOperator {
		if conv.Status == models.ConversationStatusPending {
			if err := m.Storage.SetConversationStatus(conv.ID, models.ConversationStatusOpen); err != nil {
				log.Printf("ERROR: Failed to open conversation %s: %v", conv.ID, err)
			} else {
				conv.Status = models.ConversationStatusOpen
			}
		}
		if conv.OperatorID == nil {
			if err := m.Storage.AssignOperator(conv.ID, c.GetUserID()); err != nil {
				log.Printf("ERROR: Failed to assign operator on conversation %s: %v", conv.ID, err)
			} else {
				operatorID := c.GetUserID()
				conv.OperatorID = &operatorID
			}
		}
	}

	m.relayMessage(*conv, *msg, c.GetDisplayName())

	if c.GetRole() == models.RoleCustomer && m.Alerts != nil && !m.Registry.OperatorOnline() {
		m.Alerts.NotifyUnattendedMessage(*conv, *msg, c.GetDisplayName())
	}

	if err := m.Storage.PublishEvent(models.RemoteEvent{
		OriginID:     m.originID,
		Conversation: *conv,
		Message:      *msg,
		SenderName:   c.GetDisplayName(),
	}); err != nil {
		log.Printf("WARNING: Failed to publish message %s to broadcast channel: %v", msg.ID, err)
	}
}

// relayMessage pushes a persisted message to every connection that must see
// it: the sender's own connections (ack and multi-tab sync), the other
// participant's connections, and everyone joined to the room. Each connection
// receives the event exactly once. Recipients additionally get a toast-style
// notification and a refreshed unread count.
func (m *ManagerService) relayMessage(conv models.Conversation, msg models.Message, senderName string) {
	recipients := m.recipientConnections(conv, msg.SenderRole)
	m.Fanout.Deliver(
		NewMessageEvent(msg),
		m.Registry.ConnectionsFor(msg.SenderID),
		recipients,
		m.Registry.RoomConnections(conv.ID),
	)
	m.Fanout.Deliver(MessageNotificationEvent(msg, senderName), recipients)

	for _, userID := range distinctUsers(recipients) {
		conns := m.Registry.ConnectionsFor(userID)
		if len(conns) == 0 {
			continue
		}
		count, err := m.Storage.CountUnread(userID, conns[0].GetRole())
		if err != nil {
			log.Printf("ERROR: Failed to recompute unread count for %s: %v", userID, err)
			continue
		}
		m.Fanout.Deliver(UnreadCountEvent(count), conns)
	}
}

// recipientConnections resolves "the other participant" of a message. For a
// customer message on an unclaimed conversation that is every connected
// operator, matching the broadcast-to-all simplification for unowned threads.
func (m *ManagerService) recipientConnections(conv models.Conversation, senderRole string) []Client {
	if senderRole == models.RoleCustomer {
		if conv.OperatorID != nil {
			return m.Registry.ConnectionsFor(*conv.OperatorID)
		}
		return m.Registry.OperatorConnections()
	}
	return m.Registry.ConnectionsFor(conv.CustomerID)
}

// handleMarkAsRead flips unread messages addressed to the requester and, when
// anything actually changed, tells the other party so their UI can render
// read marks. The requester always gets a refreshed unread count. Customers
// may only mark their own conversation.
func (m *ManagerService) handleMarkAsRead(c Client, f models.ClientIntent) {
	conv, err := m.Storage.GetConversation(f.ConversationID)
	if err != nil {
		m.reject(c, f.Event, f.ConversationID, "store unavailable")
		return
	}
	if conv == nil {
		m.reject(c, f.Event, f.ConversationID, "conversation not found")
		return
	}
	if c.GetRole() == models.RoleCustomer && conv.CustomerID != c.GetUserID() {
		m.reject(c, f.Event, conv.ID, "not a participant")
		return
	}

	count, err := m.Storage.MarkMessagesRead(conv.ID, c.GetUserID())
	if err != nil {
		m.reject(c, f.Event, conv.ID, "store unavailable")
		return
	}

	if count > 0 {
		other := m.recipientConnections(*conv, c.GetRole())
		m.Fanout.DeliverExcept(
			MessagesReadEvent(conv.ID, c.GetUserID(), count),
			c.GetUserID(),
			other,
			m.Registry.RoomConnections(conv.ID),
		)
	}

	unread, err := m.Storage.CountUnread(c.GetUserID(), c.GetRole())
	if err != nil {
		log.Printf("ERROR: Failed to recompute unread count for %s: %v", c.GetUserID(), err)
		return
	}
	m.Fanout.Deliver(UnreadCountEvent(unread), m.Registry.ConnectionsFor(c.GetUserID()))
}

// handleGetConversations serves the operator dashboard listing. Not
// state-changing.
func (m *ManagerService) handleGetConversations(c Client, f models.ClientIntent) {
	if c.GetRole() != models.RoleOperator {
		m.reject(c, f.Event, "", "only operators list conversations")
		return
	}
	previews, err := m.Storage.ListConversations(f.Status)
	if err != nil {
		m.reject(c, f.Event, "", "store unavailable")
		return
	}
	m.Fanout.Deliver(ConversationsListEvent(previews), []Client{c})
}

// handleCloseConversation moves a conversation to its terminal state and
// announces the closure to everyone involved. Reopening is impossible; the
// customer starts a fresh conversation instead.
func (m *ManagerService) handleCloseConversation(c Client, f models.ClientIntent) {
	if c.GetRole() != models.RoleOperator {
		m.reject(c, f.Event, f.ConversationID, "only operators close conversations")
		return
	}
	conv, err := m.Storage.GetConversation(f.ConversationID)
	if err != nil {
		m.reject(c, f.Event, f.ConversationID, "store unavailable")
		return
	}
	if conv == nil {
		m.reject(c, f.Event, f.ConversationID, "conversation not found")
		return
	}
	if conv.IsClosed() {
		m.reject(c, f.Event, conv.ID, "conversation already closed")
		return
	}

	if err := m.Storage.SetConversationStatus(conv.ID, models.ConversationStatusClosed); err != nil {
		m.reject(c, f.Event, conv.ID, "store unavailable")
		return
	}

	evt := ConversationClosedEvent(conv.ID, c.GetUserID())
	m.Fanout.Deliver(evt,
		[]Client{c},
		m.Registry.ConnectionsFor(conv.CustomerID),
		m.Registry.RoomConnections(conv.ID),
	)
}

// handleTyping is a stateless relay of an ephemeral signal: no store call, no
// tracked state, auto-expiry is the client's concern. The sender must be
// joined to the room; anything else is silently dropped.
func (m *ManagerService) handleTyping(c Client, f models.ClientIntent) {
	if !m.Registry.InRoom(c, f.ConversationID) {
		log.Printf("WARNING: Typing signal for unjoined conversation %s from user %s", f.ConversationID, c.GetUserID())
		return
	}
	m.Fanout.DeliverExcept(
		TypingEvent(f.ConversationID, c, f.IsTyping),
		c.GetUserID(),
		m.Registry.RoomConnections(f.ConversationID),
	)
}

// distinctUsers collapses a connection list to unique user ids.
func distinctUsers(conns []Client) []string {
	seen := make(map[string]struct{}, len(conns))
	var out []string
	for _, c := range conns {
		if _, ok := seen[c.GetUserID()]; ok {
			continue
		}
		seen[c.GetUserID()] = struct{}{}
		out = append(out, c.GetUserID())
	}
	return out
}

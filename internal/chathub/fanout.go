package chathub

import (
	"log"

	"supportchat/backend/internal/models"
)

// Fanout is the stateless dispatcher pushing structured payloads to sets of
// connections. Delivery is fire-and-forget: a connection with a full or dead
// send channel is logged and skipped, it never blocks delivery to the rest.
// Persisted state is unaffected by a lost push.
type Fanout struct{}

// NewFanout constructs the dispatcher.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Deliver pushes the event to every target connection. Duplicate targets are
// collapsed so each connection receives the event at most once.
func (f *Fanout) Deliver(evt models.ServerEvent, targets ...[]Client) {
	seen := make(map[Client]struct{})
	for _, group := range targets {
		for _, c := range group {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			f.deliverOne(c, evt)
		}
	}
}

// DeliverExcept behaves like Deliver but skips connections of one user,
// typically the sender of an ephemeral signal.
func (f *Fanout) DeliverExcept(evt models.ServerEvent, exceptUserID string, targets ...[]Client) {
	seen := make(map[Client]struct{})
	for _, group := range targets {
		for _, c := range group {
			if c.GetUserID() == exceptUserID {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			f.deliverOne(c, evt)
		}
	}
}

func (f *Fanout) deliverOne(c Client, evt models.ServerEvent) {
	select {
	case c.GetSendChannel() <- evt:
	default:
		// Slow or dead connection. The event is dropped for this
		// connection only.
		log.Printf("WARNING: Dropping %s event for user %s: send buffer full", evt.Event, c.GetUserID())
	}
}

// Event constructors. Three payload families: full message events,
// conversation lifecycle events, and ephemeral signals.

func NewMessageEvent(msg models.Message) models.ServerEvent {
	return models.ServerEvent{Event: models.EventNewMessage, Data: msg}
}

func MessageNotificationEvent(msg models.Message, senderName string) models.ServerEvent {
	return models.ServerEvent{Event: models.EventMessageNotification, Data: models.NotificationPayload{
		ConversationID: msg.ConversationID,
		Message:        msg,
		SenderName:     senderName,
	}}
}

func ConversationEvent(name string, conv models.Conversation, messages []models.Message) models.ServerEvent {
	return models.ServerEvent{Event: name, Data: models.ConversationPayload{
		Conversation: conv,
		Messages:     messages,
	}}
}

func ConversationsListEvent(previews []models.ConversationPreview) models.ServerEvent {
	return models.ServerEvent{Event: models.EventConversationsList, Data: previews}
}

func ConversationClosedEvent(conversationID, closedBy string) models.ServerEvent {
	return models.ServerEvent{Event: models.EventConversationClosed, Data: models.ClosedPayload{
		ConversationID: conversationID,
		ClosedBy:       closedBy,
	}}
}

func AdminJoinedEvent(conversationID string, operator Client) models.ServerEvent {
	return models.ServerEvent{Event: models.EventAdminJoined, Data: models.AdminJoinedPayload{
		ConversationID: conversationID,
		OperatorID:     operator.GetUserID(),
		OperatorName:   operator.GetDisplayName(),
	}}
}

func MessagesReadEvent(conversationID, readBy string, count int64) models.ServerEvent {
	return models.ServerEvent{Event: models.EventMessagesRead, Data: models.ReadReceiptPayload{
		ConversationID: conversationID,
		ReadBy:         readBy,
		Count:          count,
	}}
}

func TypingEvent(conversationID string, user Client, isTyping bool) models.ServerEvent {
	return models.ServerEvent{Event: models.EventUserTyping, Data: models.TypingPayload{
		ConversationID: conversationID,
		UserID:         user.GetUserID(),
		DisplayName:    user.GetDisplayName(),
		IsTyping:       isTyping,
	}}
}

func UnreadCountEvent(count int64) models.ServerEvent {
	return models.ServerEvent{Event: models.EventUnreadCount, Data: models.UnreadPayload{Count: count}}
}

func ErrorAckEvent(intent, conversationID, reason string) models.ServerEvent {
	return models.ServerEvent{Event: models.EventErrorAck, Data: models.ErrorAckPayload{
		Intent:         intent,
		ConversationID: conversationID,
		Reason:         reason,
	}}
}

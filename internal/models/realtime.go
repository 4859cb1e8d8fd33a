package models

// Client-to-server intent event names.
const (
	EventStartConversation = "startConversation"
	EventJoinConversation  = "joinConversation"
	EventSendMessage       = "sendMessage"
	EventMarkAsRead        = "markAsRead"
	EventGetConversations  = "getConversations"
	EventCloseConversation = "closeConversation"
	EventTyping            = "typing"
)

// Server-to-client push event names.
const (
	EventConversationStarted = "conversationStarted"
	EventConversationJoined  = "conversationJoined"
	EventNewMessage          = "newMessage"
	EventMessageNotification = "messageNotification"
	EventConversationsList   = "conversationsList"
	EventNewConversation     = "newConversation"
	EventAdminJoined         = "adminJoined"
	EventMessagesRead        = "messagesRead"
	EventConversationClosed  = "conversationClosed"
	EventUserTyping          = "userTyping"
	EventUnreadCount         = "unreadCount"
	EventErrorAck            = "errorAck"
)

// ClientIntent is one decoded client frame. Event selects the intent, the
// remaining fields are read depending on it.
type ClientIntent struct {
	Event          string `json:"event"`
	ConversationID string `json:"conversationId,omitempty"`
	Content        string `json:"content,omitempty"`
	Subject        string `json:"subject,omitempty"`
	Status         string `json:"status,omitempty"`
	IsTyping       bool   `json:"isTyping,omitempty"`
}

// ServerEvent is one frame pushed to a client. Data carries one of the
// payload shapes below, keyed by Event.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ConversationPayload answers startConversation / joinConversation and
// announces new conversations to operators.
type ConversationPayload struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages,omitempty"`
}

// NotificationPayload is the toast-style companion of a newMessage push, so a
// client can surface a system notification without rendering the thread.
type NotificationPayload struct {
	ConversationID string  `json:"conversationId"`
	Message        Message `json:"message"`
	SenderName     string  `json:"senderName"`
}

// ReadReceiptPayload tells the other party their messages were read.
type ReadReceiptPayload struct {
	ConversationID string `json:"conversationId"`
	ReadBy         string `json:"readBy"`
	Count          int64  `json:"count"`
}

// TypingPayload is an ephemeral typing signal. Expiry is the client's concern.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	IsTyping       bool   `json:"isTyping"`
}

// UnreadPayload carries the receiver's current unread total.
type UnreadPayload struct {
	Count int64 `json:"count"`
}

// ClosedPayload announces a conversation reaching its terminal state.
type ClosedPayload struct {
	ConversationID string `json:"conversationId"`
	ClosedBy       string `json:"closedBy"`
}

// AdminJoinedPayload tells the customer an operator subscribed to the thread.
type AdminJoinedPayload struct {
	ConversationID string `json:"conversationId"`
	OperatorID     string `json:"operatorId"`
	OperatorName   string `json:"operatorName"`
}

// ErrorAckPayload is returned to the sender of an invalid intent. It is never
// broadcast.
type ErrorAckPayload struct {
	Intent         string `json:"intent"`
	ConversationID string `json:"conversationId,omitempty"`
	Reason         string `json:"reason"`
}

// RemoteEvent travels over the Redis broadcast channel so that a second
// server process can deliver a message persisted by this one. OriginID keeps
// the publishing process from re-delivering its own events.
type RemoteEvent struct {
	OriginID     string       `json:"originId"`
	Conversation Conversation `json:"conversation"`
	Message      Message      `json:"message"`
	SenderName   string       `json:"senderName"`
}

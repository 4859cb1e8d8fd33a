package chatclient

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"supportchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// intentRecorder captures intents the client would have written to the socket.
type intentRecorder struct {
	mu      sync.Mutex
	intents []models.ClientIntent
}

func (r *intentRecorder) record(intent models.ClientIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
	return nil
}

func (r *intentRecorder) all() []models.ClientIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ClientIntent(nil), r.intents...)
}

func newRecordedClient() (*Client, *intentRecorder) {
	c := New("ws://localhost/ws/chat", "token")
	rec := &intentRecorder{}
	c.sendFn = rec.record
	return c, rec
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	c := New("ws://localhost/ws/chat", "token")

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, c.nextBackoff(), "backoff step %d", i)
	}
}

func TestDispatchSuppressesDuplicateMessages(t *testing.T) {
	c := New("ws://localhost/ws/chat", "token")

	// Payloads arrive as decoded JSON, so Data is a map.
	msg := func(id string) models.ServerEvent {
		return models.ServerEvent{
			Event: models.EventNewMessage,
			Data:  map[string]interface{}{"id": id, "content": "hi"},
		}
	}

	c.dispatch(msg("m-1"))
	c.dispatch(msg("m-1"))
	c.dispatch(msg("m-2"))

	assert.Len(t, c.Events, 2, "the repeated delivery of m-1 is dropped")
}

func TestDispatchDedupeSetIsBounded(t *testing.T) {
	c := New("ws://localhost/ws/chat", "token")

	msg := func(id string) models.ServerEvent {
		return models.ServerEvent{
			Event: models.EventNewMessage,
			Data:  map[string]interface{}{"id": id},
		}
	}

	for i := 0; i <= maxSeenMessages; i++ {
		c.dispatch(msg(fmt.Sprintf("m-%d", i)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.seen, maxSeenMessages)
	assert.Len(t, c.seenOrder, maxSeenMessages)
	// The oldest id was evicted, the rest are still tracked.
	assert.NotContains(t, c.seen, "m-0")
	assert.Contains(t, c.seen, "m-1")
	assert.Contains(t, c.seen, fmt.Sprintf("m-%d", maxSeenMessages))
}

func TestDispatchPassesNonMessageEventsThrough(t *testing.T) {
	c := New("ws://localhost/ws/chat", "token")

	evt := models.ServerEvent{
		Event: models.EventUserTyping,
		Data:  map[string]interface{}{"conversationId": "conv-1", "isTyping": true},
	}
	c.dispatch(evt)
	c.dispatch(evt)

	assert.Len(t, c.Events, 2, "ephemeral signals are never deduplicated")
}

func TestSendIntentRequiresConnection(t *testing.T) {
	c := New("ws://localhost/ws/chat", "token")

	err := c.SendMessage("conv-1", "hello")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestIntentMethodsBuildCorrectFrames(t *testing.T) {
	c, rec := newRecordedClient()

	require.NoError(t, c.StartConversation("billing"))
	require.NoError(t, c.JoinConversation("conv-1"))
	require.NoError(t, c.SendMessage("conv-1", "hello"))
	require.NoError(t, c.MarkAsRead("conv-1"))
	require.NoError(t, c.GetConversations(models.ConversationStatusPending))
	require.NoError(t, c.CloseConversation("conv-1"))

	intents := rec.all()
	require.Len(t, intents, 6)
	assert.Equal(t, models.ClientIntent{Event: models.EventStartConversation, Subject: "billing"}, intents[0])
	assert.Equal(t, models.ClientIntent{Event: models.EventJoinConversation, ConversationID: "conv-1"}, intents[1])
	assert.Equal(t, models.ClientIntent{Event: models.EventSendMessage, ConversationID: "conv-1", Content: "hello"}, intents[2])
	assert.Equal(t, models.ClientIntent{Event: models.EventMarkAsRead, ConversationID: "conv-1"}, intents[3])
	assert.Equal(t, models.ClientIntent{Event: models.EventGetConversations, Status: models.ConversationStatusPending}, intents[4])
	assert.Equal(t, models.ClientIntent{Event: models.EventCloseConversation, ConversationID: "conv-1"}, intents[5])
}

func TestTypingDebounce(t *testing.T) {
	c, rec := newRecordedClient()
	c.typingIdle = 50 * time.Millisecond

	// A burst of keystrokes emits one start signal.
	require.NoError(t, c.Typing("conv-1"))
	require.NoError(t, c.Typing("conv-1"))
	require.NoError(t, c.Typing("conv-1"))

	intents := rec.all()
	require.Len(t, intents, 1)
	assert.True(t, intents[0].IsTyping)
	assert.Equal(t, "conv-1", intents[0].ConversationID)

	// After the idle window elapses quietly, the stop signal follows.
	time.Sleep(100 * time.Millisecond)
	intents = rec.all()
	require.Len(t, intents, 2)
	assert.False(t, intents[1].IsTyping)
	assert.Equal(t, "conv-1", intents[1].ConversationID)
}

func TestTypingConversationSwitchStopsOldSignal(t *testing.T) {
	c, rec := newRecordedClient()
	c.typingIdle = time.Minute // keep the timer pending for the whole test

	require.NoError(t, c.Typing("conv-1"))
	require.NoError(t, c.Typing("conv-2"))

	intents := rec.all()
	require.Len(t, intents, 3)
	assert.Equal(t, "conv-1", intents[0].ConversationID)
	assert.True(t, intents[0].IsTyping)
	assert.Equal(t, "conv-1", intents[1].ConversationID)
	assert.False(t, intents[1].IsTyping, "old conversation gets an explicit stop")
	assert.Equal(t, "conv-2", intents[2].ConversationID)
	assert.True(t, intents[2].IsTyping)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
}

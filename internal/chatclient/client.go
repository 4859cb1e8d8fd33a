// Package chatclient is the connection layer a chat frontend builds on: an
// explicit state machine around a persistent socket with reconnect backoff,
// duplicate suppression by message id, and debounced typing signals. It knows
// nothing about rendering.
package chatclient

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"supportchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle:
// disconnected -> connecting -> connected -> disconnected -> ...
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	// typingIdle is how long after the last keystroke the typing signal
	// auto-expires on the sender side.
	typingIdle = 3 * time.Second
	// maxSeenMessages bounds the dedupe set. Duplicates only arrive within
	// reconnect overlap windows, so evicting old ids is safe; without a cap
	// a long-lived operator dashboard grows one entry per message ever seen.
	maxSeenMessages = 512
)

// ErrNotConnected is returned by intent methods while the socket is down.
// The user action stays retryable; nothing is queued.
var ErrNotConnected = errors.New("chatclient: not connected")

// Client maintains one authenticated chat connection.
type Client struct {
	url   string
	token string

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	seen    map[string]struct{}
	// seenOrder tracks insertion order for eviction once the set is full.
	seenOrder []string
	backoff   time.Duration

	typingMu    sync.Mutex
	typingConv  string
	typingTimer *time.Timer

	// Events receives deduplicated server events. The consumer must drain
	// it; a full buffer drops the oldest semantics is not attempted, the
	// event is dropped with a log line, mirroring the server's
	// fire-and-forget pushes.
	Events chan models.ServerEvent

	// onStateChange, when set, observes every transition. Useful for a UI
	// connection badge and for tests.
	onStateChange func(State)

	typingIdle time.Duration
	done       chan struct{}
	closeOnce  sync.Once

	// sendFn overrides the socket write in tests.
	sendFn func(models.ClientIntent) error
}

// New builds a client for the given ws endpoint and bearer token.
func New(url, token string) *Client {
	return &Client{
		url:        url,
		token:      token,
		state:      StateDisconnected,
		seen:       make(map[string]struct{}),
		backoff:    initialBackoff,
		Events:     make(chan models.ServerEvent, 64),
		typingIdle: typingIdle,
		done:       make(chan struct{}),
	}
}

// OnStateChange registers a transition observer. Call before Connect.
func (c *Client) OnStateChange(fn func(State)) {
	c.onStateChange = fn
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the connection loop. It returns immediately; the loop keeps
// redialing with capped exponential backoff until Close is called.
func (c *Client) Connect() {
	go c.run()
}

// Close stops the connection loop and closes the socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
}

func (c *Client) run() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.setState(StateConnecting)
		header := http.Header{"Authorization": []string{"Bearer " + c.token}}
		conn, _, err := websocket.DefaultDialer.Dial(c.url, header)
		if err != nil {
			c.setState(StateDisconnected)
			wait := c.nextBackoff()
			log.Printf("chatclient: dial failed, retrying in %s: %v", wait, err)
			select {
			case <-time.After(wait):
				continue
			case <-c.done:
				return
			}
		}

		c.mu.Lock()
		c.conn = conn
		c.backoff = initialBackoff
		c.mu.Unlock()
		c.setState(StateConnected)

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.setState(StateDisconnected)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}
		var evt models.ServerEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			log.Printf("chatclient: bad frame: %v", err)
			continue
		}
		c.dispatch(evt)
	}
}

// dispatch forwards an event to the consumer, suppressing duplicate message
// deliveries. Duplicates happen legitimately: the hub pushes to every
// connection of a user, and reconnect windows can overlap.
func (c *Client) dispatch(evt models.ServerEvent) {
	if evt.Event == models.EventNewMessage {
		if id := messageID(evt); id != "" {
			c.mu.Lock()
			_, dup := c.seen[id]
			if !dup {
				c.seen[id] = struct{}{}
				c.seenOrder = append(c.seenOrder, id)
				if len(c.seenOrder) > maxSeenMessages {
					delete(c.seen, c.seenOrder[0])
					c.seenOrder = c.seenOrder[1:]
				}
			}
			c.mu.Unlock()
			if dup {
				return
			}
		}
	}
	select {
	case c.Events <- evt:
	default:
		log.Printf("chatclient: dropping %s event: consumer not draining", evt.Event)
	}
}

// messageID digs the message id out of a decoded newMessage payload.
func messageID(evt models.ServerEvent) string {
	data, ok := evt.Data.(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := data["id"].(string)
	return id
}

// nextBackoff returns the current wait and doubles it for next time, capped.
func (c *Client) nextBackoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	wait := c.backoff
	c.backoff *= 2
	if c.backoff > maxBackoff {
		c.backoff = maxBackoff
	}
	return wait
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.onStateChange != nil {
		c.onStateChange(s)
	}
}

func (c *Client) sendIntent(intent models.ClientIntent) error {
	if c.sendFn != nil {
		return c.sendFn(intent)
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(intent)
}

// StartConversation resumes or creates the customer's conversation.
func (c *Client) StartConversation(subject string) error {
	return c.sendIntent(models.ClientIntent{Event: models.EventStartConversation, Subject: subject})
}

// JoinConversation subscribes to a conversation's live room (operator).
func (c *Client) JoinConversation(conversationID string) error {
	return c.sendIntent(models.ClientIntent{Event: models.EventJoinConversation, ConversationID: conversationID})
}

// SendMessage sends a text message. On failure the user retries; the server
// never persists a message it did not acknowledge with a newMessage echo.
func (c *Client) SendMessage(conversationID, content string) error {
	return c.sendIntent(models.ClientIntent{Event: models.EventSendMessage, ConversationID: conversationID, Content: content})
}

// MarkAsRead marks the whole conversation read.
func (c *Client) MarkAsRead(conversationID string) error {
	return c.sendIntent(models.ClientIntent{Event: models.EventMarkAsRead, ConversationID: conversationID})
}

// GetConversations requests the dashboard listing (operator).
func (c *Client) GetConversations(status string) error {
	return c.sendIntent(models.ClientIntent{Event: models.EventGetConversations, Status: status})
}

// CloseConversation closes a thread (operator).
func (c *Client) CloseConversation(conversationID string) error {
	return c.sendIntent(models.ClientIntent{Event: models.EventCloseConversation, ConversationID: conversationID})
}

// Typing reports keystroke activity, debounced: the first call emits
// isTyping=true, subsequent calls within the idle window only push the
// expiry out, and the stop signal goes once the window elapses quietly.
func (c *Client) Typing(conversationID string) error {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	if c.typingTimer != nil && c.typingConv == conversationID {
		c.typingTimer.Reset(c.typingIdle)
		return nil
	}
	if c.typingTimer != nil {
		// Switched conversations mid-typing: stop the old signal.
		c.typingTimer.Stop()
		c.sendTyping(c.typingConv, false)
	}

	c.typingConv = conversationID
	c.typingTimer = time.AfterFunc(c.typingIdle, func() {
		c.typingMu.Lock()
		c.typingTimer = nil
		c.typingMu.Unlock()
		c.sendTyping(conversationID, false)
	})
	return c.sendTyping(conversationID, true)
}

func (c *Client) sendTyping(conversationID string, isTyping bool) error {
	err := c.sendIntent(models.ClientIntent{
		Event:          models.EventTyping,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	})
	if err != nil && !errors.Is(err, ErrNotConnected) {
		log.Printf("chatclient: typing signal failed: %v", err)
	}
	return err
}

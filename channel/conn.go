// Package channel owns the persistent bidirectional event connection a
// mounted room view holds: one websocket per view, joined to exactly one
// room, torn down when the view goes away. Senders receive their own events
// back through the channel; there is no local echo suppression.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Event names shared with the backend.
const (
	EventJoinGroupChat        = "joinGroupChat"
	EventJoinChat             = "joinChat"
	EventSendGroupMessage     = "sendGroupMessage"
	EventSendChatMessage      = "sendChatMessage"
	EventReceiveGroupMessage  = "receiveGroupMessage"
	EventReceiveDirectMessage = "receiveDirectMessage"
	EventError                = "error"
)

var (
	// ErrClosed is returned when emitting on a torn-down connection.
	ErrClosed = errors.New("channel: connection closed")
	// ErrHandlerExists is returned when a second handler is registered for
	// the same event name.
	ErrHandlerExists = errors.New("channel: handler already registered")
)

// Envelope frames every event crossing the channel in either direction.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler consumes the raw payload of a received event. Handlers run
// serially on the connection's read loop.
type Handler func(payload []byte)

// Conn is a live room connection. It is owned by exactly one view; the view
// must call Close on every exit path.
type Conn struct {
	ws  *websocket.Conn
	log *log.Entry

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[string]Handler
	joined   bool
	closed   bool

	doneOnce sync.Once
	done     chan struct{}
}

// Dial opens a websocket to the backend's channel endpoint. bearer may be
// empty when the backend does not require authentication.
func Dial(ctx context.Context, url, bearer string) (*Conn, error) {
	header := http.Header{}
	if bearer != "" {
		header.Set("Authorization", "Bearer "+bearer)
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("channel dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("channel dial: %w", err)
	}
	c := &Conn{
		ws:       ws,
		log:      log.WithField("component", "channel"),
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// On registers exactly one handler per event name for the connection's
// lifetime. A second registration for the same name is rejected.
func (c *Conn) On(event string, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.handlers[event]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerExists, event)
	}
	c.handlers[event] = h
	return nil
}

// Emit sends an event to the backend.
func (c *Conn) Emit(event string, payload any) error {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	data, err := sonic.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// JoinGroup subscribes the connection to a task's group room. Joining is
// idempotent per connection: once joined, further joins are no-ops, so a
// view re-render cannot create a duplicate subscription.
func (c *Conn) JoinGroup(taskID string) error {
	return c.join(EventJoinGroupChat, taskID)
}

// DirectJoinPayload identifies a two-party room by its participants.
type DirectJoinPayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// JoinDirect subscribes the connection to a direct conversation room.
// Idempotent like JoinGroup.
func (c *Conn) JoinDirect(senderID, receiverID string) error {
	return c.join(EventJoinChat, DirectJoinPayload{SenderID: senderID, ReceiverID: receiverID})
}

func (c *Conn) join(event string, payload any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.joined {
		c.mu.Unlock()
		c.log.Debug("join ignored: already subscribed")
		return nil
	}
	c.joined = true
	c.mu.Unlock()

	if err := c.Emit(event, payload); err != nil {
		c.mu.Lock()
		c.joined = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.ws.Close()
	c.finish()
	return err
}

// Done is closed once the read loop exits, whether by Close or by a
// transport failure.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

// ErrorPayload is the body of the reserved "error" event.
type ErrorPayload struct {
	Message string `json:"message"`
}

func (c *Conn) readLoop() {
	defer c.finish()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				payload, _ := sonic.Marshal(ErrorPayload{Message: err.Error()})
				c.dispatch(EventError, payload)
			}
			return
		}
		var env Envelope
		if err := sonic.Unmarshal(data, &env); err != nil {
			c.log.WithError(err).Debug("dropping malformed frame")
			continue
		}
		c.dispatch(env.Event, env.Payload)
	}
}

func (c *Conn) dispatch(event string, payload []byte) {
	c.mu.Lock()
	h, ok := c.handlers[event]
	c.mu.Unlock()
	if !ok {
		c.log.WithField("event", event).Debug("no handler registered")
		return
	}
	h(payload)
}

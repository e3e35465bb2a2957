package backendtest

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/Susekh/TaskNest-client/channel"
	"github.com/Susekh/TaskNest-client/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) send(event string, payload any) error {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := sonic.Marshal(channel.Envelope{Event: event, Payload: raw})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// hub relays room-scoped events between connected clients. Senders are room
// members too, so they receive their own messages back; that echo is the
// client's commit signal.
type hub struct {
	store *store
	log   *log.Entry

	mu    sync.Mutex
	rooms map[string]map[*wsClient]struct{}
}

func newHub(store *store) *hub {
	return &hub{
		store: store,
		log:   log.WithField("component", "backendtest.hub"),
		rooms: make(map[string]map[*wsClient]struct{}),
	}
}

func (h *hub) join(roomID string, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*wsClient]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
}

func (h *hub) drop(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, members := range h.rooms {
		delete(members, c)
	}
}

func (h *hub) broadcast(roomID, event string, payload any) {
	h.mu.Lock()
	members := make([]*wsClient, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		members = append(members, c)
	}
	h.mu.Unlock()

	for _, c := range members {
		if err := c.send(event, payload); err != nil {
			h.log.WithError(err).Debug("broadcast write failed")
		}
	}
}

// serve runs one client's read loop until the connection drops.
func (h *hub) serve(conn *websocket.Conn) {
	c := &wsClient{conn: conn}
	defer func() {
		h.drop(c)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env channel.Envelope
		if err := sonic.Unmarshal(data, &env); err != nil {
			_ = c.send(channel.EventError, channel.ErrorPayload{Message: "malformed frame"})
			continue
		}
		h.handle(c, env)
	}
}

type groupSend struct {
	GroupID  string `json:"groupId"`
	Message  string `json:"message"`
	SenderID string `json:"senderId"`
	Name     string `json:"name"`
	FileURL  string `json:"fileUrl"`
}

type directSend struct {
	ConversationID string `json:"conversationId"`
	MemberID       string `json:"memberId"`
	ReceiverID     string `json:"receiverId"`
	Name           string `json:"name"`
	Message        string `json:"message"`
	FileURL        string `json:"fileUrl"`
}

func (h *hub) handle(c *wsClient, env channel.Envelope) {
	switch env.Event {
	case channel.EventJoinGroupChat:
		var taskID string
		if err := sonic.Unmarshal(env.Payload, &taskID); err != nil || taskID == "" {
			_ = c.send(channel.EventError, channel.ErrorPayload{Message: "invalid join payload"})
			return
		}
		h.join(taskID, c)

	case channel.EventJoinChat:
		var body channel.DirectJoinPayload
		if err := sonic.Unmarshal(env.Payload, &body); err != nil || body.SenderID == "" || body.ReceiverID == "" {
			_ = c.send(channel.EventError, channel.ErrorPayload{Message: "invalid join payload"})
			return
		}
		h.join(domain.DirectRoomID(body.SenderID, body.ReceiverID), c)

	case channel.EventSendGroupMessage:
		var body groupSend
		if err := sonic.Unmarshal(env.Payload, &body); err != nil || body.GroupID == "" {
			_ = c.send(channel.EventError, channel.ErrorPayload{Message: "invalid message payload"})
			return
		}
		msg := domain.Message{
			ID:        uuid.NewString(),
			Content:   body.Message,
			FileURL:   body.FileURL,
			MemberID:  body.SenderID,
			Name:      body.Name,
			TaskID:    body.GroupID,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := h.store.appendMessage(groupMsgKeyPrefix+body.GroupID, msg); err != nil {
			_ = c.send(channel.EventError, channel.ErrorPayload{Message: "failed to persist message"})
			return
		}
		h.broadcast(body.GroupID, channel.EventReceiveGroupMessage, map[string]domain.Message{"message": msg})

	case channel.EventSendChatMessage:
		var body directSend
		if err := sonic.Unmarshal(env.Payload, &body); err != nil || body.ConversationID == "" {
			_ = c.send(channel.EventError, channel.ErrorPayload{Message: "invalid message payload"})
			return
		}
		msg := domain.Message{
			ID:             uuid.NewString(),
			Content:        body.Message,
			FileURL:        body.FileURL,
			MemberID:       body.MemberID,
			Name:           body.Name,
			ConversationID: body.ConversationID,
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}
		if err := h.store.appendMessage(dmKeyPrefix+body.ConversationID, msg); err != nil {
			_ = c.send(channel.EventError, channel.ErrorPayload{Message: "failed to persist message"})
			return
		}
		h.broadcast(body.ConversationID, channel.EventReceiveDirectMessage, msg)

	default:
		h.log.WithField("event", env.Event).Debug("ignoring unknown event")
	}
}

// Broadcast injects an event into a room from the outside, bypassing the
// normal send flow. Tests use it to simulate redundant deliveries.
func (h *hub) Broadcast(roomID, event string, payload any) {
	h.broadcast(roomID, event, payload)
}

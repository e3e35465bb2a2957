package tasknest

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/Susekh/TaskNest-client/attachment"
	"github.com/Susekh/TaskNest-client/board"
	"github.com/Susekh/TaskNest-client/channel"
	"github.com/Susekh/TaskNest-client/domain"
	"github.com/Susekh/TaskNest-client/notify"
	"github.com/Susekh/TaskNest-client/rest"
	"github.com/Susekh/TaskNest-client/stream"
)

// Client is the engine entry point. Each Open* call mounts one view with
// its own exclusively-owned channel connection; closing the view always
// releases the connection, on error paths included.
type Client struct {
	cfg      Config
	api      *rest.Client
	notifier notify.Notifier
	log      *log.Entry
}

// New creates a Client. A nil notifier falls back to the structured log.
func New(cfg Config, notifier notify.Notifier) *Client {
	if notifier == nil {
		notifier = notify.NewLog("tasknest")
	}
	return &Client{
		cfg:      cfg,
		api:      rest.New(cfg.BackendURL, cfg.Bearer),
		notifier: notifier,
		log:      log.WithField("component", "tasknest"),
	}
}

// API exposes the underlying REST client.
func (c *Client) API() *rest.Client { return c.api }

// onChannelError surfaces transport-level channel failures to the user.
func (c *Client) onChannelError(payload []byte) {
	var body channel.ErrorPayload
	if err := sonic.Unmarshal(payload, &body); err != nil || body.Message == "" {
		c.notifier.Error("Socket error occurred")
		return
	}
	c.notifier.Error(body.Message)
}

// TaskView is a mounted task page: the task itself, its group chat and the
// compose box's attachment draft.
type TaskView struct {
	Task        domain.Task
	Messages    *stream.Reconciler
	Attachments *attachment.Manager

	conn      *channel.Conn
	closeOnce sync.Once
}

// OpenTaskView bootstraps the task, joins its group room and loads the chat
// history. The returned view owns the channel connection; Close tears it
// down. A history fetch failure degrades to an empty list (the error was
// already surfaced) rather than failing the mount.
func (c *Client) OpenTaskView(ctx context.Context, taskID string, self domain.Member) (*TaskView, error) {
	task, err := c.api.FetchTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	conn, err := channel.Dial(ctx, c.cfg.ChannelURL, c.cfg.Bearer)
	if err != nil {
		return nil, err
	}
	rec, err := c.mountRoom(conn, stream.NewGroupRoom(c.api, taskID), self)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.JoinGroup(taskID); err != nil {
		conn.Close()
		return nil, err
	}
	_ = rec.Load(ctx)

	return &TaskView{
		Task:        task,
		Messages:    rec,
		Attachments: attachment.New(c.api, c.notifier),
		conn:        conn,
	}, nil
}

// Conn exposes the view's channel connection.
func (v *TaskView) Conn() *channel.Conn { return v.conn }

// Close unmounts the view: the reconciler stops applying events and the
// channel disconnects. Safe to call more than once.
func (v *TaskView) Close() {
	v.closeOnce.Do(func() {
		v.Messages.Close()
		v.conn.Close()
	})
}

// ConversationView is a mounted direct-conversation page.
type ConversationView struct {
	Room     *stream.DirectRoom
	Messages *stream.Reconciler

	conn      *channel.Conn
	closeOnce sync.Once
}

// OpenConversationView joins a two-party room and loads its history. The
// peer is derived from the room id and the caller's member id.
func (c *Client) OpenConversationView(ctx context.Context, roomID string, self domain.Member) (*ConversationView, error) {
	conn, err := channel.Dial(ctx, c.cfg.ChannelURL, c.cfg.Bearer)
	if err != nil {
		return nil, err
	}
	room := stream.NewDirectRoom(c.api, roomID, self.ID)
	rec, err := c.mountRoom(conn, room, self)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.JoinDirect(self.ID, room.ReceiverID()); err != nil {
		conn.Close()
		return nil, err
	}
	_ = rec.Load(ctx)

	return &ConversationView{Room: room, Messages: rec, conn: conn}, nil
}

// Conn exposes the view's channel connection.
func (v *ConversationView) Conn() *channel.Conn { return v.conn }

// Close unmounts the view. Safe to call more than once.
func (v *ConversationView) Close() {
	v.closeOnce.Do(func() {
		v.Messages.Close()
		v.conn.Close()
	})
}

func (c *Client) mountRoom(conn *channel.Conn, room stream.Room, self domain.Member) (*stream.Reconciler, error) {
	if err := conn.On(channel.EventError, c.onChannelError); err != nil {
		return nil, err
	}
	return stream.New(room, conn, self, c.notifier)
}

// OpenBoard mounts a board view over the given columns with capabilities
// resolved once from the member's role.
func (c *Client) OpenBoard(columns []domain.Column, self domain.Member) *board.Engine {
	return board.New(columns, self.Role.Capabilities(), c.api, c.notifier)
}

// Package stream maintains the authoritative, time-ordered, deduplicated
// message list for a room. REST history is the baseline; live channel events
// merge into it; edits and deletes apply only on server confirmation.
package stream

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/Susekh/TaskNest-client/channel"
	"github.com/Susekh/TaskNest-client/domain"
	"github.com/Susekh/TaskNest-client/rest"
)

// Room abstracts the two room flavors (task group chat, two-party direct
// conversation): each binds its own REST endpoints, channel event names and
// payload shapes.
type Room interface {
	ID() string
	FetchHistory(ctx context.Context) ([]domain.Message, error)
	UpdateMessage(ctx context.Context, id, content string) error
	DeleteMessage(ctx context.Context, id string) error
	SendEvent() string
	ReceiveEvent() string
	SendPayload(sender domain.Member, content, fileURL string) any
	DecodeReceive(payload []byte) (domain.Message, error)
}

// GroupRoom is a task-scoped room; its id is the task id.
type GroupRoom struct {
	TaskID string
	API    *rest.Client
}

// NewGroupRoom binds a task's group chat to the REST client.
func NewGroupRoom(api *rest.Client, taskID string) *GroupRoom {
	return &GroupRoom{TaskID: taskID, API: api}
}

func (r *GroupRoom) ID() string { return r.TaskID }

func (r *GroupRoom) FetchHistory(ctx context.Context) ([]domain.Message, error) {
	return r.API.FetchGroupMessages(ctx, r.TaskID)
}

func (r *GroupRoom) UpdateMessage(ctx context.Context, id, content string) error {
	return r.API.UpdateGroupMessage(ctx, id, content)
}

func (r *GroupRoom) DeleteMessage(ctx context.Context, id string) error {
	return r.API.DeleteGroupMessage(ctx, id)
}

func (r *GroupRoom) SendEvent() string    { return channel.EventSendGroupMessage }
func (r *GroupRoom) ReceiveEvent() string { return channel.EventReceiveGroupMessage }

type groupSendPayload struct {
	GroupID  string `json:"groupId"`
	Message  string `json:"message"`
	SenderID string `json:"senderId"`
	Name     string `json:"name"`
	FileURL  string `json:"fileUrl,omitempty"`
}

func (r *GroupRoom) SendPayload(sender domain.Member, content, fileURL string) any {
	return groupSendPayload{
		GroupID:  r.TaskID,
		Message:  content,
		SenderID: sender.ID,
		Name:     sender.Name,
		FileURL:  fileURL,
	}
}

// DecodeReceive unwraps the {"message": ...} envelope group broadcasts use.
func (r *GroupRoom) DecodeReceive(payload []byte) (domain.Message, error) {
	var body struct {
		Message domain.Message `json:"message"`
	}
	if err := sonic.Unmarshal(payload, &body); err != nil {
		return domain.Message{}, fmt.Errorf("decode group message: %w", err)
	}
	return body.Message, nil
}

// DirectRoom is a two-party conversation; its id is the deterministic
// concatenation of the sorted participant member ids.
type DirectRoom struct {
	RoomID string
	SelfID string
	API    *rest.Client
}

// NewDirectRoom binds a direct conversation to the REST client. The peer's
// member id is recovered from the room id.
func NewDirectRoom(api *rest.Client, roomID, selfID string) *DirectRoom {
	return &DirectRoom{RoomID: roomID, SelfID: selfID, API: api}
}

func (r *DirectRoom) ID() string { return r.RoomID }

// ReceiverID is the other participant's member id.
func (r *DirectRoom) ReceiverID() string { return domain.PeerID(r.RoomID, r.SelfID) }

func (r *DirectRoom) FetchHistory(ctx context.Context) ([]domain.Message, error) {
	return r.API.FetchDirectMessages(ctx, r.RoomID)
}

func (r *DirectRoom) UpdateMessage(ctx context.Context, id, content string) error {
	return r.API.UpdateDirectMessage(ctx, id, content)
}

func (r *DirectRoom) DeleteMessage(ctx context.Context, id string) error {
	return r.API.DeleteDirectMessage(ctx, id)
}

func (r *DirectRoom) SendEvent() string    { return channel.EventSendChatMessage }
func (r *DirectRoom) ReceiveEvent() string { return channel.EventReceiveDirectMessage }

type directSendPayload struct {
	ConversationID string `json:"conversationId"`
	MemberID       string `json:"memberId"`
	ReceiverID     string `json:"receiverId"`
	Name           string `json:"name"`
	Message        string `json:"message"`
	FileURL        string `json:"fileUrl,omitempty"`
}

func (r *DirectRoom) SendPayload(sender domain.Member, content, fileURL string) any {
	return directSendPayload{
		ConversationID: r.RoomID,
		MemberID:       sender.ID,
		ReceiverID:     r.ReceiverID(),
		Name:           sender.Name,
		Message:        content,
		FileURL:        fileURL,
	}
}

// DecodeReceive parses the bare message payload direct broadcasts use.
func (r *DirectRoom) DecodeReceive(payload []byte) (domain.Message, error) {
	var msg domain.Message
	if err := sonic.Unmarshal(payload, &msg); err != nil {
		return domain.Message{}, fmt.Errorf("decode direct message: %w", err)
	}
	return msg, nil
}

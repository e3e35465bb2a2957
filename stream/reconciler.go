package stream

import (
	"context"
	"errors"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Susekh/TaskNest-client/channel"
	"github.com/Susekh/TaskNest-client/domain"
	"github.com/Susekh/TaskNest-client/notify"
)

var (
	// ErrEmptyMessage is returned when a send carries neither text nor an
	// attachment.
	ErrEmptyMessage = errors.New("stream: empty message")
	// ErrClosed is returned for operations on a closed reconciler.
	ErrClosed = errors.New("stream: reconciler closed")
)

// Channel is the slice of the room connection the reconciler needs.
type Channel interface {
	Emit(event string, payload any) error
	On(event string, h channel.Handler) error
}

// Reconciler owns the message list for one room. The list is ordered by
// non-decreasing creation time and holds at most one entry per message id,
// regardless of how the initial fetch interleaves with live channel events.
//
// Sending is round-trip only: nothing is appended locally on Send; the
// message becomes visible when the backend relays it back through the
// channel, which also clears the outstanding-send indicator.
type Reconciler struct {
	room     Room
	ch       Channel
	self     domain.Member
	notifier notify.Notifier
	log      *log.Entry

	mu          sync.Mutex
	messages    []domain.Message
	outstanding int
	closed      bool

	updates chan struct{}
}

// New wires a reconciler to its room and live channel. It registers the
// room's receive handler; the caller joins the room separately.
func New(room Room, ch Channel, self domain.Member, notifier notify.Notifier) (*Reconciler, error) {
	r := &Reconciler{
		room:     room,
		ch:       ch,
		self:     self,
		notifier: notifier,
		log:      log.WithFields(log.Fields{"component": "stream", "room": room.ID()}),
		updates:  make(chan struct{}, 1),
	}
	if err := ch.On(room.ReceiveEvent(), r.onReceive); err != nil {
		return nil, err
	}
	return r, nil
}

// Load fetches the room history once and merges it under any live messages
// that raced ahead of it. Whatever order the transport delivered, the list
// is normalized to ascending creation time.
func (r *Reconciler) Load(ctx context.Context) error {
	history, err := r.room.FetchHistory(ctx)
	if err != nil {
		r.log.WithError(err).Error("history fetch failed")
		r.notifier.Error("Failed to load messages")
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	for _, msg := range history {
		if !r.hasLocked(msg.ID) {
			r.messages = append(r.messages, msg)
		}
	}
	domain.SortMessagesAscending(r.messages)
	r.bump()
	return nil
}

// Updates signals after every change to the reconciled list. The channel
// carries at most one pending signal; readers re-read Messages on receipt.
func (r *Reconciler) Updates() <-chan struct{} { return r.updates }

func (r *Reconciler) bump() {
	select {
	case r.updates <- struct{}{}:
	default:
	}
}

// Messages returns a copy of the reconciled list.
func (r *Reconciler) Messages() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.messages...)
}

// Sending reports whether a send is outstanding, i.e. emitted but not yet
// echoed back by the channel.
func (r *Reconciler) Sending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstanding > 0
}

// Send emits the message to the room. fileURL may be empty; a message with
// neither text nor attachment is rejected before any network traffic.
func (r *Reconciler) Send(content, fileURL string) error {
	if strings.TrimSpace(content) == "" && fileURL == "" {
		return ErrEmptyMessage
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.outstanding++
	r.mu.Unlock()

	if err := r.ch.Emit(r.room.SendEvent(), r.room.SendPayload(r.self, content, fileURL)); err != nil {
		r.mu.Lock()
		r.outstanding--
		r.mu.Unlock()
		r.log.WithError(err).Error("send failed")
		r.notifier.Error("Failed to send message")
		return err
	}
	return nil
}

// Edit updates a message's content, replacing it locally only after the
// server confirms. On failure the prior content stays in place.
func (r *Reconciler) Edit(ctx context.Context, id, content string) error {
	if err := r.room.UpdateMessage(ctx, id, content); err != nil {
		r.log.WithError(err).WithField("message", id).Error("update rejected")
		r.notifier.Error("Error updating message")
		return err
	}

	r.mu.Lock()
	if !r.closed {
		for i := range r.messages {
			if r.messages[i].ID == id {
				r.messages[i].Content = content
				break
			}
		}
		r.bump()
	}
	r.mu.Unlock()

	r.notifier.Success("Message updated successfully")
	return nil
}

// Delete removes a message, locally only after the server confirms.
func (r *Reconciler) Delete(ctx context.Context, id string) error {
	if err := r.room.DeleteMessage(ctx, id); err != nil {
		r.log.WithError(err).WithField("message", id).Error("delete rejected")
		r.notifier.Error("Failed to delete message")
		return err
	}

	r.mu.Lock()
	if !r.closed {
		for i := range r.messages {
			if r.messages[i].ID == id {
				r.messages = append(r.messages[:i], r.messages[i+1:]...)
				break
			}
		}
		r.bump()
	}
	r.mu.Unlock()

	r.notifier.Success("Message deleted successfully")
	return nil
}

// Close detaches the reconciler. Late fetch results and channel events are
// dropped instead of applied.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Reconciler) onReceive(payload []byte) {
	msg, err := r.room.DecodeReceive(payload)
	if err != nil {
		r.log.WithError(err).Debug("dropping undecodable message event")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if msg.MemberID == r.self.ID && r.outstanding > 0 {
		r.outstanding--
	}
	if r.hasLocked(msg.ID) {
		return
	}
	r.messages = append(r.messages, msg)
	r.bump()
}

// hasLocked reports whether a message id is already present. Caller holds mu.
func (r *Reconciler) hasLocked(id string) bool {
	for i := range r.messages {
		if r.messages[i].ID == id {
			return true
		}
	}
	return false
}

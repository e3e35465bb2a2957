// Package board implements the Kanban reordering engine: drag-and-drop
// gestures are applied to the local column state immediately and confirmed
// with the backend afterwards. A rejected confirmation rolls the board back
// to the snapshot taken when the gesture committed, so the local view never
// diverges silently from server truth.
package board

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Susekh/TaskNest-client/domain"
	"github.com/Susekh/TaskNest-client/notify"
)

var (
	// ErrNotPermitted is returned when the member's role cannot reorder.
	ErrNotPermitted = errors.New("board: role cannot reorder tasks")
	// ErrDragInProgress is returned when a drag gesture is already active.
	ErrDragInProgress = errors.New("board: drag already in progress")
	// ErrNoActiveDrag is returned for drop or hover without a started drag.
	ErrNoActiveDrag = errors.New("board: no active drag")
	// ErrNoDropTarget is returned for a drop without a hovered target.
	ErrNoDropTarget = errors.New("board: no drop target")
	// ErrClosed is returned once the engine has been shut down.
	ErrClosed = errors.New("board: engine closed")
)

// Mover confirms task relocations with the backend.
type Mover interface {
	MoveTask(ctx context.Context, taskID, previousColumnID, targetColumnID string, order int) error
}

// DropTarget is a drop zone keyed by column and insertion index
// (0 = before the first task, N = after the Nth task).
type DropTarget struct {
	ColumnID string
	Position int
}

type dragState struct {
	gestureID string
	taskID    string
	columnID  string
	index     int
	hover     *DropTarget
}

type snapshot struct {
	gestureID string
	columns   []domain.Column
}

// Engine owns the ordered column/task state for one board view. All
// mutations flow through the drag gesture operations; no other component
// touches the column list directly.
type Engine struct {
	mover    Mover
	notifier notify.Notifier
	caps     domain.Capabilities
	log      *log.Entry

	mu        sync.Mutex
	columns   []domain.Column
	drag      *dragState
	snapshots []snapshot
	closed    bool
}

// New creates an engine over the given columns. caps gates gesture
// eligibility; a member without CanReorder can view but never drag.
func New(columns []domain.Column, caps domain.Capabilities, mover Mover, notifier notify.Notifier) *Engine {
	return &Engine{
		mover:    mover,
		notifier: notifier,
		caps:     caps,
		columns:  domain.CloneColumns(columns),
		log:      log.WithField("component", "board"),
	}
}

// Columns returns a copy of the current board state.
func (e *Engine) Columns() []domain.Column {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CloneColumns(e.columns)
}

// BeginDrag starts a gesture for the given task, capturing its source
// column and index.
func (e *Engine) BeginDrag(taskID string) error {
	if !e.caps.CanReorder {
		return ErrNotPermitted
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.drag != nil {
		return ErrDragInProgress
	}
	colIdx, taskIdx, ok := domain.FindTask(e.columns, taskID)
	if !ok {
		return domain.ErrTaskNotFound
	}
	e.drag = &dragState{
		gestureID: uuid.NewString(),
		taskID:    taskID,
		columnID:  e.columns[colIdx].ID,
		index:     taskIdx,
	}
	e.log.WithFields(log.Fields{"gesture": e.drag.gestureID, "task": taskID}).Debug("drag started")
	return nil
}

// HoverTarget records the drop zone under the pointer and reports whether
// the zone should render as active. Zones are never active without a drag
// or for a role that cannot reorder.
func (e *Engine) HoverTarget(t DropTarget) bool {
	if !e.caps.CanReorder {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.drag == nil {
		return false
	}
	target := t
	e.drag.hover = &target
	return true
}

// Cancel ends the gesture without a drop. Only transient drag state is
// cleared; the board is untouched.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.drag = nil
	e.mu.Unlock()
}

// ActiveDrag reports the task id of the gesture in progress, if any.
func (e *Engine) ActiveDrag() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag == nil {
		return "", false
	}
	return e.drag.taskID, true
}

// Drop commits the gesture: the task is removed from its source column and
// inserted at the hovered target, the new board state applies immediately,
// and the relocation is confirmed with the backend asynchronously. The
// returned channel delivers the confirmation result; on rejection the board
// has already been rolled back to its pre-gesture snapshot by the time the
// channel fires.
func (e *Engine) Drop(ctx context.Context) (<-chan error, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	drag := e.drag
	if drag == nil {
		e.mu.Unlock()
		return nil, ErrNoActiveDrag
	}
	if drag.hover == nil {
		e.drag = nil
		e.mu.Unlock()
		return nil, ErrNoDropTarget
	}

	move := domain.Move{
		TaskID:       drag.taskID,
		FromColumnID: drag.columnID,
		FromIndex:    drag.index,
		ToColumnID:   drag.hover.ColumnID,
		Position:     drag.hover.Position,
	}
	next, err := domain.ApplyMove(e.columns, move)
	if err != nil {
		e.drag = nil
		e.mu.Unlock()
		return nil, err
	}

	e.snapshots = append(e.snapshots, snapshot{gestureID: drag.gestureID, columns: e.columns})
	e.columns = next
	gestureID := drag.gestureID
	e.drag = nil
	e.mu.Unlock()

	done := make(chan error, 1)
	go e.confirm(ctx, gestureID, move, done)
	return done, nil
}

func (e *Engine) confirm(ctx context.Context, gestureID string, move domain.Move, done chan<- error) {
	err := e.mover.MoveTask(ctx, move.TaskID, move.FromColumnID, move.ToColumnID, move.Position)

	e.mu.Lock()
	if e.closed {
		// The view is gone; a late response must not touch detached state.
		e.mu.Unlock()
		done <- err
		return
	}
	if err == nil {
		e.discardSnapshot(gestureID)
		e.mu.Unlock()
		e.notifier.Success("Task moved successfully")
		done <- nil
		return
	}
	e.rollback(gestureID)
	e.mu.Unlock()

	e.log.WithError(err).WithField("gesture", gestureID).Error("move rejected, board rolled back")
	e.notifier.Error("Couldn't move the task")
	done <- err
}

// discardSnapshot drops the snapshot for a confirmed gesture. Caller holds mu.
func (e *Engine) discardSnapshot(gestureID string) {
	for i, s := range e.snapshots {
		if s.gestureID == gestureID {
			e.snapshots = append(e.snapshots[:i], e.snapshots[i+1:]...)
			return
		}
	}
}

// rollback restores the board to the snapshot taken when the gesture
// committed. Snapshots stacked after it describe moves applied on top of
// state that no longer exists, so they are discarded too. Caller holds mu.
func (e *Engine) rollback(gestureID string) {
	for i, s := range e.snapshots {
		if s.gestureID == gestureID {
			e.columns = s.columns
			e.snapshots = e.snapshots[:i]
			return
		}
	}
}

// Close shuts the engine down. Confirmations resolving afterwards are
// ignored rather than applied.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.drag = nil
	e.snapshots = nil
	e.mu.Unlock()
}

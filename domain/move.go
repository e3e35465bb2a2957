package domain

import "errors"

var (
	// ErrTaskNotFound is returned when a move references a task that is not
	// on the board.
	ErrTaskNotFound = errors.New("task not found on board")
	// ErrColumnNotFound is returned when a move targets an unknown column.
	ErrColumnNotFound = errors.New("column not found on board")
)

// Move is a resolved drag-and-drop relocation. Position is the insertion
// index within the target column's task list before the removal shift is
// accounted for (0 = before the first task, N = after the Nth task).
type Move struct {
	TaskID       string
	FromColumnID string
	FromIndex    int
	ToColumnID   string
	Position     int
}

// ResolvedIndex returns the index the task occupies after removal from its
// source position. For a move within the same column a target position past
// the source index shifts down by one; cross-column moves need no adjustment.
func (m Move) ResolvedIndex() int {
	if m.FromColumnID == m.ToColumnID && m.Position > m.FromIndex {
		return m.Position - 1
	}
	return m.Position
}

// ApplyMove returns a new column list with the move applied. The input is
// never mutated. Insertion indexes past the end of the target column clamp
// to an append.
func ApplyMove(cols []Column, m Move) ([]Column, error) {
	next := CloneColumns(cols)

	srcCol, srcIdx, ok := FindTask(next, m.TaskID)
	if !ok {
		return nil, ErrTaskNotFound
	}
	task := next[srcCol].Tasks[srcIdx]
	next[srcCol].Tasks = append(next[srcCol].Tasks[:srcIdx], next[srcCol].Tasks[srcIdx+1:]...)

	dstCol := -1
	for i, col := range next {
		if col.ID == m.ToColumnID {
			dstCol = i
			break
		}
	}
	if dstCol == -1 {
		return nil, ErrColumnNotFound
	}

	idx := m.ResolvedIndex()
	if idx > len(next[dstCol].Tasks) {
		idx = len(next[dstCol].Tasks)
	}
	if idx < 0 {
		idx = 0
	}

	task.ColumnID = m.ToColumnID
	tasks := next[dstCol].Tasks
	tasks = append(tasks, Task{})
	copy(tasks[idx+1:], tasks[idx:])
	tasks[idx] = task
	next[dstCol].Tasks = tasks

	for ti := range next[srcCol].Tasks {
		next[srcCol].Tasks[ti].Order = ti
	}
	for ti := range next[dstCol].Tasks {
		next[dstCol].Tasks[ti].Order = ti
	}
	return next, nil
}

package domain

import "time"

// Task is a single board item. A task belongs to exactly one column at any
// instant; Order is its index within that column.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ProjectID string    `json:"projectId,omitempty"`
	Content   string    `json:"content,omitempty"`
	Deadline  time.Time `json:"deadline"`
	ColumnID  string    `json:"columnId"`
	Members   []Member  `json:"members,omitempty"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Column owns an ordered, zero-indexed, contiguous list of tasks.
type Column struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SprintID string `json:"sprintId,omitempty"`
	Tasks    []Task `json:"tasks"`
}

// CloneColumns returns a deep copy of the column list so snapshots are not
// aliased by later mutations.
func CloneColumns(cols []Column) []Column {
	out := make([]Column, len(cols))
	for i, col := range cols {
		out[i] = col
		out[i].Tasks = make([]Task, len(col.Tasks))
		copy(out[i].Tasks, col.Tasks)
	}
	return out
}

// TaskCount returns the total number of tasks across all columns.
func TaskCount(cols []Column) int {
	n := 0
	for _, col := range cols {
		n += len(col.Tasks)
	}
	return n
}

// FindTask locates a task by id and returns its column index and position
// within that column. It returns ok=false when the task is not on the board.
func FindTask(cols []Column, taskID string) (colIdx, taskIdx int, ok bool) {
	for ci, col := range cols {
		for ti, task := range col.Tasks {
			if task.ID == taskID {
				return ci, ti, true
			}
		}
	}
	return 0, 0, false
}

package domain

import "testing"

func board() []Column {
	return []Column{
		{ID: "colA", Name: "Todo", Tasks: []Task{
			{ID: "T1", Name: "one", ColumnID: "colA", Order: 0},
			{ID: "T2", Name: "two", ColumnID: "colA", Order: 1},
			{ID: "T3", Name: "three", ColumnID: "colA", Order: 2},
		}},
		{ID: "colB", Name: "Doing", Tasks: []Task{
			{ID: "T4", Name: "four", ColumnID: "colB", Order: 0},
		}},
	}
}

func taskIDs(col Column) []string {
	ids := make([]string, len(col.Tasks))
	for i, task := range col.Tasks {
		ids[i] = task.ID
	}
	return ids
}

func assertOrder(t *testing.T, col Column, want ...string) {
	t.Helper()
	got := taskIDs(col)
	if len(got) != len(want) {
		t.Fatalf("column %s: expected %v, got %v", col.ID, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %s: expected %v, got %v", col.ID, want, got)
		}
	}
}

func TestResolvedIndexAdjustsWithinColumnPastSource(t *testing.T) {
	m := Move{FromColumnID: "colA", ToColumnID: "colA", FromIndex: 0, Position: 2}
	if got := m.ResolvedIndex(); got != 1 {
		t.Fatalf("expected resolved index 1, got %d", got)
	}
}

func TestResolvedIndexUnchangedAtOrBeforeSource(t *testing.T) {
	m := Move{FromColumnID: "colA", ToColumnID: "colA", FromIndex: 2, Position: 1}
	if got := m.ResolvedIndex(); got != 1 {
		t.Fatalf("expected resolved index 1, got %d", got)
	}
}

func TestResolvedIndexUnchangedAcrossColumns(t *testing.T) {
	m := Move{FromColumnID: "colA", ToColumnID: "colB", FromIndex: 0, Position: 2}
	if got := m.ResolvedIndex(); got != 2 {
		t.Fatalf("expected resolved index 2, got %d", got)
	}
}

func TestApplyMoveWithinColumn(t *testing.T) {
	cols, err := ApplyMove(board(), Move{
		TaskID: "T1", FromColumnID: "colA", FromIndex: 0, ToColumnID: "colA", Position: 2,
	})
	if err != nil {
		t.Fatalf("apply move: %v", err)
	}
	assertOrder(t, cols[0], "T2", "T1", "T3")
}

func TestApplyMoveToEarlierPosition(t *testing.T) {
	cols, err := ApplyMove(board(), Move{
		TaskID: "T3", FromColumnID: "colA", FromIndex: 2, ToColumnID: "colA", Position: 0,
	})
	if err != nil {
		t.Fatalf("apply move: %v", err)
	}
	assertOrder(t, cols[0], "T3", "T1", "T2")
}

func TestApplyMoveAcrossColumns(t *testing.T) {
	start := []Column{
		{ID: "colA", Tasks: []Task{{ID: "T1", ColumnID: "colA"}, {ID: "T2", ColumnID: "colA"}}},
		{ID: "colB", Tasks: []Task{{ID: "T3", ColumnID: "colB"}}},
	}
	cols, err := ApplyMove(start, Move{
		TaskID: "T1", FromColumnID: "colA", FromIndex: 0, ToColumnID: "colB", Position: 1,
	})
	if err != nil {
		t.Fatalf("apply move: %v", err)
	}
	assertOrder(t, cols[0], "T2")
	assertOrder(t, cols[1], "T3", "T1")
	if cols[1].Tasks[1].ColumnID != "colB" {
		t.Fatalf("expected moved task to adopt target column, got %s", cols[1].Tasks[1].ColumnID)
	}
}

func TestApplyMoveKeepsTotalTaskCount(t *testing.T) {
	start := board()
	total := TaskCount(start)
	cols, err := ApplyMove(start, Move{
		TaskID: "T2", FromColumnID: "colA", FromIndex: 1, ToColumnID: "colB", Position: 0,
	})
	if err != nil {
		t.Fatalf("apply move: %v", err)
	}
	if got := TaskCount(cols); got != total {
		t.Fatalf("expected %d tasks, got %d", total, got)
	}
	if len(cols[0].Tasks) != len(start[0].Tasks)-1 {
		t.Fatalf("source column should shrink by one, got %d", len(cols[0].Tasks))
	}
	if len(cols[1].Tasks) != len(start[1].Tasks)+1 {
		t.Fatalf("target column should grow by one, got %d", len(cols[1].Tasks))
	}
	assertOrder(t, cols[0], "T1", "T3")
}

func TestApplyMoveReindexesOrders(t *testing.T) {
	cols, err := ApplyMove(board(), Move{
		TaskID: "T1", FromColumnID: "colA", FromIndex: 0, ToColumnID: "colB", Position: 0,
	})
	if err != nil {
		t.Fatalf("apply move: %v", err)
	}
	for _, col := range cols {
		for i, task := range col.Tasks {
			if task.Order != i {
				t.Fatalf("column %s index %d has order %d", col.ID, i, task.Order)
			}
		}
	}
}

func TestApplyMoveDoesNotMutateInput(t *testing.T) {
	start := board()
	if _, err := ApplyMove(start, Move{
		TaskID: "T1", FromColumnID: "colA", FromIndex: 0, ToColumnID: "colB", Position: 0,
	}); err != nil {
		t.Fatalf("apply move: %v", err)
	}
	assertOrder(t, start[0], "T1", "T2", "T3")
	assertOrder(t, start[1], "T4")
}

func TestApplyMoveClampsPastEnd(t *testing.T) {
	cols, err := ApplyMove(board(), Move{
		TaskID: "T1", FromColumnID: "colA", FromIndex: 0, ToColumnID: "colB", Position: 5,
	})
	if err != nil {
		t.Fatalf("apply move: %v", err)
	}
	assertOrder(t, cols[1], "T4", "T1")
}

func TestApplyMoveUnknownTask(t *testing.T) {
	if _, err := ApplyMove(board(), Move{TaskID: "nope", ToColumnID: "colB"}); err != ErrTaskNotFound {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestApplyMoveUnknownColumn(t *testing.T) {
	if _, err := ApplyMove(board(), Move{TaskID: "T1", FromColumnID: "colA", ToColumnID: "nope"}); err != ErrColumnNotFound {
		t.Fatalf("expected ErrColumnNotFound, got %v", err)
	}
}

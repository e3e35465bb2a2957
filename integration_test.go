package tasknest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Susekh/TaskNest-client/backendtest"
	"github.com/Susekh/TaskNest-client/board"
	"github.com/Susekh/TaskNest-client/domain"
	"github.com/Susekh/TaskNest-client/notify"
	"github.com/Susekh/TaskNest-client/rest"
)

func startClient(t *testing.T, s *backendtest.Server, memberID string) (*Client, *notify.Recorder) {
	t.Helper()
	notes := &notify.Recorder{}
	cfg := Config{
		BackendURL: s.URL,
		ChannelURL: s.WSURL,
		Bearer:     s.MintToken(memberID),
	}
	return New(cfg, notes), notes
}

func member(id string, role domain.Role) domain.Member {
	return domain.Member{ID: id, Name: id, Role: role}
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", desc)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func seedTask(t *testing.T, s *backendtest.Server) domain.Task {
	t.Helper()
	task := domain.Task{ID: "task-1", Name: "draft release notes", ColumnID: "colA"}
	s.SeedTask(t, task)
	return task
}

func contentOf(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestTaskChatSendRoundTrip(t *testing.T) {
	s := backendtest.Start(t)
	task := seedTask(t, s)

	alice := member("alice", domain.RoleAdmin)
	bob := member("bob", domain.RoleContributor)

	aliceClient, _ := startClient(t, s, alice.ID)
	aliceView, err := aliceClient.OpenTaskView(context.Background(), task.ID, alice)
	if err != nil {
		t.Fatalf("open task view: %v", err)
	}
	t.Cleanup(aliceView.Close)

	// The echo of Alice's own send doubles as proof her join is live.
	if err := aliceView.Messages.Send("morning", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, "alice's echo", func() bool { return len(aliceView.Messages.Messages()) == 1 })
	if aliceView.Messages.Sending() {
		t.Fatalf("echo must clear the sending indicator")
	}

	bobClient, _ := startClient(t, s, bob.ID)
	bobView, err := bobClient.OpenTaskView(context.Background(), task.ID, bob)
	if err != nil {
		t.Fatalf("open task view: %v", err)
	}
	t.Cleanup(bobView.Close)

	// Bob got Alice's message through history on mount.
	waitFor(t, "history on bob's mount", func() bool { return len(bobView.Messages.Messages()) == 1 })

	if err := bobView.Messages.Send("hello alice", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, "bob's echo", func() bool { return len(bobView.Messages.Messages()) == 2 })
	waitFor(t, "live delivery to alice", func() bool { return len(aliceView.Messages.Messages()) == 2 })

	for _, view := range []*TaskView{aliceView, bobView} {
		got := contentOf(view.Messages.Messages())
		if got[0] != "morning" || got[1] != "hello alice" {
			t.Fatalf("expected [morning, hello alice], got %v", got)
		}
	}
}

func TestTaskChatHistoryNormalizedAscending(t *testing.T) {
	s := backendtest.Start(t)
	task := seedTask(t, s)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SeedGroupMessages(t, task.ID,
		domain.Message{ID: "M1", Content: "first", MemberID: "bob", TaskID: task.ID, CreatedAt: base},
		domain.Message{ID: "M2", Content: "second", MemberID: "bob", TaskID: task.ID, CreatedAt: base.Add(time.Minute)},
	)

	alice := member("alice", domain.RoleAdmin)
	client, _ := startClient(t, s, alice.ID)
	view, err := client.OpenTaskView(context.Background(), task.ID, alice)
	if err != nil {
		t.Fatalf("open task view: %v", err)
	}
	t.Cleanup(view.Close)

	// The backend serves history newest-first; the view shows it ascending.
	got := contentOf(view.Messages.Messages())
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("expected [first, second], got %v", got)
	}
}

func TestRedundantBroadcastKeepsOneCopy(t *testing.T) {
	s := backendtest.Start(t)
	task := seedTask(t, s)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seeded := domain.Message{ID: "M1", Content: "first", MemberID: "bob", TaskID: task.ID, CreatedAt: base}
	s.SeedGroupMessages(t, task.ID, seeded)

	alice := member("alice", domain.RoleAdmin)
	client, _ := startClient(t, s, alice.ID)
	view, err := client.OpenTaskView(context.Background(), task.ID, alice)
	if err != nil {
		t.Fatalf("open task view: %v", err)
	}
	t.Cleanup(view.Close)

	// Prove the join is live before injecting broadcasts.
	if err := view.Messages.Send("ping", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, "echo", func() bool { return len(view.Messages.Messages()) == 2 })

	// A redundant delivery of the already-fetched message, then a new one.
	s.BroadcastGroup(task.ID, seeded)
	fresh := domain.Message{ID: "M3", Content: "third", MemberID: "bob", TaskID: task.ID, CreatedAt: base.Add(time.Hour)}
	s.BroadcastGroup(task.ID, fresh)

	waitFor(t, "fresh broadcast", func() bool { return len(view.Messages.Messages()) == 3 })
	time.Sleep(50 * time.Millisecond)
	if got := view.Messages.Messages(); len(got) != 3 {
		t.Fatalf("redundant delivery must be dropped, got %v", contentOf(got))
	}
}

func TestEditAndDeleteConfirmedByBackend(t *testing.T) {
	s := backendtest.Start(t)
	task := seedTask(t, s)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SeedGroupMessages(t, task.ID,
		domain.Message{ID: "M1", Content: "draft", MemberID: "alice", TaskID: task.ID, CreatedAt: base},
		domain.Message{ID: "M2", Content: "typo", MemberID: "alice", TaskID: task.ID, CreatedAt: base.Add(time.Minute)},
	)

	alice := member("alice", domain.RoleAdmin)
	client, notes := startClient(t, s, alice.ID)
	view, err := client.OpenTaskView(context.Background(), task.ID, alice)
	if err != nil {
		t.Fatalf("open task view: %v", err)
	}
	t.Cleanup(view.Close)

	if err := view.Messages.Edit(context.Background(), "M1", "final"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := view.Messages.Delete(context.Background(), "M2"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got := view.Messages.Messages()
	if len(got) != 1 || got[0].ID != "M1" || got[0].Content != "final" {
		t.Fatalf("expected single edited message, got %+v", got)
	}
	stored := s.GroupMessages(t, task.ID)
	if len(stored) != 1 || stored[0].Content != "final" {
		t.Fatalf("backend state diverged: %+v", stored)
	}
	if ss := notes.Successes(); len(ss) != 2 {
		t.Fatalf("expected edit and delete notifications, got %v", ss)
	}

	// Editing a message the backend no longer has must not change the list.
	if err := view.Messages.Edit(context.Background(), "M2", "zombie"); err == nil {
		t.Fatalf("expected rejection for a deleted message")
	}
	if got := view.Messages.Messages(); len(got) != 1 || got[0].Content != "final" {
		t.Fatalf("rejected edit must leave the list alone, got %+v", got)
	}
}

func boardColumns() []domain.Column {
	return []domain.Column{
		{ID: "colA", Name: "Todo", Tasks: []domain.Task{
			{ID: "T1", ColumnID: "colA", Order: 0},
			{ID: "T2", ColumnID: "colA", Order: 1},
		}},
		{ID: "colB", Name: "Done", Tasks: []domain.Task{
			{ID: "T3", ColumnID: "colB", Order: 0},
		}},
	}
}

func columnTaskIDs(t *testing.T, cols []domain.Column, columnID string) []string {
	t.Helper()
	for _, col := range cols {
		if col.ID == columnID {
			ids := make([]string, len(col.Tasks))
			for i, task := range col.Tasks {
				ids[i] = task.ID
			}
			return ids
		}
	}
	t.Fatalf("column %s not found", columnID)
	return nil
}

func dropTask(t *testing.T, eng *board.Engine, taskID string, target board.DropTarget) error {
	t.Helper()
	if err := eng.BeginDrag(taskID); err != nil {
		t.Fatalf("begin drag: %v", err)
	}
	if !eng.HoverTarget(target) {
		t.Fatalf("hover target inactive")
	}
	done, err := eng.Drop(context.Background())
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatalf("move confirmation timed out")
		return nil
	}
}

func TestBoardMovePersistsOnBackend(t *testing.T) {
	s := backendtest.Start(t)
	s.SeedBoard(t, boardColumns())

	alice := member("alice", domain.RoleAdmin)
	client, _ := startClient(t, s, alice.ID)
	eng := client.OpenBoard(boardColumns(), alice)
	t.Cleanup(eng.Close)

	if err := dropTask(t, eng, "T1", board.DropTarget{ColumnID: "colB", Position: 1}); err != nil {
		t.Fatalf("move: %v", err)
	}

	got := columnTaskIDs(t, eng.Columns(), "colB")
	if len(got) != 2 || got[1] != "T1" {
		t.Fatalf("expected T1 appended to colB locally, got %v", got)
	}
	stored := columnTaskIDs(t, s.Board(t), "colB")
	if len(stored) != 2 || stored[1] != "T1" {
		t.Fatalf("expected T1 appended to colB on the backend, got %v", stored)
	}
}

func TestRejectedBoardMoveRollsBack(t *testing.T) {
	s := backendtest.Start(t)
	s.SeedBoard(t, boardColumns())
	s.FailMoves(true)

	alice := member("alice", domain.RoleAdmin)
	client, notes := startClient(t, s, alice.ID)
	eng := client.OpenBoard(boardColumns(), alice)
	t.Cleanup(eng.Close)

	if err := dropTask(t, eng, "T1", board.DropTarget{ColumnID: "colB", Position: 1}); err == nil {
		t.Fatalf("expected rejected move")
	}

	if got := columnTaskIDs(t, eng.Columns(), "colA"); len(got) != 2 || got[0] != "T1" {
		t.Fatalf("expected rollback to [T1 T2], got %v", got)
	}
	if stored := columnTaskIDs(t, s.Board(t), "colA"); len(stored) != 2 {
		t.Fatalf("backend board must be untouched, got %v", stored)
	}
	if errs := notes.Errors(); len(errs) != 1 || errs[0] != "Couldn't move the task" {
		t.Fatalf("expected move failure notification, got %v", errs)
	}
}

func TestAttachmentUploadDiscardLifecycle(t *testing.T) {
	s := backendtest.Start(t)
	task := seedTask(t, s)

	alice := member("alice", domain.RoleAdmin)
	client, _ := startClient(t, s, alice.ID)
	view, err := client.OpenTaskView(context.Background(), task.ID, alice)
	if err != nil {
		t.Fatalf("open task view: %v", err)
	}
	t.Cleanup(view.Close)

	content := "quarterly numbers"
	ref, err := view.Attachments.Upload(context.Background(), "report.pdf",
		int64(len(content)), strings.NewReader(content), task.ID)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !s.HasFile(t, ref.Key) {
		t.Fatalf("uploaded file missing on backend")
	}

	if err := view.Attachments.Discard(context.Background()); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if s.HasFile(t, ref.Key) {
		t.Fatalf("discarded file must be deleted on backend")
	}
	if n := s.FileDeleteCalls(); n != 1 {
		t.Fatalf("expected exactly one delete call, got %d", n)
	}
}

func TestAttachmentSentWithMessageIsKept(t *testing.T) {
	s := backendtest.Start(t)
	task := seedTask(t, s)

	alice := member("alice", domain.RoleAdmin)
	client, _ := startClient(t, s, alice.ID)
	view, err := client.OpenTaskView(context.Background(), task.ID, alice)
	if err != nil {
		t.Fatalf("open task view: %v", err)
	}
	t.Cleanup(view.Close)

	ref, err := view.Attachments.Upload(context.Background(), "diagram.png",
		4, strings.NewReader("abcd"), task.ID)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	taken, ok := view.Attachments.Take()
	if !ok {
		t.Fatalf("expected a draft to take")
	}
	if err := view.Messages.Send("see attached", taken.FileURL); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, "echo with attachment", func() bool { return len(view.Messages.Messages()) == 1 })

	msg := view.Messages.Messages()[0]
	if msg.FileURL != ref.FileURL {
		t.Fatalf("expected attachment url %q, got %q", ref.FileURL, msg.FileURL)
	}
	if domain.PreviewKindOf(msg.FileURL) != domain.PreviewImage {
		t.Fatalf("expected image preview for %q", msg.FileURL)
	}

	// Ownership moved to the message; nothing to discard, nothing deleted.
	if err := view.Attachments.Discard(context.Background()); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if !s.HasFile(t, ref.Key) || s.FileDeleteCalls() != 0 {
		t.Fatalf("sent attachment must stay stored")
	}
}

func TestDirectConversationRoundTrip(t *testing.T) {
	s := backendtest.Start(t)

	alice := member("alice", domain.RoleAdmin)
	bob := member("bob", domain.RoleContributor)
	roomID := domain.DirectRoomID(alice.ID, bob.ID)

	aliceClient, _ := startClient(t, s, alice.ID)
	aliceView, err := aliceClient.OpenConversationView(context.Background(), roomID, alice)
	if err != nil {
		t.Fatalf("open conversation: %v", err)
	}
	t.Cleanup(aliceView.Close)

	if aliceView.Room.ReceiverID() != bob.ID {
		t.Fatalf("expected receiver %s, got %s", bob.ID, aliceView.Room.ReceiverID())
	}

	if err := aliceView.Messages.Send("are you around?", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, "alice's echo", func() bool { return len(aliceView.Messages.Messages()) == 1 })

	bobClient, _ := startClient(t, s, bob.ID)
	bobView, err := bobClient.OpenConversationView(context.Background(), roomID, bob)
	if err != nil {
		t.Fatalf("open conversation: %v", err)
	}
	t.Cleanup(bobView.Close)

	waitFor(t, "history on bob's mount", func() bool { return len(bobView.Messages.Messages()) == 1 })
	if err := bobView.Messages.Send("yes, on the board now", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, "live delivery to alice", func() bool { return len(aliceView.Messages.Messages()) == 2 })

	got := contentOf(aliceView.Messages.Messages())
	if got[0] != "are you around?" || got[1] != "yes, on the board now" {
		t.Fatalf("unexpected conversation %v", got)
	}
	if bobView.Messages.Messages()[0].MemberID != alice.ID {
		t.Fatalf("expected alice as sender of the first message")
	}
}

func TestUnauthorizedTokenRejected(t *testing.T) {
	s := backendtest.Start(t)
	seedTask(t, s)

	cfg := Config{BackendURL: s.URL, ChannelURL: s.WSURL, Bearer: "not-a-token"}
	client := New(cfg, &notify.Recorder{})

	_, err := client.OpenTaskView(context.Background(), "task-1", member("alice", domain.RoleAdmin))
	var apiErr *rest.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 401 {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

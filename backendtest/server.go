// Package backendtest runs an in-process stand-in for the TaskNest backend:
// the REST endpoints and the room-scoped websocket relay the sync engine
// talks to, backed by an embedded redis. Integration tests drive the full
// optimistic-mutation / REST / channel-echo loop against it.
package backendtest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Susekh/TaskNest-client/attachment"
	"github.com/Susekh/TaskNest-client/channel"
	"github.com/Susekh/TaskNest-client/domain"
)

const (
	testSecret = "backendtest-secret"
	bucketHost = "https://tasknest-uploads.s3.amazonaws.com/"
)

// Server is the simulated backend. URL serves REST, WSURL the channel.
type Server struct {
	URL   string
	WSURL string

	store *store
	hub   *hub

	failMoves   atomic.Bool
	fileDeletes atomic.Int64
}

// Start launches the simulated backend and registers teardown with t.
func Start(t *testing.T) *Server {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	st := &store{rdb: rdb}
	s := &Server{store: st, hub: newHub(st)}

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	s.register(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	s.URL = srv.URL
	s.WSURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return s
}

// MintToken signs a bearer token the server accepts, the same HS256 shape
// the production test mode uses.
func (s *Server) MintToken(memberID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": memberID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) authenticate(header string) bool {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return false
	}
	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(testSecret), nil
	})
	return err == nil && token.Valid
}

func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.authenticate(c.Request().Header.Get(echo.HeaderAuthorization)) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		}
		return next(c)
	}
}

func (s *Server) register(e *echo.Echo) {
	e.Use(s.authMiddleware)

	e.POST("/fetch/task", s.fetchTask)
	e.POST("/fetch/messages", s.fetchGroupMessages)
	e.POST("/fetch/conversations", s.fetchDirectMessages)
	e.POST("/create/task/move-task", s.moveTask)
	e.PUT("/update/task/:id", s.updateMessage(groupMsgKeyPrefix))
	e.DELETE("/delete/task/:id", s.deleteMessage(groupMsgKeyPrefix))
	e.PUT("/update/chat/:id", s.updateMessage(dmKeyPrefix))
	e.DELETE("/delete/chat/:id", s.deleteMessage(dmKeyPrefix))
	e.POST("/upload/single", s.uploadFile)
	e.POST("/delete/file/*", s.deleteUploadedFile)
	e.GET("/ws", s.serveWS)
}

func (s *Server) serveWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	s.hub.serve(conn)
	return nil
}

func (s *Server) fetchTask(c echo.Context) error {
	var req struct {
		TaskID string `json:"taskId"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	task, err := s.store.getTask(req.TaskID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "task not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"task": task})
}

// fetchGroupMessages returns history newest-first, matching the production
// endpoint's contract; clients normalize.
func (s *Server) fetchGroupMessages(c echo.Context) error {
	var req struct {
		TaskID string `json:"taskId"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	msgs, err := s.store.listMessages(groupMsgKeyPrefix + req.TaskID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"chatMessages": reversed(msgs)})
}

func (s *Server) fetchDirectMessages(c echo.Context) error {
	var req struct {
		ConversationID string `json:"conversationId"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	msgs, err := s.store.listMessages(dmKeyPrefix + req.ConversationID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"directMessages": reversed(msgs)})
}

func reversed(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, msg := range msgs {
		out[len(msgs)-1-i] = msg
	}
	return out
}

func (s *Server) moveTask(c echo.Context) error {
	var req struct {
		TaskID           string `json:"taskId"`
		PreviousColumnID string `json:"previousColumnId"`
		TargetColumnID   string `json:"targetColumnId"`
		Order            int    `json:"order"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	if s.failMoves.Load() {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "move rejected"})
	}

	cols, err := s.store.getBoard()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
	}
	colIdx, taskIdx, ok := domain.FindTask(cols, req.TaskID)
	if !ok || cols[colIdx].ID != req.PreviousColumnID {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "task not found in source column"})
	}
	next, err := domain.ApplyMove(cols, domain.Move{
		TaskID:       req.TaskID,
		FromColumnID: req.PreviousColumnID,
		FromIndex:    taskIdx,
		ToColumnID:   req.TargetColumnID,
		Position:     req.Order,
	})
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
	}
	if err := s.store.putBoard(next); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Task moved successfully"})
}

func (s *Server) updateMessage(prefix string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
		}
		found, err := s.store.updateMessage(prefix, c.Param("id"), func(m *domain.Message) {
			m.Content = req.Content
			m.UpdatedAt = time.Now().UTC()
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
		}
		if !found {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "message not found"})
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Message updated"})
	}
}

func (s *Server) deleteMessage(prefix string) echo.HandlerFunc {
	return func(c echo.Context) error {
		found, err := s.store.removeMessage(prefix, c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
		}
		if !found {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "message not found"})
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Message deleted"})
	}
}

func (s *Server) uploadFile(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "file is required"})
	}
	if fileHeader.Size > attachment.MaxFileSize {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"message": "file too large"})
	}
	conversationID := c.FormValue("conversationId")

	f, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
	}

	key := conversationID + "/" + uuid.NewString() + "-" + fileHeader.Filename
	if err := s.store.putFile(key, content); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": echo.Map{"fileUrl": bucketHost + key, "key": key},
	})
}

func (s *Server) deleteUploadedFile(c echo.Context) error {
	key := c.Param("*")
	s.fileDeletes.Add(1)
	if err := s.store.deleteFile(key); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "File deleted"})
}

// SeedTask stores a task for /fetch/task.
func (s *Server) SeedTask(t *testing.T, task domain.Task) {
	t.Helper()
	if err := s.store.putTask(task); err != nil {
		t.Fatalf("seed task: %v", err)
	}
}

// SeedBoard stores the board columns the move endpoint mutates.
func (s *Server) SeedBoard(t *testing.T, cols []domain.Column) {
	t.Helper()
	if err := s.store.putBoard(cols); err != nil {
		t.Fatalf("seed board: %v", err)
	}
}

// SeedGroupMessages appends history to a task room, oldest-first.
func (s *Server) SeedGroupMessages(t *testing.T, taskID string, msgs ...domain.Message) {
	t.Helper()
	for _, msg := range msgs {
		if err := s.store.appendMessage(groupMsgKeyPrefix+taskID, msg); err != nil {
			t.Fatalf("seed group message: %v", err)
		}
	}
}

// SeedDirectMessages appends history to a conversation, oldest-first.
func (s *Server) SeedDirectMessages(t *testing.T, roomID string, msgs ...domain.Message) {
	t.Helper()
	for _, msg := range msgs {
		if err := s.store.appendMessage(dmKeyPrefix+roomID, msg); err != nil {
			t.Fatalf("seed direct message: %v", err)
		}
	}
}

// Board returns the server-side board state.
func (s *Server) Board(t *testing.T) []domain.Column {
	t.Helper()
	cols, err := s.store.getBoard()
	if err != nil {
		t.Fatalf("read board: %v", err)
	}
	return cols
}

// GroupMessages returns a task room's stored history, oldest-first.
func (s *Server) GroupMessages(t *testing.T, taskID string) []domain.Message {
	t.Helper()
	msgs, err := s.store.listMessages(groupMsgKeyPrefix + taskID)
	if err != nil {
		t.Fatalf("read group messages: %v", err)
	}
	return msgs
}

// HasFile reports whether an uploaded object is still stored.
func (s *Server) HasFile(t *testing.T, key string) bool {
	t.Helper()
	ok, err := s.store.hasFile(key)
	if err != nil {
		t.Fatalf("check file: %v", err)
	}
	return ok
}

// FileDeleteCalls counts /delete/file requests received.
func (s *Server) FileDeleteCalls() int64 { return s.fileDeletes.Load() }

// FailMoves makes the move endpoint reject every request while enabled.
func (s *Server) FailMoves(fail bool) { s.failMoves.Store(fail) }

// BroadcastGroup injects a group message event into a room without storing
// it, simulating a redundant delivery racing the history fetch.
func (s *Server) BroadcastGroup(taskID string, msg domain.Message) {
	s.hub.Broadcast(taskID, channel.EventReceiveGroupMessage, map[string]domain.Message{"message": msg})
}

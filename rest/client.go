// Package rest is the typed client for the TaskNest REST endpoints the sync
// engine consumes. Calls are request/response only; realtime delivery rides
// the channel package instead.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/Susekh/TaskNest-client/domain"
)

// Client wraps http.Client with helpers for the backend's JSON endpoints.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client

	log *log.Entry
}

// New creates a Client for the given backend base URL. bearer may be empty
// when the backend does not require authentication.
func New(baseURL, bearer string) *Client {
	return &Client{
		BaseURL: baseURL,
		Bearer:  bearer,
		HTTP:    &http.Client{},
		log:     log.WithField("component", "rest"),
	}
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if out != nil {
		if err := sonic.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := sonic.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(body)
}

type moveTaskRequest struct {
	TaskID           string `json:"taskId"`
	PreviousColumnID string `json:"previousColumnId"`
	TargetColumnID   string `json:"targetColumnId"`
	Order            int    `json:"order"`
}

// MoveTask confirms a drag-and-drop relocation with the backend. Order is
// the raw drop position, not the removal-adjusted index; the backend applies
// the same shift the optimistic update did.
func (c *Client) MoveTask(ctx context.Context, taskID, previousColumnID, targetColumnID string, order int) error {
	req := moveTaskRequest{
		TaskID:           taskID,
		PreviousColumnID: previousColumnID,
		TargetColumnID:   targetColumnID,
		Order:            order,
	}
	return c.do(ctx, http.MethodPost, "/create/task/move-task", req, nil)
}

// FetchTask loads a task with its members for the task view bootstrap.
func (c *Client) FetchTask(ctx context.Context, taskID string) (domain.Task, error) {
	var resp struct {
		Task domain.Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPost, "/fetch/task", map[string]string{"taskId": taskID}, &resp)
	return resp.Task, err
}

// FetchGroupMessages loads the message history of a task's group room.
// The backend returns messages newest-first; callers own normalization.
func (c *Client) FetchGroupMessages(ctx context.Context, taskID string) ([]domain.Message, error) {
	var resp struct {
		ChatMessages []domain.Message `json:"chatMessages"`
	}
	err := c.do(ctx, http.MethodPost, "/fetch/messages", map[string]string{"taskId": taskID}, &resp)
	return resp.ChatMessages, err
}

// FetchDirectMessages loads the history of a two-party conversation.
// The backend returns messages newest-first; callers own normalization.
func (c *Client) FetchDirectMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var resp struct {
		DirectMessages []domain.Message `json:"directMessages"`
	}
	err := c.do(ctx, http.MethodPost, "/fetch/conversations", map[string]string{"conversationId": conversationID}, &resp)
	return resp.DirectMessages, err
}

type updateMessageRequest struct {
	Content string `json:"content"`
}

// UpdateGroupMessage edits a group chat message in place.
func (c *Client) UpdateGroupMessage(ctx context.Context, messageID, content string) error {
	return c.do(ctx, http.MethodPut, "/update/task/"+messageID, updateMessageRequest{Content: content}, nil)
}

// DeleteGroupMessage soft-deletes a group chat message.
func (c *Client) DeleteGroupMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/delete/task/"+messageID, nil, nil)
}

// UpdateDirectMessage edits a direct message in place.
func (c *Client) UpdateDirectMessage(ctx context.Context, messageID, content string) error {
	return c.do(ctx, http.MethodPut, "/update/chat/"+messageID, updateMessageRequest{Content: content}, nil)
}

// DeleteDirectMessage soft-deletes a direct message.
func (c *Client) DeleteDirectMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/delete/chat/"+messageID, nil, nil)
}

package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/bytedance/sonic"
)

// UploadFile sends a file ahead of message submission as multipart form data
// and returns the stored object's public URL and store key.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader, conversationID string) (fileURL, key string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", "", err
	}
	if err := w.WriteField("conversationId", conversationID); err != nil {
		return "", "", err
	}
	if err := w.Close(); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload/single", &buf)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	var payload struct {
		Data struct {
			FileURL string `json:"fileUrl"`
			Key     string `json:"key"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(data, &payload); err != nil {
		return "", "", fmt.Errorf("decode upload response: %w", err)
	}
	return payload.Data.FileURL, payload.Data.Key, nil
}

// DeleteFile removes an uploaded object by store key. Used to clean up
// attachments that were uploaded but never sent.
func (c *Client) DeleteFile(ctx context.Context, key, url string) error {
	return c.do(ctx, http.MethodPost, "/delete/file/"+key, map[string]string{"url": url}, nil)
}

// Package attachment manages the lifecycle of a file uploaded ahead of
// message submission: upload yields a stable reference owned by the compose
// draft; sending hands ownership to the message; abandoning the draft must
// discard the upload so no orphaned object stays behind.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Susekh/TaskNest-client/notify"
)

// MaxFileSize is the upload ceiling. Larger files are rejected before any
// network call.
const MaxFileSize = 5 * 1024 * 1024

// storeKeyMarker separates the host prefix from the object-store key in an
// attachment URL.
const storeKeyMarker = "amazonaws.com/"

var (
	// ErrFileTooLarge is returned for uploads over MaxFileSize.
	ErrFileTooLarge = errors.New("attachment: file exceeds 5MB limit")
	// ErrUploadInFlight is returned when an upload is already running for
	// this draft.
	ErrUploadInFlight = errors.New("attachment: upload already in progress")
)

// Store performs the network side of the attachment lifecycle.
type Store interface {
	UploadFile(ctx context.Context, filename string, r io.Reader, conversationID string) (fileURL, key string, err error)
	DeleteFile(ctx context.Context, key, url string) error
}

// Reference identifies an uploaded file: its public URL and the derived
// object-store key.
type Reference struct {
	FileURL string
	Key     string
}

// StoreKey derives the object-store key from an attachment URL by stripping
// everything through the host marker. URLs without the marker are returned
// unchanged so best-effort deletion can still be attempted.
func StoreKey(fileURL string) string {
	if _, after, ok := strings.Cut(fileURL, storeKeyMarker); ok {
		return after
	}
	return fileURL
}

// Manager holds at most one draft attachment for a compose box.
type Manager struct {
	store    Store
	notifier notify.Notifier
	log      *log.Entry

	mu        sync.Mutex
	draft     *Reference
	uploading bool
}

// New creates a Manager backed by the given store.
func New(store Store, notifier notify.Notifier) *Manager {
	return &Manager{
		store:    store,
		notifier: notifier,
		log:      log.WithField("component", "attachment"),
	}
}

// Upload sends the file and records the resulting reference as the current
// draft. size must be the file's length in bytes; oversize files are
// rejected without touching the network. A failed upload leaves the draft
// empty and the uploading state reset.
func (m *Manager) Upload(ctx context.Context, filename string, size int64, r io.Reader, roomID string) (Reference, error) {
	if size > MaxFileSize {
		m.notifier.Error("File size exceeds 5MB limit")
		return Reference{}, ErrFileTooLarge
	}

	m.mu.Lock()
	if m.uploading {
		m.mu.Unlock()
		return Reference{}, ErrUploadInFlight
	}
	m.uploading = true
	m.mu.Unlock()

	fileURL, key, err := m.store.UploadFile(ctx, filename, r, roomID)

	m.mu.Lock()
	m.uploading = false
	if err != nil {
		m.draft = nil
		m.mu.Unlock()
		m.log.WithError(err).Error("upload failed")
		m.notifier.Error("File upload failed")
		return Reference{}, fmt.Errorf("upload %s: %w", filename, err)
	}
	if key == "" {
		key = StoreKey(fileURL)
	}
	ref := Reference{FileURL: fileURL, Key: key}
	m.draft = &ref
	m.mu.Unlock()

	m.notifier.Success("File uploaded")
	return ref, nil
}

// Draft returns the current draft reference, if any.
func (m *Manager) Draft() (Reference, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft == nil {
		return Reference{}, false
	}
	return *m.draft, true
}

// Uploading reports whether an upload is in flight.
func (m *Manager) Uploading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploading
}

// Take hands the draft reference to a message send and clears the draft.
func (m *Manager) Take() (Reference, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft == nil {
		return Reference{}, false
	}
	ref := *m.draft
	m.draft = nil
	return ref, true
}

// Discard deletes the draft upload server-side and clears the local draft.
// Deletion is best-effort: a failed delete is reported but the draft is
// cleared regardless, so the compose box never stays stuck on a dead file.
func (m *Manager) Discard(ctx context.Context) error {
	m.mu.Lock()
	if m.draft == nil {
		m.mu.Unlock()
		return nil
	}
	ref := *m.draft
	m.draft = nil
	m.mu.Unlock()

	key := ref.Key
	if key == "" {
		key = StoreKey(ref.FileURL)
	}
	if err := m.store.DeleteFile(ctx, key, ref.FileURL); err != nil {
		m.log.WithError(err).Error("delete file failed")
		m.notifier.Error("Failed to delete file")
		return err
	}
	m.notifier.Success("File removed")
	return nil
}

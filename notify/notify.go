// Package notify carries user-visible notifications out of the sync engine.
// It is the seam the view layer hangs its toasts on; failures reported here
// are non-fatal and never propagate further.
package notify

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Notifier receives transient user-visible notifications.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Log is a Notifier that writes notifications to the structured log. It is
// the default sink when no view layer is attached.
type Log struct {
	entry *log.Entry
}

// NewLog creates a log-backed notifier tagged with the given component.
func NewLog(component string) *Log {
	return &Log{entry: log.WithField("component", component)}
}

func (l *Log) Success(msg string) { l.entry.Info(msg) }
func (l *Log) Error(msg string)   { l.entry.Error(msg) }

// Recorder is a Notifier that captures notifications for assertions in
// tests.
type Recorder struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (r *Recorder) Success(msg string) {
	r.mu.Lock()
	r.successes = append(r.successes, msg)
	r.mu.Unlock()
}

func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	r.errors = append(r.errors, msg)
	r.mu.Unlock()
}

// Successes returns a copy of the captured success notifications.
func (r *Recorder) Successes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.successes...)
}

// Errors returns a copy of the captured error notifications.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

// Package audit provides structured event logging for image lifecycle events.
// Events are stored as JSON Lines (JSONL) files, one per image.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/firefly-engineering/onyx/internal/config"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventCreate     EventType = "create"
	EventDelete     EventType = "delete"
	EventOpen       EventType = "open"
	EventExec       EventType = "exec"
	EventApplyDelta EventType = "apply-delta"
	EventDegraded   EventType = "degraded"
	EventError      EventType = "error"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Image     string    `json:"image"`
	Session   string    `json:"session,omitempty"`
	UID       *int      `json:"uid,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Logger writes and reads audit events for images.
// Events are stored in <store>/audit/<image>.events.jsonl.
type Logger struct {
	paths *config.Paths
}

// NewLogger creates a new audit logger for the store described by paths.
func NewLogger(paths *config.Paths) *Logger {
	return &Logger{paths: paths}
}

// Log appends an event to the image's audit log.
func (l *Logger) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	path, err := l.paths.AuditPath(event.Image)
	if err != nil {
		return fmt.Errorf("invalid audit image name: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogEvent is a convenience method that creates and logs an event.
func (l *Logger) LogEvent(eventType EventType, image, details string) error {
	return l.Log(Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Image:     image,
		Details:   details,
	})
}

// Events reads all events for an image in chronological order.
func (l *Logger) Events(image string) ([]Event, error) {
	path, err := l.paths.AuditPath(image)
	if err != nil {
		return nil, fmt.Errorf("invalid audit image name: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}

	return events, nil
}

// Query selects events from an image log. Zero fields match everything.
type Query struct {
	Types   []EventType
	UID     *int
	Session string
	// Last keeps only the newest n matching events.
	Last int
}

// Matches reports whether e satisfies every set field of q.
func (q Query) Matches(e Event) bool {
	if len(q.Types) > 0 && !slices.Contains(q.Types, e.Type) {
		return false
	}
	if q.UID != nil && (e.UID == nil || *e.UID != *q.UID) {
		return false
	}
	if q.Session != "" && e.Session != q.Session {
		return false
	}
	return true
}

// Query reads the image log and returns the matching events, oldest first.
func (l *Logger) Query(image string, q Query) ([]Event, error) {
	events, err := l.Events(image)
	if err != nil {
		return nil, err
	}

	var out []Event
	for _, e := range events {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	if q.Last > 0 && len(out) > q.Last {
		out = out[len(out)-q.Last:]
	}
	return out, nil
}

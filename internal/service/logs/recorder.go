// Package logs records the in-app diagnostic feed shown in the console view.
package logs

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/ai-collective/backend/pkg/observer"
)

// DefaultCapacity bounds the number of retained entries.
const DefaultCapacity = 500

// Entry is one recorded event.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Title     string         `json:"title"`
	Details   map[string]any `json:"details"`
}

// Recorder is an append-only ring buffer of entries with synchronous subscribers.
// Recording never fails and never blocks on a full buffer.
type Recorder struct {
	mu     sync.RWMutex
	buf    []Entry
	start  int
	size   int
	hub    observer.Hub[Entry]
	logger *zap.Logger

	// notifyMu serialises append and publish so subscribers see buffer order.
	notifyMu sync.Mutex
}

// NewRecorder creates a recorder holding at most capacity entries. Non-API entries
// are mirrored to logger when it is non-nil.
func NewRecorder(capacity int, logger *zap.Logger) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		buf:    make([]Entry, capacity),
		logger: logger,
	}
}

// Record appends an entry, evicting the oldest one when the buffer is full.
func (r *Recorder) Record(level Level, title string, details map[string]any) Entry {
	if details == nil {
		details = map[string]any{}
	}
	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Level:     level,
		Title:     title,
		Details:   details,
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	capacity := len(r.buf)
	if r.size == capacity {
		r.buf[r.start] = entry
		r.start = (r.start + 1) % capacity
	} else {
		r.buf[(r.start+r.size)%capacity] = entry
		r.size++
	}
	r.mu.Unlock()

	r.mirror(entry)
	r.hub.Publish(entry)
	return entry
}

func (r *Recorder) Debug(title string, details map[string]any) { r.Record(LevelDebug, title, details) }
func (r *Recorder) Info(title string, details map[string]any)  { r.Record(LevelInfo, title, details) }
func (r *Recorder) Warn(title string, details map[string]any)  { r.Record(LevelWarn, title, details) }
func (r *Recorder) Error(title string, details map[string]any) { r.Record(LevelError, title, details) }
func (r *Recorder) API(title string, details map[string]any)   { r.Record(LevelAPI, title, details) }

// List returns the retained entries, oldest first.
func (r *Recorder) List() []Entry {
	return r.Filter()
}

// Filter returns retained entries whose level is one of levels, oldest first.
// No levels means every entry.
func (r *Recorder) Filter(levels ...Level) []Entry {
	want := make(map[Level]struct{}, len(levels))
	for _, level := range levels {
		want[level] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, r.size)
	for i := 0; i < r.size; i++ {
		entry := r.buf[(r.start+i)%len(r.buf)]
		if len(want) > 0 {
			if _, ok := want[entry.Level]; !ok {
				continue
			}
		}
		out = append(out, entry)
	}
	return out
}

// Len reports the number of retained entries.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Subscribe registers fn for every future entry and returns the unsubscribe func.
// Entries arrive in buffer order; fn must not record entries itself.
func (r *Recorder) Subscribe(fn func(Entry)) func() {
	return r.hub.Subscribe(fn)
}

func (r *Recorder) mirror(entry Entry) {
	var write func(string, ...zap.Field)
	switch entry.Level {
	case LevelDebug:
		write = r.logger.Debug
	case LevelInfo:
		write = r.logger.Info
	case LevelWarn:
		write = r.logger.Warn
	case LevelError:
		write = r.logger.Error
	default:
		return
	}

	if len(entry.Details) == 0 {
		write(entry.Title)
		return
	}
	write(entry.Title, zap.Any("details", entry.Details))
}

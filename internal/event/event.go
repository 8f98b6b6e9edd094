package event

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	NameLog                = "log"
	NamePdfDetected        = "pdf-detected"
	NameAnalysisProgress   = "analysis-progress"
	NameCodeReviewComplete = "code-review-complete"
	NameShowNotification   = "show-notification"
)

const (
	LevelInfo    = "info"
	LevelWave    = "wave"
	LevelSuccess = "success"
	LevelError   = "error"
)

type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

type LogEvent struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

type PdfDetectedEvent struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type ProgressEvent struct {
	FileName  string `json:"file_name"`
	Completed bool   `json:"completed"`
	Success   bool   `json:"success"`
}

type NotificationEvent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Path  string `json:"path,omitempty"`
}

type Emitter interface {
	Emit(name string, payload interface{})
}

func EmitLog(e Emitter, message, level string) {
	e.Emit(NameLog, LogEvent{Message: message, Level: level})
}

type discard struct{}

func (discard) Emit(string, interface{}) {}

// Discard drops every event.
var Discard Emitter = discard{}

// Bus fans events out to subscribers. A subscriber that falls behind loses
// events instead of blocking the emitter.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	next   uint64
	buffer int
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: make(map[uint64]chan Event), buffer: buffer}
}

func (b *Bus) Emit(name string, payload interface{}) {
	logger := logutil.GetLogger(context.Background())
	if name == NameLog {
		if le, ok := payload.(LogEvent); ok {
			logger.Info("event log", zap.String("level", le.Level), zap.String("message", le.Message))
		}
	} else {
		logger.Debug("emit event", zap.String("name", name))
	}
	ev := Event{Name: name, Payload: payload, At: time.Now()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn("event subscriber is full, drop event", zap.Uint64("subscriber", id), zap.String("name", name))
		}
	}
}

// Subscribe returns a channel of future events and a cancel func that closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(name string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: name, Payload: payload, At: time.Now()})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Named(name string) []Event {
	out := make([]Event, 0)
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cjeanneret/camtether/internal/debug"
)

// StatusEvent represents a single status message for SSE.
type StatusEvent struct {
	Time    string `json:"t"`
	Level   string `json:"l,omitempty"`
	Msg     string `json:"msg"`
	Session string `json:"session,omitempty"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast sends a message to all subscribed clients.
// Messages are sent as JSON: {"t":"...","l":"status","msg":"..."}
// Slow clients may miss messages (non-blocking, buffered).
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.publish(StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	})
}

// BroadcastMsg is a convenience for level "status".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("status", msg)
}

func (b *StatusBroadcaster) publish(evt StatusEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Clients returns the number of subscribed clients.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// BroadcastWriter returns a zerolog.LevelWriter that forwards every log
// event to SSE clients. Pass it as an extra writer to debug.New.
func BroadcastWriter(b *StatusBroadcaster) zerolog.LevelWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter decodes zerolog JSON events and broadcasts them.
type broadcastWriter struct {
	b *StatusBroadcaster
}

// logEvent holds the zerolog fields we forward.
type logEvent struct {
	Time      string `json:"time"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *broadcastWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	var ev logEvent
	if jerr := json.Unmarshal(p, &ev); jerr != nil {
		// plain text write
		msg := strings.TrimSpace(string(p))
		if msg != "" {
			w.b.Broadcast(levelName(level), msg)
		}
		return len(p), nil
	}

	if level == zerolog.NoLevel && ev.Level != "" {
		if parsed, perr := zerolog.ParseLevel(ev.Level); perr == nil {
			level = parsed
		}
	}
	if ev.Time == "" {
		ev.Time = time.Now().Format(time.RFC3339)
	}
	msg := strings.TrimSpace(ev.Message)
	if msg == "" {
		return len(p), nil
	}
	w.b.publish(StatusEvent{
		Time:    ev.Time,
		Level:   levelName(level),
		Msg:     msg,
		Session: ev.SessionID,
	})
	return len(p), nil
}

func levelName(level zerolog.Level) string {
	if level == zerolog.NoLevel {
		return "status"
	}
	return debug.LevelName(level)
}

var _ zerolog.LevelWriter = (*broadcastWriter)(nil)

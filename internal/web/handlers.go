package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/cjeanneret/camtether/internal/debug"
	"github.com/cjeanneret/camtether/internal/logic/command"
)

// maxCommandBytes bounds the body of POST /command.
const maxCommandBytes = 4 << 10

// Remote commands are limited to commandRate per second with bursts of commandBurst.
const (
	commandRate  = 5
	commandBurst = 10
)

// CommandQueue accepts commands for the session consumer.
type CommandQueue interface {
	Push(cmd command.Command) bool
}

// CommandRequest is the body of POST /command.
type CommandRequest struct {
	Line string `json:"line"`
}

// CommandResponse is returned when a command was queued.
type CommandResponse struct {
	Status   string `json:"status"`
	Command  string `json:"command"`
	Deferred bool   `json:"deferred,omitempty"` // a download is running, the command waits
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Queue       CommandQueue
	Downloading func() bool
	Settings    any // served as-is by GET /config
	log         *debug.Logger
	staticFS    fs.FS
	limiter     *rate.Limiter
}

// NewHandlers creates handlers with the given dependencies.
// If queue is nil, POST /command will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, queue CommandQueue, downloading func() bool, settings any, staticFS fs.FS, log *debug.Logger) *Handlers {
	if log == nil {
		log = debug.Discard()
	}
	return &Handlers{
		Broadcaster: broadcaster,
		Queue:       queue,
		Downloading: downloading,
		Settings:    settings,
		log:         log,
		staticFS:    staticFS,
		limiter:     rate.NewLimiter(commandRate, commandBurst),
	}
}

// HandleConfig returns the session settings as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Settings)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleCommand handles POST /command to queue a command line.
// "exit" is refused: only the console may end the process.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.limiter.Allow() {
		http.Error(w, "too many commands", http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBytes)
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			http.Error(w, "request body too large", http.StatusBadRequest)
			return
		}
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	cmd, ok := command.Parse(req.Line)
	if !ok {
		http.Error(w, "empty command", http.StatusBadRequest)
		return
	}
	if cmd.Verb() == command.Exit {
		http.Error(w, "exit is only accepted from the console", http.StatusForbidden)
		return
	}

	if h.Queue == nil {
		http.Error(w, "session not configured", http.StatusServiceUnavailable)
		return
	}

	resp := CommandResponse{Status: "queued", Command: cmd.String()}
	if h.Downloading != nil && h.Downloading() {
		h.log.Warning("can't execute commands while downloading, %q will run afterwards", cmd.String())
		resp.Deferred = true
	}
	if !h.Queue.Push(cmd) {
		http.Error(w, "empty command", http.StatusBadRequest)
		return
	}
	h.log.Verbose("web command: %s", cmd)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

package command

import (
	"strings"
	"sync"
)

// Verbs understood by the session.
const (
	Record  = "record"
	Stop    = "stop"
	Picture = "picture"
	Cancel  = "cancel"
	State   = "state"
	Exit    = "exit"
)

// Command is a tokenized input line. The first token is the verb.
type Command []string

// Verb returns the first token.
func (c Command) Verb() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

// Arg returns the i-th argument after the verb, or "" if absent.
func (c Command) Arg(i int) string {
	if i+1 >= len(c) {
		return ""
	}
	return c[i+1]
}

func (c Command) String() string {
	return strings.Join(c, " ")
}

// Parse strips double quotes from line and splits it on whitespace.
// It returns false for blank lines.
func Parse(line string) (Command, bool) {
	line = strings.ReplaceAll(line, `"`, "")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false
	}
	return Command(fields), true
}

// Queue is a FIFO of commands shared between producers (stdin reader,
// web handler) and the single session consumer.
type Queue struct {
	mu    sync.Mutex
	items []Command
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends cmd. Empty commands are rejected and Push returns false.
func (q *Queue) Push(cmd Command) bool {
	if len(cmd) == 0 {
		return false
	}
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()
	return true
}

// Pop removes and returns the oldest command.
func (q *Queue) Pop() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	cmd := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return cmd, true
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

package command

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/cjeanneret/camtether/internal/debug"
)

// ErrExit is returned by Reader.Run when the operator typed "exit".
var ErrExit = errors.New("exit requested")

// Reader is the input actor: it reads line-oriented commands and only
// ever appends to the queue. It never touches the device.
type Reader struct {
	in          io.Reader
	queue       *Queue
	log         *debug.Logger
	downloading func() bool
}

// NewReader creates a reader feeding q. downloading, if non-nil, is polled
// to warn the operator that a command will wait for the current transfer.
func NewReader(in io.Reader, q *Queue, log *debug.Logger, downloading func() bool) *Reader {
	return &Reader{in: in, queue: q, log: log, downloading: downloading}
}

// Run blocks reading lines until "exit" (ErrExit), end of input (nil) or a
// read error. ctx is checked between lines; a blocked read cannot be interrupted.
func (r *Reader) Run(ctx context.Context) error {
	sc := bufio.NewScanner(r.in)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd, ok := Parse(sc.Text())
		if !ok {
			continue
		}
		if cmd.Verb() == Exit {
			r.log.Status("exit")
			return ErrExit
		}
		if r.downloading != nil && r.downloading() {
			r.log.Warning("can't execute commands while downloading, %q will run afterwards", cmd.String())
		}
		r.queue.Push(cmd)
	}
	return sc.Err()
}

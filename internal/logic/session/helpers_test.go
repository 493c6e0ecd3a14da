package session

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/camtether/internal/debug"
	"github.com/cjeanneret/camtether/internal/hw/camera"
	"github.com/cjeanneret/camtether/internal/logic/command"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	sim   *camera.Sim
	queue *command.Queue
	s     *Session
	clock *fakeClock
	out   *bytes.Buffer
	dir   string
}

func newHarness(t *testing.T, cfg Config, devices int, opts ...Option) *harness {
	t.Helper()
	return newHarnessWith(t, cfg, camera.NewSim(devices), opts...)
}

func newHarnessWith(t *testing.T, cfg Config, tr camera.Transport, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		queue: command.NewQueue(),
		clock: &fakeClock{t: epoch},
		out:   &bytes.Buffer{},
		dir:   t.TempDir(),
	}
	if sim, ok := tr.(*camera.Sim); ok {
		h.sim = sim
	}
	if cfg.DefaultDir == "" {
		cfg.DefaultDir = h.dir
	} else {
		h.dir = cfg.DefaultDir
	}
	opts = append([]Option{WithClock(h.clock.now)}, opts...)

	s, err := New(tr, h.queue, cfg, debug.New(debug.LevelVerbose, h.out), opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	h.s = s
	return h
}

func (h *harness) submit(t *testing.T, line string) {
	t.Helper()
	cmd, ok := command.Parse(line)
	require.True(t, ok)
	require.True(t, h.s.Submit(cmd))
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, h.s.Tick())
}

// run submits line and ticks once.
func (h *harness) run(t *testing.T, line string) {
	t.Helper()
	h.submit(t, line)
	h.tick(t)
}

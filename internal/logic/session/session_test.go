package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/camtether/internal/debug"
	"github.com/cjeanneret/camtether/internal/hw/camera"
	"github.com/cjeanneret/camtether/internal/logic/command"
)

func TestNew_InitializesTransport(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	assert.True(t, h.sim.Initialized())
	assert.False(t, h.s.IsOpen())
	assert.Equal(t, DefaultKeepaliveInterval, h.s.Config().KeepaliveInterval)
}

func TestNew_InitializeFailure(t *testing.T) {
	sim := camera.NewSim(1)
	sim.FailOn("Initialize", camera.KindInternalError)
	_, err := New(sim, command.NewQueue(), Config{}, debug.Discard())
	require.Error(t, err)
	assert.True(t, errors.Is(err, camera.KindInternalError))
}

func TestTick_OpensSessionLazily(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.tick(t)

	assert.True(t, h.s.IsOpen())
	assert.NotEmpty(t, h.s.ID())
	assert.True(t, h.sim.Body(0).IsOpen())
	assert.Contains(t, h.out.String(), "opened session with SIM00000001")
	assert.Equal(t, camera.SaveToCamera, h.sim.Body(0).SaveTo())
}

func TestOpen_AlreadyOpenWarns(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.tick(t)
	require.NoError(t, h.s.Open())
	assert.Contains(t, h.out.String(), "session already open")
	assert.Equal(t, 1, h.sim.CallCount("OpenSession", ""))
}

func TestOpen_SaveToHostDeclaresCapacity(t *testing.T) {
	h := newHarness(t, Config{SaveToHost: true}, 1)
	h.tick(t)

	assert.Equal(t, camera.SaveToHost, h.sim.Body(0).SaveTo())
	assert.Equal(t, hostCapacity, h.sim.Body(0).Capacity())
	assert.True(t, h.sim.Body(0).Capacity().Reset)
}

// Scenario B: index out of range fails before any device command.
func TestOpen_DeviceIndexOutOfRange(t *testing.T) {
	h := newHarness(t, Config{DeviceIndex: 5}, 2)

	err := h.s.Tick()
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrInvalidDeviceIndex))

	assert.Zero(t, h.sim.CallCount("Device", ""))
	assert.Zero(t, h.sim.CallCount("OpenSession", ""))
	assert.Zero(t, h.sim.CallCount("SendCommand", ""))
	assert.Zero(t, h.sim.CallCount("SetPropertyUint32", ""))
}

func TestOpen_NegativeIndex(t *testing.T) {
	h := newHarness(t, Config{DeviceIndex: -1}, 2)
	err := h.s.Tick()
	assert.True(t, errors.Is(err, ErrInvalidDeviceIndex))
}

func TestOpen_NoDevices(t *testing.T) {
	h := newHarness(t, Config{}, 0)
	err := h.s.Tick()
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrNoDevices))
}

func TestOpen_SessionFailureReleasesDevice(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.sim.FailOn("OpenSession", camera.KindDeviceBusy)

	err := h.s.Tick()
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, camera.KindDeviceBusy))
	assert.Zero(t, h.sim.OutstandingDevices())
	assert.False(t, h.s.IsOpen())
}

func TestRecord_StartsRecording(t *testing.T) {
	var transitions []bool
	h := newHarness(t, Config{}, 1, WithRecordingHook(func(on bool) { transitions = append(transitions, on) }))

	h.run(t, "record")
	assert.True(t, h.sim.Body(0).Recording())
	assert.Equal(t, 1, h.sim.CallCount("SetPropertyUint32", "Record=4"))
	assert.Equal(t, []bool{true}, transitions)
}

// Scenario C: only one command runs per tick; the second record warns.
func TestRecord_TwiceWarnsAlreadyRecording(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.submit(t, "record")
	h.submit(t, "record")

	h.tick(t)
	assert.NotContains(t, h.out.String(), "already recording")
	assert.Equal(t, 1, h.queue.Len())

	h.tick(t)
	assert.Contains(t, h.out.String(), "already recording")
	assert.Equal(t, 1, h.sim.CallCount("SetPropertyUint32", "Record=4"))
}

func TestStop_NotRecordingWarns(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.run(t, "stop out.mp4")
	assert.Contains(t, h.out.String(), "not recording")
	assert.Zero(t, h.sim.CallCount("SetPropertyUint32", "Record=0"))
	assert.Empty(t, h.s.outfile)
}

func TestPicture_RejectedWhileRecording(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.run(t, "record")
	h.run(t, "picture shot.jpg")

	assert.Contains(t, h.out.String(), "can't take a picture while recording")
	assert.Zero(t, h.sim.CallCount("SendCommand", "TakePicture"))
	assert.Empty(t, h.s.outfile)
}

func TestPicture_IssuedWhenIdle(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.run(t, "picture shot.jpg")

	assert.Equal(t, 1, h.sim.CallCount("SendCommand", "TakePicture"))
	assert.Equal(t, filepath.Join(h.dir, "shot.jpg"), h.s.outfile)

	h.tick(t)
	data, err := os.ReadFile(filepath.Join(h.dir, "shot.jpg"))
	require.NoError(t, err)
	assert.Len(t, data, camera.DefaultSimImageSize)
	assert.Empty(t, h.s.outfile)
}

func TestCancel_NotRecordingWarns(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.run(t, "cancel")
	assert.Contains(t, h.out.String(), "not recording")
	assert.False(t, h.s.canceled)
}

func TestCancel_DeletesNextFileThenResumesDownloads(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.run(t, "record")
	h.run(t, "cancel")
	assert.True(t, h.s.canceled)
	assert.False(t, h.sim.Body(0).Recording())

	// Next pump delivers the canceled movie.
	h.tick(t)
	assert.False(t, h.s.canceled)
	assert.Equal(t, 1, h.sim.CallCount("DeleteItem", ""))
	assert.Zero(t, h.sim.CallCount("Download", ""))
	assert.Zero(t, h.sim.Body(0).FileCount())
	assert.Zero(t, h.sim.OutstandingItems())

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// An unrelated file afterwards downloads normally.
	h.run(t, "picture after.jpg")
	h.tick(t)
	assert.FileExists(t, filepath.Join(h.dir, "after.jpg"))
	assert.Equal(t, 1, h.sim.CallCount("DeleteItem", ""))
}

func TestState_ReportsByPriority(t *testing.T) {
	h := newHarness(t, Config{}, 1)

	st, err := h.s.State()
	require.NoError(t, err)
	assert.Equal(t, StateClosed, st)

	h.run(t, "state")
	assert.Contains(t, h.out.String(), "state open")

	h.run(t, "record")
	h.run(t, "state")
	assert.Contains(t, h.out.String(), "state recording")

	h.run(t, "stop")
	st, err = h.s.State()
	require.NoError(t, err)
	assert.Equal(t, StateOpen, st)
}

// For any command sequence, the reported state follows the last accepted
// start/stop, whatever was rejected in between.
func TestState_ConsistentWithAcceptedCommands(t *testing.T) {
	seqs := [][]string{
		{"record", "record", "stop"},
		{"stop", "record", "picture", "cancel", "record"},
		{"cancel", "cancel", "record", "stop", "stop"},
		{"record", "bogus", "state", "picture x.jpg"},
	}
	for _, seq := range seqs {
		h := newHarness(t, Config{}, 1)
		want := false
		for _, line := range seq {
			switch line {
			case "record":
				want = true
			case "stop", "cancel":
				want = false
			}
			h.run(t, line)
			h.tick(t) // drain any resulting file

			st, err := h.s.State()
			require.NoError(t, err)
			assert.Equal(t, want, st == StateRecording, "after %q in %v", line, seq)
		}
	}
}

func TestUnknownCommandWarnsWithVerb(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.run(t, "dance now")
	assert.Contains(t, h.out.String(), "unknown command: dance")
	assert.Zero(t, h.sim.CallCount("SetPropertyUint32", "Record=4"))
}

func TestTransportErrorIsRecoverable(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.tick(t)

	h.sim.FailOn("SetPropertyUint32", camera.KindDeviceBusy)
	h.submit(t, "record")
	err := h.s.Tick()
	require.Error(t, err)
	assert.False(t, IsFatal(err))
	assert.Contains(t, err.Error(), "device busy")

	h.sim.ClearFaults()
	h.run(t, "record")
	assert.True(t, h.sim.Body(0).Recording())
}

func TestKeepalive_SentOncePerInterval(t *testing.T) {
	h := newHarness(t, Config{KeepaliveInterval: time.Minute}, 1)
	keepalives := func() int { return h.sim.CallCount("SendCommand", "ExtendShutDownTimer") }

	h.tick(t)
	assert.Zero(t, keepalives())

	h.clock.advance(59 * time.Second)
	h.tick(t)
	assert.Zero(t, keepalives())

	h.clock.advance(time.Second)
	h.tick(t)
	assert.Equal(t, 1, keepalives())

	h.tick(t)
	assert.Equal(t, 1, keepalives())

	h.clock.advance(time.Minute)
	h.tick(t)
	assert.Equal(t, 2, keepalives())
}

func TestMaxDuration_StopsRecording(t *testing.T) {
	h := newHarness(t, Config{MaxDuration: 5 * time.Second}, 1)
	h.run(t, "record")

	h.clock.advance(4 * time.Second)
	h.tick(t)
	assert.True(t, h.sim.Body(0).Recording())

	h.clock.advance(time.Second)
	h.tick(t)
	assert.False(t, h.sim.Body(0).Recording())
	assert.Contains(t, h.out.String(), "max duration 5s reached")

	h.tick(t)
	assert.FileExists(t, filepath.Join(h.dir, "canon_0_1704067205.mp4"))
}

func TestMaxDuration_DisabledByDefault(t *testing.T) {
	h := newHarness(t, Config{}, 1)
	h.run(t, "record")
	h.clock.advance(24 * time.Hour)
	h.tick(t)
	assert.True(t, h.sim.Body(0).Recording())
}

func TestClose_TerminatesEvenWhenCloseSessionFails(t *testing.T) {
	var transitions []bool
	h := newHarness(t, Config{}, 1, WithRecordingHook(func(on bool) { transitions = append(transitions, on) }))
	h.run(t, "record")

	h.sim.FailOn("CloseSession", camera.KindCommDisconnected)
	h.s.Close()

	assert.False(t, h.sim.Initialized())
	assert.False(t, h.s.IsOpen())
	assert.Zero(t, h.sim.OutstandingDevices())
	assert.Contains(t, h.out.String(), "close session")
	assert.Equal(t, []bool{true, false}, transitions)

	// Idempotent.
	h.s.Close()
	assert.Equal(t, 1, h.sim.CallCount("Terminate", ""))
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cjeanneret/camtether/internal/hw/camera"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, Config{}, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, h.s.Run(ctx, time.Millisecond))
	assert.True(t, h.s.IsOpen())
}

func TestRun_ReturnsFatalError(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, Config{}, 0)
	err := h.s.Run(context.Background(), time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDevices))
}

func TestRun_LogsRecoverableErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, Config{}, 1)
	h.sim.FailOn("PumpEvents", camera.KindCommUSBBusError)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.NoError(t, h.s.Run(ctx, time.Millisecond))
	assert.Contains(t, h.out.String(), "pump events: PumpEvents: USB bus error")
}

func TestRun_ExecutesQueuedCommands(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, Config{}, 1)
	h.submit(t, "record")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, h.s.Run(ctx, time.Millisecond))
	assert.True(t, h.sim.Body(0).Recording())
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(errors.New("start recording: device busy")))
	assert.True(t, IsFatal(&OpenError{Err: ErrNoDevices}))
	assert.True(t, IsFatal(ErrDeviceShutdown))
	assert.Equal(t, "open session: no cameras connected", (&OpenError{Err: ErrNoDevices}).Error())
}

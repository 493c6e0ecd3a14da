package session

import (
	"errors"
)

var (
	// ErrNoDevices is returned by Open when no body is connected.
	ErrNoDevices = errors.New("no cameras connected")
	// ErrInvalidDeviceIndex is returned by Open when the configured index is out of range.
	ErrInvalidDeviceIndex = errors.New("invalid camera index")
	// ErrDeviceShutdown is returned by Tick once the body reported that it shut down.
	ErrDeviceShutdown = errors.New("camera shut down")
)

// OpenError wraps a failure to open the device session. Without a device
// there is nothing to operate on, so the process loop stops on it.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string {
	return "open session: " + e.Err.Error()
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether an error returned by Tick must stop the process
// loop. Transport errors on the command path are recoverable: the next
// tick runs normally.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var oe *OpenError
	return errors.As(err, &oe) || errors.Is(err, ErrDeviceShutdown)
}

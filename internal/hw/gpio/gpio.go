package gpio

import (
	"github.com/cjeanneret/camtether/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// MockDriver logs actions and remembers the last level written per pin.
type MockDriver struct {
	log    *debug.Logger
	levels map[int]Level
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool, log *debug.Logger) (Driver, error) {
	if mock {
		log.Status("using mock GPIO driver")
		return NewMockDriver(log), nil
	}
	return NewRPiRealDriver(log)
}

// NewMockDriver creates a MockDriver.
func NewMockDriver(log *debug.Logger) *MockDriver {
	return &MockDriver{log: log, levels: make(map[int]Level)}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	m.log.Verbose("gpio SetupPin pin=%d mode=%d", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	m.log.Verbose("gpio WritePin pin=%d value=%v", pin, level)
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.log.Verbose("gpio ReadPin pin=%d", pin)
	return m.levels[pin], nil
}

func (m *MockDriver) Close() error {
	m.log.Verbose("gpio close (mock)")
	return nil
}

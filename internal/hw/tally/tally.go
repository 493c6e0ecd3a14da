package tally

import (
	"github.com/cjeanneret/camtether/internal/hw/gpio"
)

// Lamp is a recording indicator wired to one GPIO output (active HIGH).
// A zero pin disables it; every method is then a no-op.
type Lamp struct {
	gpio gpio.Driver
	pin  int
	on   bool
}

// NewLamp configures pin as an output and switches the lamp off.
func NewLamp(g gpio.Driver, pin int) (*Lamp, error) {
	l := &Lamp{gpio: g, pin: pin}
	if pin <= 0 {
		return l, nil
	}
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, err
	}
	if err := g.WritePin(pin, gpio.Low); err != nil {
		return nil, err
	}
	return l, nil
}

// Set switches the lamp. Writes are skipped when the state is unchanged.
func (l *Lamp) Set(on bool) error {
	if l.pin <= 0 || l.on == on {
		return nil
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := l.gpio.WritePin(l.pin, level); err != nil {
		return err
	}
	l.on = on
	return nil
}

// On reports the last state written.
func (l *Lamp) On() bool {
	return l.on
}

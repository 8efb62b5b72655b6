// Package reset pulses the board's RESET line from a host GPIO, for
// boards whose serial adapter does not reset them on open.
package reset

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var ErrNoPin = errors.New("reset: no such GPIO")

// Settle is how long the bootloader gets after RESET is released.
const Settle = 500 * time.Millisecond

// Pulse drives p low for width and releases it high. RESET is active low.
func Pulse(p gpio.PinOut, width time.Duration) error {
	if err := p.Out(gpio.Low); err != nil {
		return fmt.Errorf("reset %s: %w", p, err)
	}
	time.Sleep(width)
	if err := p.Out(gpio.High); err != nil {
		return fmt.Errorf("release %s: %w", p, err)
	}
	return nil
}

// Lookup finds a registered GPIO by name.
func Lookup(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPin, name)
	}
	return p, nil
}

// Board initializes the host drivers, pulses the named GPIO and waits
// Settle.
func Board(name string, width time.Duration) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}
	p, err := Lookup(name)
	if err != nil {
		return err
	}
	if err := Pulse(p, width); err != nil {
		return err
	}
	time.Sleep(Settle)
	return nil
}

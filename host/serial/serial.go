// Package serial opens the host end of the link to the board.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Port is a serial connection. Besides the tarm/serial device there is a
// wrapper for in-process connections such as the simulator loopback.
type Port interface {
	io.ReadWriteCloser

	// Flush discards data received but not yet read.
	Flush() error
}

// Config holds serial port settings. Framing is always 8N1, which is what
// the firmware programs into the USART.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	Baud int

	// Zero blocks.
	ReadTimeout time.Duration
}

// DefaultBaud divides 16 MHz exactly in double-speed mode.
const DefaultBaud = 250000

var (
	ErrNoDevice = errors.New("serial: no device")
	ErrBadBaud  = errors.New("serial: baud rate must be positive")
)

// DefaultConfig returns the settings the firmware boots with.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}

func (c *Config) Validate() error {
	if c.Device == "" {
		return ErrNoDevice
	}
	if c.Baud <= 0 {
		return fmt.Errorf("%w: %d", ErrBadBaud, c.Baud)
	}
	return nil
}

type nopFlush struct {
	io.ReadWriteCloser
}

func (nopFlush) Flush() error { return nil }

// Wrap adapts rwc to Port. Flush does nothing.
func Wrap(rwc io.ReadWriteCloser) Port {
	if p, ok := rwc.(Port); ok {
		return p
	}
	return nopFlush{rwc}
}

// Package usart drives USART0 in asynchronous 8N1 mode with polled I/O.
package usart

import (
	"avrperiph/hal"
	"avrperiph/logger"

	"periph.io/x/conn/v3/physic"
)

const (
	// DefaultBaud replaces rates outside the supported window.
	DefaultBaud = 9600 * physic.Hertz

	minBaud = 2400 * physic.Hertz
	maxBaud = 2 * physic.MegaHertz

	cr = '\r'
)

// USART is USART0 on a bus.
type USART struct {
	bus hal.Bus
	log logger.Logger
}

// New returns the port on bus. It does not touch the hardware.
func New(bus hal.Bus) *USART {
	return &USART{bus: bus, log: logger.Get()}
}

// Divisor computes UBRR0 for baud: cpu/(16*baud)-1, or cpu/(8*baud)-1 in
// double speed mode. Rates at or below 2400 baud and at or above 2 Mbaud
// are replaced by DefaultBaud, which is also returned.
func Divisor(cpu, baud physic.Frequency, double bool) (uint16, physic.Frequency) {
	if baud <= minBaud || baud >= maxBaud {
		baud = DefaultBaud
	}
	samples := uint32(16)
	if double {
		samples = 8
	}
	ubrr := hal.Hz(cpu)/(samples*hal.Hz(baud)) - 1
	return uint16(ubrr), baud
}

// Init programs the baud rate, speed mode, frame format (8 data bits, one
// stop bit, no parity) and enables the transmitter and receiver. It returns
// the baud rate actually used.
func (u *USART) Init(cpu, baud physic.Frequency, double bool) physic.Frequency {
	ubrr, applied := Divisor(cpu, baud, double)
	if applied != baud {
		u.log.Warn("usart: baud " + logger.Itoa(int(hal.Hz(baud))) + " out of range, using 9600")
	}
	hal.R16(u.bus, hal.UBRR0L).Set(ubrr & 0x0FFF)

	a := hal.R8(u.bus, hal.UCSR0A)
	if double {
		a.SetBits(1 << hal.U2X0)
	} else {
		a.ClearBits(1 << hal.U2X0)
	}

	hal.R8(u.bus, hal.UCSR0B).SetBits(1<<hal.TXEN0 | 1<<hal.RXEN0)
	hal.R8(u.bus, hal.UCSR0C).Set(1<<hal.UCSZ01 | 1<<hal.UCSZ00)
	return applied
}

// WriteByte waits for the data register to empty and sends c.
func (u *USART) WriteByte(c byte) error {
	status := hal.R8(u.bus, hal.UCSR0A)
	for !status.HasBits(1 << hal.UDRE0) {
	}
	hal.R8(u.bus, hal.UDR0).Set(c)
	return nil
}

// Write sends p byte by byte.
func (u *USART) Write(p []byte) (int, error) {
	for _, c := range p {
		u.WriteByte(c)
	}
	return len(p), nil
}

// Buffered reports whether a received byte is waiting.
func (u *USART) Buffered() bool {
	return hal.R8(u.bus, hal.UCSR0A).HasBits(1 << hal.RXC0)
}

// ReadByte waits for a byte. It never returns an error; the signature
// matches io.ByteReader.
func (u *USART) ReadByte() (byte, error) {
	for !u.Buffered() {
	}
	return hal.R8(u.bus, hal.UDR0).Get(), nil
}

// TryReadByte returns a received byte if one is waiting.
func (u *USART) TryReadByte() (byte, bool) {
	if !u.Buffered() {
		return 0, false
	}
	return hal.R8(u.bus, hal.UDR0).Get(), true
}

// Read copies whatever has been received into p without waiting.
func (u *USART) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		c, ok := u.TryReadByte()
		if !ok {
			break
		}
		p[n] = c
		n++
	}
	return n, nil
}

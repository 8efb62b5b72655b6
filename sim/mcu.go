// Package sim is a behavioural model of the ATmega328P peripherals the
// drivers touch. It implements hal.Bus, so a driver built on an MCU runs the
// same register sequences it would on the chip, and the test advances the
// clock and looks at flags, pins and captured serial output.
//
// The model is cycle-counted, not cycle-exact. Timers advance by whole
// prescaled ticks in Step, conversions complete immediately and interrupts
// are delivered between steps.
package sim

import (
	"time"

	"avrperiph/hal"

	"periph.io/x/conn/v3/physic"
)

// MCU is one simulated chip. It is not safe for concurrent use.
type MCU struct {
	mem   [hal.DataSpaceSize]uint8
	cpuHz uint32

	cycles uint64

	timers [3]timerState
	temp   uint8 // Timer1 TEMP latch

	// Port inputs: driven marks pins with an external level, level holds it.
	driven [3]uint8
	level  [3]uint8

	analog [9]uint16

	rx []byte
	tx []byte

	vectors   hal.Servicer
	inHandler bool
	serviced  [hal.VectorCount]uint32
}

// New returns a chip in its reset state clocked at cpu.
func New(cpu physic.Frequency) *MCU {
	m := &MCU{cpuHz: hal.Hz(cpu)}
	m.Reset()
	return m
}

// Reset puts every register back to its reset value. Attached vectors,
// external pin levels and analog inputs are kept.
func (m *MCU) Reset() {
	m.mem = [hal.DataSpaceSize]uint8{}
	m.timers = [3]timerState{}
	m.temp = 0
	m.cycles = 0
	m.rx = m.rx[:0]
	m.tx = m.tx[:0]
	m.mem[hal.UCSR0A] = 1 << hal.UDRE0
	m.mem[hal.UCSR0C] = 1<<hal.UCSZ01 | 1<<hal.UCSZ00
}

// Attach sets where interrupt vectors are delivered, usually a
// *hal.Vectors the drivers have bound into.
func (m *MCU) Attach(s hal.Servicer) {
	m.vectors = s
}

// Cycles returns the number of CPU cycles stepped since reset.
func (m *MCU) Cycles() uint64 {
	return m.cycles
}

// Step runs the peripherals for n CPU cycles and then services pending
// interrupts.
func (m *MCU) Step(n uint32) {
	m.cycles += uint64(n)
	for i := range m.timers {
		m.stepTimer(i, n)
	}
	m.stepADC()
	m.Service()
}

// Advance steps the equivalent of d at the chip's clock.
func (m *MCU) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	cycles := uint64(m.cpuHz) * uint64(d) / uint64(time.Second)
	for cycles > 0 {
		n := cycles
		if n > 1<<16 {
			n = 1 << 16
		}
		m.Step(uint32(n))
		cycles -= n
	}
}

// Peek returns the raw register byte with no read side effects.
func (m *MCU) Peek(addr hal.Addr) uint8 {
	if int(addr) >= len(m.mem) {
		return 0
	}
	return m.mem[addr]
}

// Load implements hal.Bus.
func (m *MCU) Load(addr hal.Addr) uint8 {
	if int(addr) >= len(m.mem) {
		return 0
	}
	switch addr {
	case hal.TCNT1L, hal.ICR1L:
		m.temp = m.mem[addr+1]
		return m.mem[addr]
	case hal.TCNT1H, hal.ICR1H:
		return m.temp
	case hal.PINB, hal.PINC, hal.PIND:
		return m.pins(portOf(addr))
	case hal.UCSR0A:
		return m.usartStatus()
	case hal.UDR0:
		return m.receive()
	}
	return m.mem[addr]
}

// Store implements hal.Bus.
func (m *MCU) Store(addr hal.Addr, value uint8) {
	if int(addr) >= len(m.mem) {
		return
	}
	switch addr {
	case hal.TIFR0, hal.TIFR1, hal.TIFR2, hal.EIFR, hal.PCIFR:
		m.mem[addr] &^= value
	case hal.TCNT1H, hal.OCR1AH, hal.OCR1BH, hal.ICR1H:
		m.temp = value
	case hal.TCNT1L, hal.OCR1AL, hal.OCR1BL, hal.ICR1L:
		m.mem[addr] = value
		m.mem[addr+1] = m.temp
	case hal.PINB, hal.PINC, hal.PIND:
		// Writing a one to PINx toggles PORTx.
		p := portOf(addr)
		m.changePort(p, func() { m.mem[portRegs[p].port] ^= value })
	case hal.PORTB, hal.PORTC, hal.PORTD, hal.DDRB, hal.DDRC, hal.DDRD:
		m.changePort(portOf(addr), func() { m.mem[addr] = value })
	case hal.ADCSRA:
		m.storeADCSRA(value)
	case hal.UCSR0A:
		m.mem[addr] = m.mem[addr]&^(1<<hal.U2X0) | value&(1<<hal.U2X0)
	case hal.UDR0:
		m.transmit(value)
	default:
		m.mem[addr] = value
	}
}

package sim

import (
	"avrperiph/hal"

	"periph.io/x/conn/v3/gpio"
)

type pinRef struct {
	port hal.Port
	bit  uint8
}

var portRegs = [3]struct {
	pin, ddr, port hal.Addr
	pcmsk          hal.Addr
	pcie           uint8
}{
	hal.PortB: {hal.PINB, hal.DDRB, hal.PORTB, hal.PCMSK0, hal.PCIE0},
	hal.PortC: {hal.PINC, hal.DDRC, hal.PORTC, hal.PCMSK1, hal.PCIE1},
	hal.PortD: {hal.PIND, hal.DDRD, hal.PORTD, hal.PCMSK2, hal.PCIE2},
}

// External interrupt pins: INT0 is PD2, INT1 is PD3.
var intPins = [2]pinRef{{hal.PortD, 2}, {hal.PortD, 3}}

func portOf(addr hal.Addr) hal.Port {
	switch {
	case addr >= hal.PIND:
		return hal.PortD
	case addr >= hal.PINC:
		return hal.PortC
	}
	return hal.PortB
}

// pins computes what PINx reads: outputs read their latch, externally
// driven inputs read the applied level, floating inputs read high only with
// the pull-up enabled.
func (m *MCU) pins(p hal.Port) uint8 {
	r := portRegs[p]
	ddr, port := m.mem[r.ddr], m.mem[r.port]
	ext := m.level[p]&m.driven[p] | port&^m.driven[p]
	return port&ddr | ext&^ddr
}

// changePort applies fn and raises the pin-change, external and capture
// flags for whatever PINx bits it flipped.
func (m *MCU) changePort(p hal.Port, fn func()) {
	before := m.pins(p)
	fn()
	after := m.pins(p)
	if changed := before ^ after; changed != 0 {
		m.edges(p, changed, after)
	}
}

func (m *MCU) edges(p hal.Port, changed, now uint8) {
	r := portRegs[p]
	if changed&m.mem[r.pcmsk] != 0 {
		m.mem[hal.PCIFR] |= 1 << r.pcie
	}
	for n, ip := range intPins {
		if ip.port != p || changed&(1<<ip.bit) == 0 {
			continue
		}
		high := now&(1<<ip.bit) != 0
		switch m.mem[hal.EICRA] >> (2 * n) & 0x03 {
		case 1:
			m.mem[hal.EIFR] |= 1 << n
		case 2:
			if !high {
				m.mem[hal.EIFR] |= 1 << n
			}
		case 3:
			if high {
				m.mem[hal.EIFR] |= 1 << n
			}
		}
	}
	if p == icp1.port && changed&(1<<icp1.bit) != 0 {
		m.capture(now&(1<<icp1.bit) != 0)
	}
}

// SetInput drives an external level onto a pin. It has no effect on what
// the pin reads while the pin is an output.
func (m *MCU) SetInput(p hal.Port, bit uint8, l gpio.Level) {
	bit &= 7
	m.changePort(p, func() {
		m.driven[p] |= 1 << bit
		if l == gpio.High {
			m.level[p] |= 1 << bit
		} else {
			m.level[p] &^= 1 << bit
		}
	})
}

// Release stops driving a pin, leaving it to its pull-up.
func (m *MCU) Release(p hal.Port, bit uint8) {
	bit &= 7
	m.changePort(p, func() { m.driven[p] &^= 1 << bit })
}

// Output reports the latch of an output pin. It is false for inputs.
func (m *MCU) Output(p hal.Port, bit uint8) gpio.Level {
	r := portRegs[p]
	mask := uint8(1) << (bit & 7)
	return gpio.Level(m.mem[r.ddr]&mask != 0 && m.mem[r.port]&mask != 0)
}

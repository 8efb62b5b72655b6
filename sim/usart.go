package sim

import "avrperiph/hal"

// Receive queues bytes on the RX line.
func (m *MCU) Receive(b ...byte) {
	m.rx = append(m.rx, b...)
}

// Transmitted returns everything written to UDR0 with the transmitter
// enabled and clears the capture.
func (m *MCU) Transmitted() []byte {
	out := append([]byte(nil), m.tx...)
	m.tx = m.tx[:0]
	return out
}

func (m *MCU) transmit(b uint8) {
	if m.mem[hal.UCSR0B]&(1<<hal.TXEN0) == 0 {
		return
	}
	m.tx = append(m.tx, b)
}

func (m *MCU) receive() uint8 {
	if m.mem[hal.UCSR0B]&(1<<hal.RXEN0) == 0 || len(m.rx) == 0 {
		return 0
	}
	b := m.rx[0]
	m.rx = m.rx[1:]
	return b
}

// usartStatus: the transmitter is always ready and done.
func (m *MCU) usartStatus() uint8 {
	s := m.mem[hal.UCSR0A]&(1<<hal.U2X0) | 1<<hal.UDRE0 | 1<<hal.TXC0
	if m.mem[hal.UCSR0B]&(1<<hal.RXEN0) != 0 && len(m.rx) > 0 {
		s |= 1 << hal.RXC0
	}
	return s
}

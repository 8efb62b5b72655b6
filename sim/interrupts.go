package sim

import "avrperiph/hal"

// source is one interrupt condition: a flag bit gated by an enable bit.
type source struct {
	vector     hal.Vector
	flag, mask hal.Addr
	flagBit    uint8
	maskBit    uint8
	// keep is set for sources whose flag is not cleared by the vector
	// (USART RX clears when UDR0 is read).
	keep bool
}

// sources is ordered by vector number, which is priority order.
var sources = []source{
	{vector: hal.VectorINT0, flag: hal.EIFR, flagBit: hal.INT0, mask: hal.EIMSK, maskBit: hal.INT0},
	{vector: hal.VectorINT1, flag: hal.EIFR, flagBit: hal.INT1, mask: hal.EIMSK, maskBit: hal.INT1},
	{vector: hal.VectorPCINT0, flag: hal.PCIFR, flagBit: hal.PCIE0, mask: hal.PCICR, maskBit: hal.PCIE0},
	{vector: hal.VectorPCINT1, flag: hal.PCIFR, flagBit: hal.PCIE1, mask: hal.PCICR, maskBit: hal.PCIE1},
	{vector: hal.VectorPCINT2, flag: hal.PCIFR, flagBit: hal.PCIE2, mask: hal.PCICR, maskBit: hal.PCIE2},
	{vector: hal.VectorTimer2CompA, flag: hal.TIFR2, flagBit: hal.OCFxA, mask: hal.TIMSK2, maskBit: hal.OCIExA},
	{vector: hal.VectorTimer2CompB, flag: hal.TIFR2, flagBit: hal.OCFxB, mask: hal.TIMSK2, maskBit: hal.OCIExB},
	{vector: hal.VectorTimer2Ovf, flag: hal.TIFR2, flagBit: hal.TOVx, mask: hal.TIMSK2, maskBit: hal.TOIEx},
	{vector: hal.VectorTimer1Capt, flag: hal.TIFR1, flagBit: hal.ICF1, mask: hal.TIMSK1, maskBit: hal.ICIE1},
	{vector: hal.VectorTimer1CompA, flag: hal.TIFR1, flagBit: hal.OCFxA, mask: hal.TIMSK1, maskBit: hal.OCIExA},
	{vector: hal.VectorTimer1CompB, flag: hal.TIFR1, flagBit: hal.OCFxB, mask: hal.TIMSK1, maskBit: hal.OCIExB},
	{vector: hal.VectorTimer1Ovf, flag: hal.TIFR1, flagBit: hal.TOVx, mask: hal.TIMSK1, maskBit: hal.TOIEx},
	{vector: hal.VectorTimer0CompA, flag: hal.TIFR0, flagBit: hal.OCFxA, mask: hal.TIMSK0, maskBit: hal.OCIExA},
	{vector: hal.VectorTimer0CompB, flag: hal.TIFR0, flagBit: hal.OCFxB, mask: hal.TIMSK0, maskBit: hal.OCIExB},
	{vector: hal.VectorTimer0Ovf, flag: hal.TIFR0, flagBit: hal.TOVx, mask: hal.TIMSK0, maskBit: hal.TOIEx},
	{vector: hal.VectorUSARTRx, flag: hal.UCSR0A, flagBit: hal.RXC0, mask: hal.UCSR0B, maskBit: hal.RXCIE0, keep: true},
	{vector: hal.VectorADC, flag: hal.ADCSRA, flagBit: hal.ADIF, mask: hal.ADCSRA, maskBit: hal.ADIE},
}

// levelLow reports a low-level INTn request, which has no flag and fires
// for as long as the pin is held low.
func (m *MCU) levelLow(n int) bool {
	if m.mem[hal.EICRA]>>(2*n)&0x03 != 0 {
		return false
	}
	ip := intPins[n]
	return m.pins(ip.port)&(1<<ip.bit) == 0
}

func (m *MCU) pending(s *source) bool {
	if m.mem[s.mask]&(1<<s.maskBit) == 0 {
		return false
	}
	switch s.vector {
	case hal.VectorINT0:
		if m.levelLow(0) {
			return true
		}
	case hal.VectorINT1:
		if m.levelLow(1) {
			return true
		}
	case hal.VectorUSARTRx:
		return m.usartStatus()&(1<<hal.RXC0) != 0
	}
	return m.mem[s.flag]&(1<<s.flagBit) != 0
}

// Service delivers pending interrupts, highest priority first, while SREG.I
// is set. Each delivery clears the flag, clears SREG.I for the duration of
// the vector and sets it again afterwards, as the hardware entry sequence
// and reti do. A request with no vector bound is acknowledged and dropped.
// Service is a no-op when called from inside a vector.
func (m *MCU) Service() {
	if m.inHandler {
		return
	}
	// A level-triggered or unacknowledged source can stay pending forever;
	// bound the work per call.
	for budget := 4 * len(sources); budget > 0; budget-- {
		if m.mem[hal.SREG]&(1<<hal.SREG_I) == 0 {
			return
		}
		s := m.next()
		if s == nil {
			return
		}
		if !s.keep {
			m.mem[s.flag] &^= 1 << s.flagBit
		}
		m.serviced[s.vector]++
		m.mem[hal.SREG] &^= 1 << hal.SREG_I
		m.inHandler = true
		if m.vectors != nil {
			m.vectors.Service(s.vector)
		}
		m.inHandler = false
		m.mem[hal.SREG] |= 1 << hal.SREG_I
	}
}

func (m *MCU) next() *source {
	for i := range sources {
		if m.pending(&sources[i]) {
			return &sources[i]
		}
	}
	return nil
}

// Serviced returns how many times vector v has been entered.
func (m *MCU) Serviced(v hal.Vector) uint32 {
	if int(v) >= len(m.serviced) {
		return 0
	}
	return m.serviced[v]
}

package sim

import "avrperiph/hal"

type timerState struct {
	prescale uint32 // CPU cycles not yet turned into a tick
}

type timerRegs struct {
	bits                     uint8
	tccrA, tccrB, tcnt, ocrA hal.Addr
	icr                      hal.Addr
	tifr                     hal.Addr
	divisors                 [8]uint32
	oc                       pinRef // OCnA
}

var timerUnits = [3]timerRegs{
	{
		bits: 8, tccrA: hal.TCCR0A, tccrB: hal.TCCR0B, tcnt: hal.TCNT0, ocrA: hal.OCR0A,
		tifr:     hal.TIFR0,
		divisors: [8]uint32{0, 1, 8, 64, 256, 1024, 0, 0},
		oc:       pinRef{hal.PortD, 6},
	},
	{
		bits: 16, tccrA: hal.TCCR1A, tccrB: hal.TCCR1B, tcnt: hal.TCNT1L, ocrA: hal.OCR1AL,
		icr:      hal.ICR1L,
		tifr:     hal.TIFR1,
		divisors: [8]uint32{0, 1, 8, 64, 256, 1024, 0, 0},
		oc:       pinRef{hal.PortB, 1},
	},
	{
		bits: 8, tccrA: hal.TCCR2A, tccrB: hal.TCCR2B, tcnt: hal.TCNT2, ocrA: hal.OCR2A,
		tifr:     hal.TIFR2,
		divisors: [8]uint32{0, 1, 8, 32, 64, 128, 256, 1024},
		oc:       pinRef{hal.PortB, 3},
	},
}

// icp1 is the Timer1 input capture pin.
var icp1 = pinRef{hal.PortB, 0}

const (
	modeNormal = iota
	modeCTCA
	modeCTCICR
	modeOther
)

func (m *MCU) timerMode(u *timerRegs) int {
	a := m.mem[u.tccrA] & 0x03
	b := m.mem[u.tccrB]
	wgm := a
	if u.bits == 16 {
		wgm |= b >> hal.WGMx2 & 0x03 << 2
	} else {
		wgm |= b >> hal.WGMx2 & 0x01 << 2
	}
	switch {
	case wgm == 0:
		return modeNormal
	case u.bits == 8 && wgm == 2, u.bits == 16 && wgm == 4:
		return modeCTCA
	case u.bits == 16 && wgm == 12:
		return modeCTCICR
	}
	return modeOther
}

func (m *MCU) wide(u *timerRegs, lo hal.Addr) uint16 {
	if u.bits == 16 {
		return uint16(m.mem[lo+1])<<8 | uint16(m.mem[lo])
	}
	return uint16(m.mem[lo])
}

func (m *MCU) setWide(u *timerRegs, lo hal.Addr, v uint16) {
	m.mem[lo] = uint8(v)
	if u.bits == 16 {
		m.mem[lo+1] = uint8(v >> 8)
	}
}

// stepTimer turns cycles into prescaled ticks the way a hardware prescaler
// does: a running remainder that carries across calls.
func (m *MCU) stepTimer(i int, cycles uint32) {
	u := &timerUnits[i]
	st := &m.timers[i]
	div := u.divisors[m.mem[u.tccrB]&0x07]
	if div == 0 {
		return
	}
	st.prescale += cycles
	ticks := st.prescale / div
	st.prescale %= div
	for ; ticks > 0; ticks-- {
		m.tick(u)
	}
}

func (m *MCU) tick(u *timerRegs) {
	mode := m.timerMode(u)
	max := uint16(1<<u.bits - 1)
	top := max
	switch mode {
	case modeCTCA:
		top = m.wide(u, u.ocrA)
	case modeCTCICR:
		top = m.wide(u, u.icr)
	}

	cnt := m.wide(u, u.tcnt)
	switch {
	case cnt == max:
		cnt = 0
		m.mem[u.tifr] |= 1 << hal.TOVx
	case cnt == top:
		cnt = 0
	default:
		cnt++
	}
	m.setWide(u, u.tcnt, cnt)

	if cnt == m.wide(u, u.ocrA) {
		m.mem[u.tifr] |= 1 << hal.OCFxA
		m.compareOutput(u)
	}
	if mode == modeCTCICR && cnt == top {
		m.mem[u.tifr] |= 1 << hal.ICF1
	}
}

func (m *MCU) compareOutput(u *timerRegs) {
	com := m.mem[u.tccrA] >> hal.COMxA0 & 0x03
	if com == 0 {
		return
	}
	p := u.oc
	reg := portRegs[p.port].port
	m.changePort(p.port, func() {
		switch com {
		case 1:
			m.mem[reg] ^= 1 << p.bit
		case 2:
			m.mem[reg] &^= 1 << p.bit
		case 3:
			m.mem[reg] |= 1 << p.bit
		}
	})
}

// capture latches TCNT1 into ICR1 on the selected ICP1 edge. ICR1 is a
// plain register while it defines TOP.
func (m *MCU) capture(rising bool) {
	u := &timerUnits[1]
	if m.timerMode(u) == modeCTCICR {
		return
	}
	if rising != (m.mem[hal.TCCR1B]&(1<<hal.ICES1) != 0) {
		return
	}
	m.setWide(u, u.icr, m.wide(u, u.tcnt))
	m.mem[hal.TIFR1] |= 1 << hal.ICF1
}

// OCLevel is the level the compare output of timer i (0..2) is driving
// onto its pin latch.
func (m *MCU) OCLevel(i int) bool {
	p := timerUnits[i].oc
	return m.mem[portRegs[p.port].port]&(1<<p.bit) != 0
}

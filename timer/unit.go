package timer

import "avrperiph/hal"

const (
	comA0  = hal.COMxA0
	csMask = 1<<hal.CSx2 | 1<<hal.CSx1 | 1<<hal.CSx0
)

type sourceBits struct {
	mask   uint8 // bit in TIMSKn
	flag   uint8 // bit in TIFRn
	vector hal.Vector
	ok     bool
}

// Unit describes one physical timer/counter: its register addresses,
// counter width, the WGM encoding of each supported mode, its clock-select
// codes and its interrupt sources. The three units are fixed; drivers only
// hold a pointer to one.
type Unit struct {
	name string
	bits uint8

	tccrA, tccrB, tcnt, ocrA, icr hal.Addr
	timsk, tifr                   hal.Addr

	wgmMaskA, wgmMaskB uint8
	waveforms          [waveformCount]wgm

	// clockSelect is indexed by Prescaler.slot.
	clockSelect [6]uint8

	sources [sourceCount]sourceBits
}

// Name is the datasheet name, e.g. "timer1".
func (u *Unit) Name() string { return u.name }

// Bits is the counter width.
func (u *Unit) Bits() uint8 { return u.bits }

// Max is the largest counter value.
func (u *Unit) Max() uint32 {
	return 1<<u.bits - 1
}

// Supports reports whether the unit implements w.
func (u *Unit) Supports(w Waveform) bool {
	return w < waveformCount && u.waveforms[w].ok
}

// HasSource reports whether the unit has interrupt source s.
func (u *Unit) HasSource(s Source) bool {
	return s < sourceCount && u.sources[s].ok
}

// Vector returns the interrupt vector of source s.
func (u *Unit) Vector(s Source) (hal.Vector, bool) {
	if !u.HasSource(s) {
		return 0, false
	}
	return u.sources[s].vector, true
}

func (u *Unit) sourceMask() uint8 {
	var m uint8
	for _, s := range u.sources {
		if s.ok {
			m |= 1 << s.mask
		}
	}
	return m
}

// Timer0 is the 8-bit Timer/Counter0.
var Timer0 = &Unit{
	name:  "timer0",
	bits:  8,
	tccrA: hal.TCCR0A, tccrB: hal.TCCR0B, tcnt: hal.TCNT0, ocrA: hal.OCR0A,
	timsk: hal.TIMSK0, tifr: hal.TIFR0,

	wgmMaskA: 1<<hal.WGMx1 | 1<<hal.WGMx0,
	wgmMaskB: 1 << hal.WGMx2,
	waveforms: [waveformCount]wgm{
		Normal:      {ok: true},
		CTCCompareA: {a: 1 << hal.WGMx1, ok: true},
	},
	clockSelect: [6]uint8{0, 1, 2, 3, 4, 5},
	sources: [sourceCount]sourceBits{
		SourceOverflow: {mask: hal.TOIEx, flag: hal.TOVx, vector: hal.VectorTimer0Ovf, ok: true},
		SourceCompareA: {mask: hal.OCIExA, flag: hal.OCFxA, vector: hal.VectorTimer0CompA, ok: true},
	},
}

// Timer1 is the 16-bit Timer/Counter1, the only unit with input capture.
var Timer1 = &Unit{
	name:  "timer1",
	bits:  16,
	tccrA: hal.TCCR1A, tccrB: hal.TCCR1B, tcnt: hal.TCNT1L, ocrA: hal.OCR1AL,
	icr:   hal.ICR1L,
	timsk: hal.TIMSK1, tifr: hal.TIFR1,

	wgmMaskA: 1<<hal.WGMx1 | 1<<hal.WGMx0,
	wgmMaskB: 1<<hal.WGM13 | 1<<hal.WGMx2,
	waveforms: [waveformCount]wgm{
		Normal:          {ok: true},
		CTCCompareA:     {b: 1 << hal.WGMx2, ok: true},
		CTCInputCapture: {b: 1<<hal.WGM13 | 1<<hal.WGMx2, ok: true},
	},
	clockSelect: [6]uint8{0, 1, 2, 3, 4, 5},
	sources: [sourceCount]sourceBits{
		SourceOverflow: {mask: hal.TOIEx, flag: hal.TOVx, vector: hal.VectorTimer1Ovf, ok: true},
		SourceCompareA: {mask: hal.OCIExA, flag: hal.OCFxA, vector: hal.VectorTimer1CompA, ok: true},
		SourceCapture:  {mask: hal.ICIE1, flag: hal.ICF1, vector: hal.VectorTimer1Capt, ok: true},
	},
}

// Timer2 is the 8-bit asynchronous-capable Timer/Counter2. Its prescaler
// has extra taps (/32, /128), so the clock-select codes for the common
// divisors differ from the other two units.
var Timer2 = &Unit{
	name:  "timer2",
	bits:  8,
	tccrA: hal.TCCR2A, tccrB: hal.TCCR2B, tcnt: hal.TCNT2, ocrA: hal.OCR2A,
	timsk: hal.TIMSK2, tifr: hal.TIFR2,

	wgmMaskA: 1<<hal.WGMx1 | 1<<hal.WGMx0,
	wgmMaskB: 1 << hal.WGMx2,
	waveforms: [waveformCount]wgm{
		Normal:      {ok: true},
		CTCCompareA: {a: 1 << hal.WGMx1, ok: true},
	},
	clockSelect: [6]uint8{0, 1, 2, 4, 6, 7},
	sources: [sourceCount]sourceBits{
		SourceOverflow: {mask: hal.TOIEx, flag: hal.TOVx, vector: hal.VectorTimer2Ovf, ok: true},
		SourceCompareA: {mask: hal.OCIExA, flag: hal.OCFxA, vector: hal.VectorTimer2CompA, ok: true},
	},
}

// Units lists the three timers by index.
var Units = [...]*Unit{Timer0, Timer1, Timer2}

package timer

// Ticks converts a period into the value loaded into the compare register:
//
//	cpuHz / divisor * periodMs / 1000 - 1
//
// evaluated left to right in integer arithmetic, the order the AVR C
// drivers use, widened to 64 bits so intermediate products cannot wrap.
// The count must not exceed max, the counter's top value.
func Ticks(cpuHz, divisor uint32, periodMs uint16, max uint32) (uint32, error) {
	if divisor == 0 {
		return 0, ErrNoClockSource
	}
	q := uint64(cpuHz) / uint64(divisor) * uint64(periodMs) / 1000
	if q == 0 {
		return 0, ErrPeriodTooShort
	}
	ticks := q - 1
	if ticks > uint64(max) {
		return 0, ErrPeriodTooLong
	}
	return uint32(ticks), nil
}

// SetTicks loads the compare register that sets the period in CTC modes:
// OCRnA for CTCCompareA and for the 8-bit units, ICR1 when Timer1 is in
// CTCInputCapture. An invalid prescaler is computed as DefaultPrescaler and
// reported with ErrInvalidPrescaler after the write; range errors write
// nothing.
func (d *Driver[T]) SetTicks(p Prescaler, periodMs uint16) (T, error) {
	p, perr := Normalize(p)
	ticks, err := Ticks(d.cpuHz, p.Divisor(), periodMs, d.unit.Max())
	if err != nil {
		d.log.Error(d.unit.name + ": " + err.Error() + " (" + itoa(int(periodMs)) + " ms at " + p.String() + ")")
		return 0, err
	}
	top := d.unit.ocrA
	if w, _ := d.Waveform(); w == CTCInputCapture {
		top = d.unit.icr
	}
	d.writeWide(top, uint16(ticks))
	return T(ticks), perr
}

// Top reads the register that currently bounds the count (OCRnA, or ICR1
// in CTCInputCapture).
func (d *Driver[T]) Top() T {
	top := d.unit.ocrA
	if w, _ := d.Waveform(); w == CTCInputCapture {
		top = d.unit.icr
	}
	return T(d.readWide(top))
}

package timer

import "avrperiph/hal"

// Read returns TCNTn. For Timer1 the two bytes are read low then high
// through the TEMP latch; an interrupt that touches another Timer1 16-bit
// register between the two loads can tear the value. Use Snapshot when
// that matters.
func (d *Driver[T]) Read() T {
	return T(d.readWide(d.unit.tcnt))
}

// Snapshot reads the counter with the unit's sources masked.
func (d *Driver[T]) Snapshot() T {
	mask := d.reg(d.unit.timsk)
	saved := mask.Get()
	mask.Set(saved &^ d.unit.sourceMask())
	v := d.Read()
	mask.Set(saved)
	return v
}

// Clear sets the counter to zero. Configuration is untouched.
func (d *Driver[T]) Clear() {
	d.writeWide(d.unit.tcnt, 0)
}

// Reset clears the event flag that CheckOverflow polls: TOVn in Normal,
// OCFnA in CTCCompareA, ICF1 in CTCInputCapture. Flags are cleared by
// writing a one, so the register is stored rather than read-modified, which
// would also clear every other pending flag.
func (d *Driver[T]) Reset() {
	d.reg(d.unit.tifr).Set(1 << d.eventFlag())
}

// Stop clears the clock-select bits. The counter freezes at its current
// value and no further events fire; the rest of the configuration stays.
func (d *Driver[T]) Stop() {
	d.reg(d.unit.tccrB).ClearBits(csMask)
}

// Running reports whether a clock source is selected.
func (d *Driver[T]) Running() bool {
	return d.reg(d.unit.tccrB).HasBits(csMask)
}

// CheckOverflow polls the event flag for the current waveform mode without
// blocking. It is the alternative to the interrupt path: once the source is
// armed the flag is cleared by the hardware on dispatch, so a caller should
// use one or the other.
func (d *Driver[T]) CheckOverflow() bool {
	return d.reg(d.unit.tifr).HasBits(1 << d.eventFlag())
}

func (d *Driver[T]) eventFlag() uint8 {
	w, _ := d.Waveform()
	return d.unit.sources[w.source()].flag
}

func (d *Driver[T]) reg(addr hal.Addr) hal.Reg8 {
	return hal.R8(d.bus, addr)
}

func (d *Driver[T]) readWide(lo hal.Addr) uint16 {
	if d.unit.bits == 16 {
		return hal.R16(d.bus, lo).Get()
	}
	return uint16(d.reg(lo).Get())
}

func (d *Driver[T]) writeWide(lo hal.Addr, v uint16) {
	if d.unit.bits == 16 {
		hal.R16(d.bus, lo).Set(v)
		return
	}
	d.reg(lo).Set(uint8(v))
}

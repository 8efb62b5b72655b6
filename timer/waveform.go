package timer

// Waveform is the counter's waveform generation mode.
type Waveform uint8

const (
	// Normal counts 0..MAX, wraps and raises the overflow flag.
	Normal Waveform = iota
	// CTCCompareA clears the counter when it matches OCRnA.
	CTCCompareA
	// CTCInputCapture clears the counter when it matches ICR1, leaving
	// OCR1A free. 16-bit unit only.
	CTCInputCapture

	waveformCount
)

func (w Waveform) String() string {
	switch w {
	case Normal:
		return "normal"
	case CTCCompareA:
		return "ctc-ocra"
	case CTCInputCapture:
		return "ctc-icr"
	}
	return "unknown"
}

// wgm is the WGM bit pattern of one mode, split across TCCRnA and TCCRnB.
type wgm struct {
	a, b uint8
	ok   bool
}

// source is the interrupt that observes the mode's period event.
func (w Waveform) source() Source {
	switch w {
	case CTCCompareA:
		return SourceCompareA
	case CTCInputCapture:
		return SourceCapture
	}
	return SourceOverflow
}

// SetWaveform programs the WGM bits. A mode the unit lacks falls back to
// Normal and returns ErrUnsupportedWaveform.
func (d *Driver[T]) SetWaveform(w Waveform) error {
	var err error
	if !d.unit.Supports(w) {
		d.log.Warn(d.unit.name + ": waveform " + w.String() + " unsupported, using normal")
		w, err = Normal, ErrUnsupportedWaveform
	}
	bits := d.unit.waveforms[w]
	d.reg(d.unit.tccrA).Set(d.reg(d.unit.tccrA).Get()&^d.unit.wgmMaskA | bits.a)
	d.reg(d.unit.tccrB).Set(d.reg(d.unit.tccrB).Get()&^d.unit.wgmMaskB | bits.b)
	return err
}

// Waveform decodes the WGM bits currently in the control registers. ok is
// false when they hold a mode this package does not program (PWM modes set
// by other code).
func (d *Driver[T]) Waveform() (w Waveform, ok bool) {
	a := d.reg(d.unit.tccrA).Get() & d.unit.wgmMaskA
	b := d.reg(d.unit.tccrB).Get() & d.unit.wgmMaskB
	for i, bits := range d.unit.waveforms {
		if bits.ok && bits.a == a && bits.b == b {
			return Waveform(i), true
		}
	}
	return Normal, false
}

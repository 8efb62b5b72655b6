package timer

import "avrperiph/hal"

// Source is one of a unit's interrupt sources.
type Source uint8

const (
	SourceOverflow Source = iota
	SourceCompareA
	SourceCapture

	sourceCount
)

func (s Source) String() string {
	switch s {
	case SourceOverflow:
		return "overflow"
	case SourceCompareA:
		return "compare-a"
	case SourceCapture:
		return "capture"
	}
	return "unknown"
}

// Handler runs from interrupt context when the armed source fires. It takes
// nothing and returns nothing; it should be short and must not block.
type Handler func()

// Handle stores h in the driver's slot. The unit's sources are masked for
// the duration of the store so a match cannot observe a half-written slot,
// then the previous mask is restored. Arming a source before a handler is
// stored is allowed; the dispatch of an empty slot does nothing.
func (d *Driver[T]) Handle(h Handler) {
	mask := d.reg(d.unit.timsk)
	saved := mask.Get()
	mask.Set(saved &^ d.unit.sourceMask())
	d.handler = h
	mask.Set(saved)
}

// SetInterrupt arms exactly the source that observes w's period event
// (overflow for Normal, compare A for CTCCompareA, capture for
// CTCInputCapture), disarms the unit's other timer sources, drops a stale
// flag for the armed source and sets the global interrupt enable. A mode
// the unit lacks is treated as Normal, as in SetWaveform, and returns
// ErrUnsupportedWaveform after arming the overflow source.
func (d *Driver[T]) SetInterrupt(w Waveform) error {
	var err error
	if !d.unit.Supports(w) {
		w, err = Normal, ErrUnsupportedWaveform
	}
	src := d.unit.sources[w.source()]
	d.reg(d.unit.tifr).Set(1 << src.flag)
	mask := d.reg(d.unit.timsk)
	mask.Set(mask.Get()&^d.unit.sourceMask() | 1<<src.mask)
	hal.EnableInterrupts(d.bus)
	return err
}

// DisableInterrupt masks all of the unit's timer sources. The stored
// handler is kept.
func (d *Driver[T]) DisableInterrupt() {
	d.reg(d.unit.timsk).ClearBits(d.unit.sourceMask())
}

// Armed reports which source is currently unmasked, if any.
func (d *Driver[T]) Armed() (Source, bool) {
	m := d.reg(d.unit.timsk).Get()
	for i, src := range d.unit.sources {
		if src.ok && m&(1<<src.mask) != 0 {
			return Source(i), true
		}
	}
	return 0, false
}

// Dispatch is the interrupt entry for src. The handler runs to completion
// before another dispatch of this driver starts; an event that arrives
// while it runs is delivered once it returns, so every event produces
// exactly one call.
func (d *Driver[T]) Dispatch(src Source) {
	if src < sourceCount {
		d.events[src]++
	}
	if d.dispatching {
		d.pending++
		return
	}
	d.dispatching = true
	for {
		if h := d.handler; h != nil {
			h()
		}
		if d.pending == 0 {
			break
		}
		d.pending--
	}
	d.dispatching = false
}

// Events returns how many times src has been dispatched.
func (d *Driver[T]) Events(src Source) uint32 {
	if src >= sourceCount {
		return 0
	}
	return d.events[src]
}

// Attach binds the unit's vectors in t to this driver's Dispatch. This is
// the only place a vector number meets a driver; the device glue or the
// simulator decides when a vector is serviced.
func (d *Driver[T]) Attach(t *hal.Vectors) {
	for i, src := range d.unit.sources {
		if !src.ok {
			continue
		}
		s := Source(i)
		t.Bind(src.vector, func() { d.Dispatch(s) })
	}
}

// Detach removes the unit's vectors from t.
func (d *Driver[T]) Detach(t *hal.Vectors) {
	for _, src := range d.unit.sources {
		if src.ok {
			t.Unbind(src.vector)
		}
	}
}

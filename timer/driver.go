// Package timer drives the three ATmega328P timer/counters through one
// generic driver. Timer0 and Timer2 are Driver[uint8], Timer1 is
// Driver[uint16]; everything that differs between them lives in the Unit
// descriptor.
//
// Init applies a Config in a fixed order: waveform, period, compare
// output, handler and interrupt source, and the prescaler last, because
// selecting a clock source is what starts the counter.
package timer

import (
	"avrperiph/hal"
	"avrperiph/logger"

	"periph.io/x/conn/v3/physic"
)

// Counter is the register width of a unit.
type Counter interface {
	~uint8 | ~uint16
}

// Config is what a caller asks Init for. It is not retained; only the
// register state and the handler survive.
type Config struct {
	Waveform  Waveform
	PeriodMs  uint16 // ignored in Normal mode
	Compare   CompareOutput
	Prescaler Prescaler
	Interrupt bool
	Handler   Handler
}

// Settings is what Init actually applied.
type Settings struct {
	Waveform  Waveform
	Prescaler Prescaler
	Compare   CompareOutput
	Ticks     uint16
	Interrupt bool

	// WaveformDefaulted and PrescalerDefaulted are set when the request
	// was replaced by Normal or DefaultPrescaler.
	WaveformDefaulted  bool
	PrescalerDefaulted bool
}

// Driver owns one timer unit on one bus, including its handler slot.
type Driver[T Counter] struct {
	unit  *Unit
	bus   hal.Bus
	cpuHz uint32
	log   logger.Logger

	handler     Handler
	dispatching bool
	pending     uint32
	events      [sourceCount]uint32
}

// New returns a driver for unit u. T must match the unit's width.
func New[T Counter](bus hal.Bus, u *Unit, cpu physic.Frequency) *Driver[T] {
	var zero T
	if uint32(^zero) != u.Max() {
		panic("timer: counter type does not match " + u.name + " width")
	}
	return &Driver[T]{
		unit:  u,
		bus:   bus,
		cpuHz: hal.Hz(cpu),
		log:   logger.Get(),
	}
}

// NewTimer0 returns the 8-bit Timer0 driver.
func NewTimer0(bus hal.Bus, cpu physic.Frequency) *Driver[uint8] {
	return New[uint8](bus, Timer0, cpu)
}

// NewTimer1 returns the 16-bit Timer1 driver.
func NewTimer1(bus hal.Bus, cpu physic.Frequency) *Driver[uint16] {
	return New[uint16](bus, Timer1, cpu)
}

// NewTimer2 returns the 8-bit Timer2 driver.
func NewTimer2(bus hal.Bus, cpu physic.Frequency) *Driver[uint8] {
	return New[uint8](bus, Timer2, cpu)
}

// Unit returns the descriptor the driver was built for.
func (d *Driver[T]) Unit() *Unit { return d.unit }

// SetLogger overrides the logger captured at construction.
func (d *Driver[T]) SetLogger(l logger.Logger) {
	if l != nil {
		d.log = l
	}
}

// SetPrescaler writes the clock-select code for p, which starts the counter
// unless p is PrescalerNone. Invalid requests select DefaultPrescaler and
// return ErrInvalidPrescaler. Applying the same request twice leaves the
// same bits.
func (d *Driver[T]) SetPrescaler(p Prescaler) error {
	cs, err := ResolvePrescaler(d.unit, p)
	if err != nil {
		d.log.Warn(d.unit.name + ": prescaler " + itoa(int(p)) + " invalid, using " + DefaultPrescaler.String())
	}
	d.reg(d.unit.tccrB).ReplaceBits(cs, csMask, 0)
	return err
}

// Prescaler decodes the clock-select bits back to a request.
func (d *Driver[T]) Prescaler() (Prescaler, bool) {
	cs := d.reg(d.unit.tccrB).Get() & csMask
	for _, p := range [...]Prescaler{PrescalerNone, Prescaler1, Prescaler8, Prescaler64, Prescaler256, Prescaler1024} {
		i, _ := p.slot()
		if d.unit.clockSelect[i] == cs {
			return p, true
		}
	}
	return PrescalerNone, false
}

// Init configures the unit from cfg and starts it. The counter is stopped
// and cleared first and the unit's interrupt sources are disarmed, so a
// previous configuration never runs with half of the new one.
//
// Substituted defaults are reported in Settings, not as errors. The only
// errors are from the period computation (ErrPeriodTooLong,
// ErrPeriodTooShort, ErrNoClockSource); in that case the unit is left
// stopped with no source armed.
func (d *Driver[T]) Init(cfg Config) (Settings, error) {
	var s Settings

	d.Stop()
	d.DisableInterrupt()
	d.Clear()

	if err := d.SetWaveform(cfg.Waveform); err != nil {
		s.WaveformDefaulted = true
	}
	s.Waveform, _ = d.Waveform()

	p, err := Normalize(cfg.Prescaler)
	if err != nil {
		s.PrescalerDefaulted = true
	}
	s.Prescaler = p

	if s.Waveform != Normal {
		ticks, err := d.SetTicks(p, cfg.PeriodMs)
		if err != nil {
			return s, err
		}
		s.Ticks = uint16(ticks)
	}

	if err := d.SetCompare(cfg.Compare); err != nil {
		d.log.Warn(d.unit.name + ": " + err.Error())
	}
	s.Compare = d.Compare()

	if cfg.Interrupt {
		d.Handle(cfg.Handler)
		if err := d.SetInterrupt(s.Waveform); err != nil {
			return s, err
		}
		s.Interrupt = true
	}

	d.SetPrescaler(p)

	d.log.Debug(d.unit.name + ": init " + s.Waveform.String() +
		" ticks=" + itoa(int(s.Ticks)) +
		" " + s.Prescaler.String() +
		" com=" + s.Compare.String())
	return s, nil
}

func itoa(n int) string {
	return logger.Itoa(n)
}

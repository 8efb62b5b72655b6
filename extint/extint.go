// Package extint configures the INT0/INT1 external interrupts and the three
// pin-change interrupt groups, and routes their vectors to Go handlers.
package extint

import (
	"errors"

	"avrperiph/hal"
	"avrperiph/logger"

	"periph.io/x/conn/v3/gpio"
)

// ErrInvalidLine reports a line other than INT0 or INT1.
var ErrInvalidLine = errors.New("extint: invalid external interrupt line")

// Line is an external interrupt line.
type Line uint8

const (
	INT0 Line = iota // PD2
	INT1             // PD3
)

// Sense is the ISCn1:0 trigger condition.
type Sense uint8

const (
	LowLevel  Sense = iota // fires while the pin is low
	AnyChange              // either edge
	Falling
	Rising
)

func (s Sense) String() string {
	switch s {
	case LowLevel:
		return "low"
	case AnyChange:
		return "change"
	case Falling:
		return "falling"
	case Rising:
		return "rising"
	}
	return "invalid"
}

// SenseFromEdge maps periph's edge names onto the sense control. NoEdge
// selects low level.
func SenseFromEdge(e gpio.Edge) Sense {
	switch e {
	case gpio.RisingEdge:
		return Rising
	case gpio.FallingEdge:
		return Falling
	case gpio.BothEdges:
		return AnyChange
	}
	return LowLevel
}

// Controller owns the external and pin-change interrupt registers and one
// handler per line and per port group.
type Controller struct {
	bus hal.Bus
	log logger.Logger

	lines  [2]func()
	groups [3]func()
	events [5]uint32
}

// New returns a controller on bus.
func New(bus hal.Bus) *Controller {
	return &Controller{bus: bus, log: logger.Get()}
}

// EnableINT sets the sense control of line, stores h and unmasks the line.
// A flag raised by the sense change itself is dropped before unmasking.
// Global interrupts are enabled.
func (c *Controller) EnableINT(line Line, sense Sense, h func()) error {
	if line > INT1 {
		return ErrInvalidLine
	}
	mask := hal.R8(c.bus, hal.EIMSK)
	mask.ClearBits(1 << line)
	c.lines[line] = h
	hal.R8(c.bus, hal.EICRA).ReplaceBits(uint8(sense&0x3), 0x3, 2*uint8(line))
	hal.R8(c.bus, hal.EIFR).Set(1 << line)
	mask.SetBits(1 << line)
	hal.EnableInterrupts(c.bus)
	c.log.Debug("extint: INT" + logger.Itoa(int(line)) + " " + (sense & 0x3).String())
	return nil
}

// DisableINT masks line. Its handler is kept.
func (c *Controller) DisableINT(line Line) error {
	if line > INT1 {
		return ErrInvalidLine
	}
	hal.R8(c.bus, hal.EIMSK).ClearBits(1 << line)
	return nil
}

func group(port hal.Port) (hal.Addr, uint8) {
	switch port {
	case hal.PortC:
		return hal.PCMSK1, hal.PCIE1
	case hal.PortD:
		return hal.PCMSK2, hal.PCIE2
	}
	return hal.PCMSK0, hal.PCIE0
}

// EnablePCINT unmasks pin of port for pin-change interrupts and enables
// the port's group. Pins above 7 select pin 0; ports other than C and D
// select port B. The group shares one handler, so h replaces the handler
// for every pin of the port.
func (c *Controller) EnablePCINT(port hal.Port, pin uint8, h func()) {
	if pin > 7 {
		pin = 0
	}
	msk, pcie := group(port)
	ctrl := hal.R8(c.bus, hal.PCICR)
	ctrl.ClearBits(1 << pcie)
	c.groups[pcie] = h
	hal.R8(c.bus, msk).SetBits(1 << pin)
	hal.R8(c.bus, hal.PCIFR).Set(1 << pcie)
	ctrl.SetBits(1 << pcie)
	hal.EnableInterrupts(c.bus)
}

// DisablePCINT masks pin. The group is disabled once no pin is left.
func (c *Controller) DisablePCINT(port hal.Port, pin uint8) {
	if pin > 7 {
		pin = 0
	}
	msk, pcie := group(port)
	r := hal.R8(c.bus, msk)
	r.ClearBits(1 << pin)
	if r.Get() == 0 {
		hal.R8(c.bus, hal.PCICR).ClearBits(1 << pcie)
	}
}

// Events returns how many times a vector of this controller ran, indexed
// in vector order: INT0, INT1, PCINT0, PCINT1, PCINT2.
func (c *Controller) Events(v hal.Vector) uint32 {
	i := int(v) - int(hal.VectorINT0)
	if i < 0 || i >= len(c.events) {
		return 0
	}
	return c.events[i]
}

func (c *Controller) dispatch(i int, h func()) {
	c.events[i]++
	if h != nil {
		h()
	}
}

// Attach binds INT0, INT1 and the three pin-change vectors in t.
func (c *Controller) Attach(t *hal.Vectors) {
	t.Bind(hal.VectorINT0, func() { c.dispatch(0, c.lines[INT0]) })
	t.Bind(hal.VectorINT1, func() { c.dispatch(1, c.lines[INT1]) })
	t.Bind(hal.VectorPCINT0, func() { c.dispatch(2, c.groups[hal.PCIE0]) })
	t.Bind(hal.VectorPCINT1, func() { c.dispatch(3, c.groups[hal.PCIE1]) })
	t.Bind(hal.VectorPCINT2, func() { c.dispatch(4, c.groups[hal.PCIE2]) })
}

// DisableAll masks both external lines and every pin-change group.
func (c *Controller) DisableAll() {
	hal.R8(c.bus, hal.EIMSK).ClearBits(1<<hal.INT0 | 1<<hal.INT1)
	hal.R8(c.bus, hal.PCICR).ClearBits(1<<hal.PCIE0 | 1<<hal.PCIE1 | 1<<hal.PCIE2)
}

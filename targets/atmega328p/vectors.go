//go:build tinygo && avr

package main

import (
	"device/avr"
	"runtime/interrupt"

	"avrperiph/hal"
)

var vectors *hal.Vectors

// bindVectors routes the chip's interrupt entries into v. TinyGo needs a
// constant IRQ and a static handler per vector, hence one line each.
func bindVectors(v *hal.Vectors) {
	vectors = v

	interrupt.New(avr.IRQ_INT0, func(interrupt.Interrupt) { vectors.Service(hal.VectorINT0) })
	interrupt.New(avr.IRQ_INT1, func(interrupt.Interrupt) { vectors.Service(hal.VectorINT1) })
	interrupt.New(avr.IRQ_PCINT0, func(interrupt.Interrupt) { vectors.Service(hal.VectorPCINT0) })
	interrupt.New(avr.IRQ_PCINT1, func(interrupt.Interrupt) { vectors.Service(hal.VectorPCINT1) })
	interrupt.New(avr.IRQ_PCINT2, func(interrupt.Interrupt) { vectors.Service(hal.VectorPCINT2) })

	interrupt.New(avr.IRQ_TIMER2_COMPA, func(interrupt.Interrupt) { vectors.Service(hal.VectorTimer2CompA) })
	interrupt.New(avr.IRQ_TIMER2_OVF, func(interrupt.Interrupt) { vectors.Service(hal.VectorTimer2Ovf) })
	interrupt.New(avr.IRQ_TIMER1_CAPT, func(interrupt.Interrupt) { vectors.Service(hal.VectorTimer1Capt) })
	interrupt.New(avr.IRQ_TIMER1_COMPA, func(interrupt.Interrupt) { vectors.Service(hal.VectorTimer1CompA) })
	interrupt.New(avr.IRQ_TIMER1_OVF, func(interrupt.Interrupt) { vectors.Service(hal.VectorTimer1Ovf) })

	bindTimer0()
}

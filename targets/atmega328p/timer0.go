//go:build tinygo && avr && timer0

package main

import (
	"device/avr"
	"runtime/interrupt"

	"avrperiph/hal"
)

// bindTimer0 claims the Timer0 vectors. Build with -tags timer0 only on a
// TinyGo release whose AVR runtime does not sleep on Timer0; otherwise the
// link fails with a duplicate vector.
func bindTimer0() {
	interrupt.New(avr.IRQ_TIMER0_COMPA, func(interrupt.Interrupt) { vectors.Service(hal.VectorTimer0CompA) })
	interrupt.New(avr.IRQ_TIMER0_OVF, func(interrupt.Interrupt) { vectors.Service(hal.VectorTimer0Ovf) })
}

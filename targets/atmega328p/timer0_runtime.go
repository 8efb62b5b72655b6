//go:build tinygo && avr && !timer0

package main

import "avrperiph/core"

// bindTimer0 leaves Timer0 to the TinyGo runtime and keeps config_timer
// away from it.
func bindTimer0() {
	core.ReserveTimer(0)
}

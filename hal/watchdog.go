package hal

// WatchdogReset arms the watchdog in system reset mode with its shortest
// timeout (16 ms). The caller then spins until the chip resets. Changing
// WDE needs the WDCE sequence, which must complete within four cycles, so
// it runs with interrupts off.
func WatchdogReset(b Bus) {
	Critical(b, func() {
		R8(b, WDTCSR).Set(1<<WDCE | 1<<WDE)
		R8(b, WDTCSR).Set(1 << WDE)
	})
}

// WatchdogDisable turns the watchdog off. It has to run early after a
// watchdog reset: WDRF keeps WDE forced on and the chip would reset again
// within 16 ms.
func WatchdogDisable(b Bus) {
	Critical(b, func() {
		R8(b, MCUSR).ClearBits(1 << WDRF)
		R8(b, WDTCSR).Set(1<<WDCE | 1<<WDE)
		R8(b, WDTCSR).Set(0)
	})
}

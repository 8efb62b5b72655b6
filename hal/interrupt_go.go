//go:build !tinygo

package hal

// DisableInterrupts clears SREG.I on the given bus and returns the previous
// I bit. On a host the bus is a simulator, so the simulated core stops
// servicing vectors until RestoreInterrupts.
func DisableInterrupts(b Bus) State {
	sreg := R8(b, SREG)
	prev := sreg.Get()
	sreg.Set(prev &^ (1 << SREG_I))
	return State(prev & (1 << SREG_I))
}

// RestoreInterrupts puts back the I bit saved by DisableInterrupts.
func RestoreInterrupts(b Bus, state State) {
	if state != 0 {
		R8(b, SREG).SetBits(1 << SREG_I)
	}
}

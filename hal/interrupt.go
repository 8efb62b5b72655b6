package hal

// State is the saved global interrupt enable returned by DisableInterrupts.
type State uintptr

// EnableInterrupts sets the I bit of SREG (sei).
func EnableInterrupts(b Bus) {
	R8(b, SREG).SetBits(1 << SREG_I)
}

// InterruptsEnabled reports the I bit of SREG.
func InterruptsEnabled(b Bus) bool {
	return R8(b, SREG).HasBits(1 << SREG_I)
}

// Critical runs fn with global interrupts disabled and restores the
// previous state afterwards. Drivers never call it on the caller's behalf;
// multi-register sequences that must be atomic are the caller's business.
func Critical(b Bus, fn func()) {
	state := DisableInterrupts(b)
	defer RestoreInterrupts(b, state)
	fn()
}

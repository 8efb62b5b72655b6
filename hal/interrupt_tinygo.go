//go:build tinygo

package hal

import "runtime/interrupt"

// DisableInterrupts disables interrupts and returns the previous state
func DisableInterrupts(_ Bus) State {
	return State(interrupt.Disable())
}

// RestoreInterrupts restores the interrupt state
func RestoreInterrupts(_ Bus, state State) {
	interrupt.Restore(interrupt.State(state))
}

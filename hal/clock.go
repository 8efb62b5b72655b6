package hal

import "periph.io/x/conn/v3/physic"

// CPUFrequency is the core clock the firmware is built for (Arduino Uno
// class boards run an external 16 MHz crystal).
const CPUFrequency = 16 * physic.MegaHertz

// Hz converts a frequency to whole hertz, truncating.
func Hz(f physic.Frequency) uint32 {
	if f <= 0 {
		return 0
	}
	return uint32(f / physic.Hertz)
}

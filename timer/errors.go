package timer

import "errors"

var (
	// ErrInvalidPrescaler reports a prescaler request outside
	// {None, 1, 8, 64, 256, 1024}. The default (no prescaling) was applied.
	ErrInvalidPrescaler = errors.New("timer: invalid prescaler request")

	// ErrUnsupportedWaveform reports a waveform mode the unit lacks. Normal
	// was applied.
	ErrUnsupportedWaveform = errors.New("timer: unsupported waveform mode")

	// ErrInvalidCompareOutput reports a compare output mode outside
	// Disconnected..Set. Disconnected was applied.
	ErrInvalidCompareOutput = errors.New("timer: invalid compare output mode")

	// ErrPeriodTooLong means the tick count does not fit the counter width
	// at the chosen prescaler. Nothing was written.
	ErrPeriodTooLong = errors.New("timer: period too long for counter width")

	// ErrPeriodTooShort means the period rounds down to zero ticks.
	ErrPeriodTooShort = errors.New("timer: period shorter than one tick")

	// ErrNoClockSource means a period was requested with the clock stopped.
	ErrNoClockSource = errors.New("timer: no clock source selected")
)

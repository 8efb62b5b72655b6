package core

import "avrperiph/timer"

// TimerFreq is the rate of the system clock: one tick per millisecond,
// from a Timer2 compare match.
const TimerFreq = 1000

var sysClock struct {
	ticks   uint32
	high    uint32
	running bool
}

// clockTick runs from the Timer2 compare interrupt.
func clockTick() {
	sysClock.ticks++
	if sysClock.ticks == 0 {
		sysClock.high++
	}
}

// StartClock claims Timer2 as a 1 ms CTC tick. From then on config_timer
// refuses unit 2.
func StartClock(b *Board) error {
	_, err := b.Timer2.Init(timer.Config{
		Waveform:  timer.CTCCompareA,
		PeriodMs:  1,
		Prescaler: timer.Prescaler64,
		Interrupt: true,
		Handler:   clockTick,
	})
	sysClock.running = err == nil
	return err
}

// ClockRunning reports whether StartClock succeeded.
func ClockRunning() bool {
	return sysClock.running
}

// GetTime returns the clock in ticks. The 32-bit read is not atomic on an
// 8-bit core, hence the critical section.
func GetTime() (now uint32) {
	critical(func() { now = sysClock.ticks })
	return now
}

// GetUptime returns the 64-bit tick count.
func GetUptime() (up uint64) {
	critical(func() { up = uint64(sysClock.high)<<32 | uint64(sysClock.ticks) })
	return up
}

// SetTime overrides the clock.
func SetTime(ticks uint32) {
	critical(func() { sysClock.ticks = ticks })
}

// TimerFromMS converts milliseconds to clock ticks.
func TimerFromMS(ms uint32) uint32 {
	return ms * TimerFreq / 1000
}

func stopClock() {
	sysClock.ticks, sysClock.high, sysClock.running = 0, 0, false
}

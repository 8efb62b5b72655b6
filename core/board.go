package core

import (
	"avrperiph/adc"
	"avrperiph/extint"
	"avrperiph/hal"
	"avrperiph/timer"

	"periph.io/x/conn/v3/physic"
)

// Board is the set of peripheral drivers the commands act on. Everything
// shares one bus, so the same commands run on the chip and on the
// simulator.
type Board struct {
	Bus     hal.Bus
	CPU     physic.Frequency
	Vectors *hal.Vectors

	Timer0 *timer.Driver[uint8]
	Timer1 *timer.Driver[uint16]
	Timer2 *timer.Driver[uint8]
	ADC    *adc.ADC
	ExtInt *extint.Controller

	timers [3]timerPort
}

// NewBoard builds the drivers and binds their vectors. The caller connects
// Vectors to whatever delivers interrupts.
func NewBoard(bus hal.Bus, cpu physic.Frequency) *Board {
	b := &Board{
		Bus:     bus,
		CPU:     cpu,
		Vectors: hal.NewVectors(),
		Timer0:  timer.NewTimer0(bus, cpu),
		Timer1:  timer.NewTimer1(bus, cpu),
		Timer2:  timer.NewTimer2(bus, cpu),
		ADC:     adc.New(bus),
		ExtInt:  extint.New(bus),
	}
	b.timers = [3]timerPort{port(b.Timer0), port(b.Timer1), port(b.Timer2)}
	b.Timer0.Attach(b.Vectors)
	b.Timer1.Attach(b.Vectors)
	b.Timer2.Attach(b.Vectors)
	b.ExtInt.Attach(b.Vectors)
	return b
}

var board *Board

// SetBoard is called by target code (or a test) before Init.
func SetBoard(b *Board) {
	board = b
}

// MustBoard returns the board or panics if none was set.
func MustBoard() *Board {
	if board == nil {
		panic("core: board not configured")
	}
	return board
}

// critical runs fn with interrupts masked on the board's bus.
func critical(fn func()) {
	if board == nil {
		fn()
		return
	}
	hal.Critical(board.Bus, fn)
}

// Package debounce filters mechanical bounce on a push-button by sampling it
// twice, a short delay apart.
package debounce

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// DefaultDelay is the re-check delay.
const DefaultDelay = time.Millisecond

// Input is anything that samples a level. hal.PortPin satisfies it, and so
// does a periph gpio.PinIn.
type Input interface {
	Read() gpio.Level
}

// Button is an active-low push-button with a pull-up.
type Button struct {
	in Input

	// Delay between the two samples.
	Delay time.Duration
	// Active is the pressed level, gpio.Low for a button to ground.
	Active gpio.Level

	sleep func(time.Duration)
}

// New returns a button on in with DefaultDelay.
func New(in Input) *Button {
	return &Button{
		in:     in,
		Delay:  DefaultDelay,
		Active: gpio.Low,
		sleep:  time.Sleep,
	}
}

// Pressed reports whether the button reads pressed, and still reads pressed
// after Delay. A button that is not pressed on the first sample returns at
// once.
func (b *Button) Pressed() bool {
	if b.in.Read() != b.Active {
		return false
	}
	b.sleep(b.Delay)
	return b.in.Read() == b.Active
}

// Output is a latch that can be inverted.
type Output interface {
	Toggle()
}

// Toggler inverts an output once per press: holding the button does not
// repeat, releasing it re-arms.
type Toggler struct {
	Button *Button
	Out    Output

	held    bool
	toggles uint32
}

// NewToggler returns a toggler driving out from b.
func NewToggler(b *Button, out Output) *Toggler {
	return &Toggler{Button: b, Out: out}
}

// Poll runs one iteration of the loop and reports whether it toggled.
func (t *Toggler) Poll() bool {
	if !t.Button.Pressed() {
		t.held = false
		return false
	}
	if t.held {
		return false
	}
	t.held = true
	t.toggles++
	t.Out.Toggle()
	return true
}

// Toggles returns how many presses have been acted on.
func (t *Toggler) Toggles() uint32 {
	return t.toggles
}

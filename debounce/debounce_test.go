package debounce

import (
	"testing"
	"time"

	"avrperiph/hal"
	"avrperiph/sim"

	"periph.io/x/conn/v3/gpio"
)

// scripted returns one level per Read, repeating the last.
type scripted struct {
	levels []gpio.Level
	reads  int
}

func (s *scripted) Read() gpio.Level {
	i := s.reads
	if i >= len(s.levels) {
		i = len(s.levels) - 1
	}
	s.reads++
	return s.levels[i]
}

func newTestButton(in Input) (*Button, *[]time.Duration) {
	var slept []time.Duration
	b := New(in)
	b.sleep = func(d time.Duration) { slept = append(slept, d) }
	return b, &slept
}

func TestPressed(t *testing.T) {
	testCases := []struct {
		name   string
		levels []gpio.Level
		want   bool
		sleeps int
	}{
		{"idle", []gpio.Level{gpio.High}, false, 0},
		{"bounce", []gpio.Level{gpio.Low, gpio.High}, false, 1},
		{"held", []gpio.Level{gpio.Low, gpio.Low}, true, 1},
	}

	for _, tc := range testCases {
		b, slept := newTestButton(&scripted{levels: tc.levels})
		if got := b.Pressed(); got != tc.want {
			t.Errorf("%s: Pressed() = %v, want %v", tc.name, got, tc.want)
		}
		if len(*slept) != tc.sleeps {
			t.Errorf("%s: slept %d times, want %d", tc.name, len(*slept), tc.sleeps)
		}
		for _, d := range *slept {
			if d != DefaultDelay {
				t.Errorf("%s: slept %s", tc.name, d)
			}
		}
	}
}

type counter struct{ n int }

func (c *counter) Toggle() { c.n++ }

func TestTogglerOncePerPress(t *testing.T) {
	// Each Poll on a pressed button reads twice.
	in := &scripted{levels: []gpio.Level{
		gpio.Low, gpio.Low,  // press
		gpio.Low, gpio.Low,  // still held
		gpio.High,           // released
		gpio.Low, gpio.High, // bounce
		gpio.Low, gpio.Low,  // second press
	}}
	b, _ := newTestButton(in)
	out := &counter{}
	tg := NewToggler(b, out)

	var toggled []bool
	for i := 0; i < 5; i++ {
		toggled = append(toggled, tg.Poll())
	}

	want := []bool{true, false, false, false, true}
	for i := range want {
		if toggled[i] != want[i] {
			t.Errorf("poll %d toggled = %v, want %v", i, toggled[i], want[i])
		}
	}
	if out.n != 2 || tg.Toggles() != 2 {
		t.Errorf("output toggled %d times, counted %d", out.n, tg.Toggles())
	}
}

func TestTogglerOnPortPins(t *testing.T) {
	m := sim.New(hal.CPUFrequency)
	button := hal.Pin(m, hal.PortB, 0)
	button.In(gpio.PullUp)
	led := hal.Pin(m, hal.PortB, 5)
	led.Out(gpio.Low)

	b, _ := newTestButton(button)
	tg := NewToggler(b, led)

	tg.Poll()
	if m.Output(hal.PortB, 5) != gpio.Low {
		t.Fatal("LED toggled with the button released")
	}

	m.SetInput(hal.PortB, 0, gpio.Low)
	tg.Poll()
	tg.Poll()
	if m.Output(hal.PortB, 5) != gpio.High {
		t.Error("LED not toggled by the press")
	}

	m.SetInput(hal.PortB, 0, gpio.High)
	tg.Poll()
	m.SetInput(hal.PortB, 0, gpio.Low)
	tg.Poll()
	if m.Output(hal.PortB, 5) != gpio.Low {
		t.Error("LED not toggled back by the second press")
	}
}

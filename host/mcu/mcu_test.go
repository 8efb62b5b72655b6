package mcu

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"avrperiph/hal"
	"avrperiph/host/loopback"
	"avrperiph/sim"
	"avrperiph/timer"

	"periph.io/x/conn/v3/physic"
)

// connect starts a simulated board and loads its dictionary.
func connect(t *testing.T) (*MCU, *loopback.Loopback) {
	t.Helper()
	lb, err := loopback.Start(hal.CPUFrequency)
	if err != nil {
		t.Fatalf("loopback: %v", err)
	}
	m := New()
	m.Attach(lb.Conn())
	t.Cleanup(func() {
		m.Close()
		lb.Close()
	})

	if err := m.RetrieveDictionary(ctx(t)); err != nil {
		t.Fatalf("RetrieveDictionary: %v", err)
	}
	return m, lb
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestRetrieveDictionary(t *testing.T) {
	m, _ := connect(t)

	d := m.GetDictionary()
	if d.Config["MCU"] != "atmega328p" {
		t.Errorf("MCU = %q", d.Config["MCU"])
	}
	if d.Config["CLOCK_FREQ"] != "1000" {
		t.Errorf("CLOCK_FREQ = %q", d.Config["CLOCK_FREQ"])
	}
	if _, ok := d.Commands["config_timer unit=%c waveform=%c period_ms=%hu compare=%c prescaler=%hu interrupt=%c"]; !ok {
		t.Error("config_timer missing from dictionary")
	}
	if id, err := m.Pin("PB5"); err != nil || id != 5 {
		t.Errorf("Pin(PB5) = %d, %v", id, err)
	}
	if _, err := m.Pin("PC7"); err == nil {
		t.Error("PC7 resolved")
	}
	if len(m.GetDictionaryRaw()) == 0 {
		t.Error("raw dictionary empty")
	}
}

func TestSendBeforeDictionary(t *testing.T) {
	lb, err := loopback.Start(hal.CPUFrequency)
	if err != nil {
		t.Fatalf("loopback: %v", err)
	}
	defer lb.Close()
	m := New()
	if err := m.Send(ctx(t), "get_clock"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("unconnected Send: %v", err)
	}
	m.Attach(lb.Conn())
	defer m.Close()
	if err := m.Send(ctx(t), "get_clock"); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("Send before dictionary: %v", err)
	}
}

func TestSendValidatesArguments(t *testing.T) {
	m, _ := connect(t)

	if err := m.Send(ctx(t), "no_such_command"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown command: %v", err)
	}
	if err := m.Send(ctx(t), "timer_stop"); !errors.Is(err, ErrArgCount) {
		t.Errorf("missing argument: %v", err)
	}
}

func TestClockAdvances(t *testing.T) {
	m, _ := connect(t)

	first, err := m.GetClock(ctx(t))
	if err != nil {
		t.Fatalf("GetClock: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	second, err := m.GetClock(ctx(t))
	if err != nil {
		t.Fatalf("GetClock: %v", err)
	}
	if second <= first {
		t.Errorf("clock did not advance: %d then %d", first, second)
	}
	up, err := m.GetUptime(ctx(t))
	if err != nil || up < uint64(second) {
		t.Errorf("uptime = %d, %v", up, err)
	}
}

func TestListenersSeeEveryResponse(t *testing.T) {
	m, _ := connect(t)

	var mu sync.Mutex
	var first, second []uint32
	m.On("clock", func(r *Response) {
		mu.Lock()
		first = append(first, r.Uint("clock"))
		mu.Unlock()
	})
	m.On("clock", func(r *Response) {
		mu.Lock()
		second = append(second, r.Uint("clock"))
		mu.Unlock()
		// Registering from inside a listener must not deadlock or change
		// this delivery.
		m.On("clock", func(*Response) {})
	})

	var got []uint32
	for i := 0; i < 2; i++ {
		c, err := m.GetClock(ctx(t))
		if err != nil {
			t.Fatalf("GetClock: %v", err)
		}
		got = append(got, c)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("listeners saw %v and %v", first, second)
	}
	for i := range got {
		if first[i] != got[i] || second[i] != got[i] {
			t.Errorf("response %d: query %d, listeners %d and %d", i, got[i], first[i], second[i])
		}
	}
}

func TestConfigureTimer(t *testing.T) {
	m, _ := connect(t)

	s, err := m.ConfigureTimer(ctx(t), 1, timer.Config{
		Waveform:  timer.CTCCompareA,
		PeriodMs:  10,
		Prescaler: timer.Prescaler8,
	})
	if err != nil {
		t.Fatalf("ConfigureTimer: %v", err)
	}
	if s.Ticks != 19999 || s.Prescaler != timer.Prescaler8 || s.Waveform != timer.CTCCompareA {
		t.Errorf("settings = %+v", s)
	}
	if ocr, err := m.ReadWord(ctx(t), uint16(hal.OCR1AL)); err != nil || ocr != 19999 {
		t.Errorf("OCR1A = %d, %v", ocr, err)
	}

	s, err = m.ConfigureTimer(ctx(t), 1, timer.Config{
		Waveform:  timer.CTCCompareA,
		PeriodMs:  1,
		Prescaler: 3,
	})
	if err != nil {
		t.Fatalf("ConfigureTimer: %v", err)
	}
	if !s.PrescalerDefaulted || s.Prescaler != timer.DefaultPrescaler || s.Ticks != 15999 {
		t.Errorf("defaulted settings = %+v", s)
	}
}

func TestConfigureTimerErrors(t *testing.T) {
	m, _ := connect(t)

	_, err := m.ConfigureTimer(ctx(t), 0, timer.Config{
		Waveform:  timer.CTCCompareA,
		PeriodMs:  100,
		Prescaler: timer.Prescaler64,
	})
	if !errors.Is(err, timer.ErrPeriodTooLong) {
		t.Errorf("100 ms on Timer0: %v", err)
	}

	_, err = m.ConfigureTimer(ctx(t), 0, timer.Config{
		Waveform:  timer.CTCCompareA,
		PeriodMs:  1,
		Prescaler: timer.PrescalerNone,
	})
	if !errors.Is(err, timer.ErrNoClockSource) {
		t.Errorf("no clock: %v", err)
	}
}

func TestTimerEvents(t *testing.T) {
	m, _ := connect(t)

	var mu sync.Mutex
	var last TimerEvent
	m.OnTimerEvent(func(e TimerEvent) {
		mu.Lock()
		last = e
		mu.Unlock()
	})

	_, err := m.ConfigureTimer(ctx(t), 0, timer.Config{
		Waveform:  timer.CTCCompareA,
		PeriodMs:  1,
		Prescaler: timer.Prescaler64,
		Interrupt: true,
	})
	if err != nil {
		t.Fatalf("ConfigureTimer: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		e := last
		mu.Unlock()
		if e.Count >= 5 {
			if e.Unit != 0 {
				t.Errorf("event for unit %d", e.Unit)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("last timer event %+v", last)
}

func TestReadAndCheckTimer(t *testing.T) {
	m, _ := connect(t)

	_, err := m.ConfigureTimer(ctx(t), 0, timer.Config{Prescaler: timer.Prescaler1})
	if err != nil {
		t.Fatalf("ConfigureTimer: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if ov, err := m.CheckTimer(ctx(t), 0); err != nil || !ov {
		t.Errorf("CheckTimer = %v, %v", ov, err)
	}

	if err := m.StopTimer(ctx(t), 0); err != nil {
		t.Fatalf("StopTimer: %v", err)
	}
	a, _ := m.ReadTimer(ctx(t), 0)
	time.Sleep(5 * time.Millisecond)
	b, err := m.ReadTimer(ctx(t), 0)
	if err != nil || a != b {
		t.Errorf("stopped counter read %d then %d (%v)", a, b, err)
	}
	if err := m.ClearTimer(ctx(t), 0); err != nil {
		t.Fatalf("ClearTimer: %v", err)
	}
	if v, _ := m.ReadTimer(ctx(t), 0); v != 0 {
		t.Errorf("counter after clear = %d", v)
	}
}

func TestAnalogAndTemperature(t *testing.T) {
	m, lb := connect(t)
	lb.Do(func(s *sim.MCU) {
		s.SetAnalog(3, 612)
		s.SetAnalog(8, 292)
	})

	if err := m.ConfigAnalogIn(ctx(t), 4, 3); err != nil {
		t.Fatalf("ConfigAnalogIn: %v", err)
	}
	if v, err := m.ReadAnalog(ctx(t), 4); err != nil || v != 612 {
		t.Errorf("ReadAnalog = %d, %v", v, err)
	}

	temp, err := m.Temperature(ctx(t))
	if err != nil {
		t.Fatalf("Temperature: %v", err)
	}
	if c := (temp - physic.ZeroCelsius) / physic.Kelvin; c < 15 || c > 35 {
		t.Errorf("temperature %s", temp)
	}
}

func TestEmergencyStopAndReset(t *testing.T) {
	m, _ := connect(t)

	reasons := make(chan string, 1)
	m.OnShutdown(func(clock uint32, reason string) {
		select {
		case reasons <- reason:
		default:
		}
	})

	if err := m.EmergencyStop(ctx(t)); err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}
	select {
	case r := <-reasons:
		if r != "emergency stop" {
			t.Errorf("reason %q", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no shutdown response")
	}
	st, err := m.GetStatus(ctx(t))
	if err != nil || !st.Shutdown {
		t.Errorf("status after stop = %+v, %v", st, err)
	}

	if err := m.ConfigReset(ctx(t)); err != nil {
		t.Fatalf("ConfigReset: %v", err)
	}
	if err := m.AllocateOIDs(ctx(t), 4); err != nil {
		t.Fatalf("AllocateOIDs: %v", err)
	}
	if err := m.FinalizeConfig(ctx(t), 0xBEEF); err != nil {
		t.Fatalf("FinalizeConfig: %v", err)
	}
	st, err = m.GetStatus(ctx(t))
	if err != nil || st.Shutdown || !st.Configured || st.CRC != 0xBEEF {
		t.Errorf("status after reset = %+v, %v", st, err)
	}
}

func TestResetRestartsLink(t *testing.T) {
	m, _ := connect(t)

	if err := m.Reset(ctx(t)); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := m.GetClock(ctx(t)); err != nil {
		t.Errorf("GetClock after reset: %v", err)
	}
	st, err := m.GetStatus(ctx(t))
	if err != nil || st.Configured {
		t.Errorf("status after reset = %+v, %v", st, err)
	}
}

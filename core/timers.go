package core

import (
	"errors"

	"avrperiph/protocol"
	"avrperiph/timer"
)

var (
	ErrInvalidUnit   = errors.New("core: no such timer unit")
	ErrTimerReserved = errors.New("core: timer unit reserved")
)

// reservedTimers has bit n set for a unit the firmware image keeps for
// itself. It is a property of the build and survives Init.
var reservedTimers uint8

// ReserveTimer keeps unit away from config_timer and the timer runtime
// commands, and ShutdownTimers leaves it running.
func ReserveTimer(unit uint8) {
	reservedTimers |= 1 << unit
}

// timerReserved reports whether unit belongs to the build or, for
// Timer2, to the running system clock.
func timerReserved(unit uint32) bool {
	return reservedTimers&(1<<unit) != 0 || unit == 2 && sysClock.running
}

// timerControl is the width-independent part of timer.Driver.
type timerControl interface {
	Init(cfg timer.Config) (timer.Settings, error)
	Stop()
	Clear()
	Reset()
	CheckOverflow() bool
	DisableInterrupt()
	Running() bool
}

type timerPort struct {
	ctl  timerControl
	read func() uint16
}

func port[T timer.Counter](d *timer.Driver[T]) timerPort {
	return timerPort{ctl: d, read: func() uint16 { return uint16(d.Read()) }}
}

// timerState counts handler calls in interrupt context; TimerEventTask
// reports them from the main loop.
type timerState struct {
	configured bool
	fired      uint32
	reported   uint32
}

var timerStates [3]timerState

// Error codes carried by timer_error.
const (
	timerErrTooLong  = 1
	timerErrTooShort = 2
	timerErrNoClock  = 3
)

func timerErrorCode(err error) uint32 {
	switch {
	case errors.Is(err, timer.ErrPeriodTooLong):
		return timerErrTooLong
	case errors.Is(err, timer.ErrPeriodTooShort):
		return timerErrTooShort
	case errors.Is(err, timer.ErrNoClockSource):
		return timerErrNoClock
	}
	return 0
}

func InitTimerCommands() {
	RegisterCommand("config_timer", "unit=%c waveform=%c period_ms=%hu compare=%c prescaler=%hu interrupt=%c", handleConfigTimer)
	RegisterCommand("timer_stop", "unit=%c", handleTimerStop)
	RegisterCommand("timer_clear", "unit=%c", handleTimerClear)
	RegisterCommand("timer_reset", "unit=%c", handleTimerReset)
	RegisterCommand("timer_read", "unit=%c", handleTimerRead)
	RegisterCommand("timer_check", "unit=%c", handleTimerCheck)

	RegisterResponse("timer_config", "unit=%c waveform=%c prescaler=%hu ticks=%hu compare=%c interrupt=%c defaulted=%c")
	RegisterResponse("timer_error", "unit=%c code=%c")
	RegisterResponse("timer_value", "unit=%c value=%hu")
	RegisterResponse("timer_overflow", "unit=%c overflow=%c")
	RegisterResponse("timer_event", "unit=%c count=%u clock=%u")
}

// timerUnit resolves a unit argument. Timer2 is off limits while it runs
// the system clock, as is any unit passed to ReserveTimer.
func timerUnit(unit uint32) (timerPort, error) {
	if unit >= uint32(len(timerStates)) {
		return timerPort{}, ErrInvalidUnit
	}
	if timerReserved(unit) {
		return timerPort{}, ErrTimerReserved
	}
	return MustBoard().timers[unit], nil
}

func decodeUnit(data *[]byte) (uint32, timerPort, error) {
	unit, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, timerPort{}, err
	}
	p, err := timerUnit(unit)
	return unit, p, err
}

// handleConfigTimer runs timer.Init and reports what was applied. A period
// the unit cannot produce is answered with timer_error and leaves the unit
// stopped.
func handleConfigTimer(data *[]byte) error {
	var unit, waveform, periodMs, compare, prescaler, irq uint32
	if err := protocol.DecodeArgs(data, &unit, &waveform, &periodMs, &compare, &prescaler, &irq); err != nil {
		return err
	}
	if globalState.isShutdown {
		return ErrShutdown
	}
	p, err := timerUnit(unit)
	if err != nil {
		return err
	}

	st := &timerStates[unit]
	cfg := timer.Config{
		Waveform:  timer.Waveform(waveform),
		PeriodMs:  uint16(periodMs),
		Compare:   timer.CompareOutput(compare),
		Prescaler: timer.Prescaler(prescaler),
		Interrupt: irq != 0,
	}
	if cfg.Interrupt {
		cfg.Handler = func() { st.fired++ }
	}
	critical(func() { st.fired, st.reported = 0, 0 })

	s, err := p.ctl.Init(cfg)
	if err != nil {
		st.configured = false
		code := timerErrorCode(err)
		RecordEvent(EvtTimerError, uint8(unit), code)
		return SendResponse("timer_error", func(out protocol.OutputBuffer) {
			protocol.EncodeVLQUint(out, unit)
			protocol.EncodeVLQUint(out, code)
		})
	}
	st.configured = true
	RecordEvent(EvtTimerConfig, uint8(unit), uint32(s.Ticks))

	var defaulted uint32
	if s.WaveformDefaulted {
		defaulted |= 1
	}
	if s.PrescalerDefaulted {
		defaulted |= 2
	}
	return SendResponse("timer_config", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, unit)
		protocol.EncodeVLQUint(out, uint32(s.Waveform))
		protocol.EncodeVLQUint(out, uint32(s.Prescaler))
		protocol.EncodeVLQUint(out, uint32(s.Ticks))
		protocol.EncodeVLQUint(out, uint32(s.Compare))
		protocol.EncodeVLQUint(out, boolArg(s.Interrupt))
		protocol.EncodeVLQUint(out, defaulted)
	})
}

func handleTimerStop(data *[]byte) error {
	_, p, err := decodeUnit(data)
	if err != nil {
		return err
	}
	p.ctl.Stop()
	return nil
}

func handleTimerClear(data *[]byte) error {
	_, p, err := decodeUnit(data)
	if err != nil {
		return err
	}
	p.ctl.Clear()
	return nil
}

func handleTimerReset(data *[]byte) error {
	_, p, err := decodeUnit(data)
	if err != nil {
		return err
	}
	p.ctl.Reset()
	return nil
}

func handleTimerRead(data *[]byte) error {
	unit, p, err := decodeUnit(data)
	if err != nil {
		return err
	}
	v := p.read()
	return SendResponse("timer_value", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, unit)
		protocol.EncodeVLQUint(out, uint32(v))
	})
}

func handleTimerCheck(data *[]byte) error {
	unit, p, err := decodeUnit(data)
	if err != nil {
		return err
	}
	ov := p.ctl.CheckOverflow()
	return SendResponse("timer_overflow", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, unit)
		protocol.EncodeVLQUint(out, boolArg(ov))
	})
}

// TimerEventTask sends timer_event for every unit whose handler ran since
// the last report.
func TimerEventTask() {
	for i := range timerStates {
		st := &timerStates[i]
		if !st.configured {
			continue
		}
		var fired uint32
		critical(func() { fired = st.fired })
		if fired == st.reported {
			continue
		}
		st.reported = fired
		now := GetTime()
		SendResponse("timer_event", func(out protocol.OutputBuffer) {
			protocol.EncodeVLQUint(out, uint32(i))
			protocol.EncodeVLQUint(out, fired)
			protocol.EncodeVLQUint(out, now)
		})
	}
}

// ShutdownTimers stops every unit except the reserved ones and masks
// their interrupts.
func ShutdownTimers() {
	if board == nil {
		return
	}
	for i, p := range board.timers {
		if timerReserved(uint32(i)) {
			continue
		}
		p.ctl.Stop()
		p.ctl.DisableInterrupt()
	}
}

func resetTimerState() {
	critical(func() { timerStates = [3]timerState{} })
}

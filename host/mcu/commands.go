package mcu

import (
	"context"
	"errors"
	"fmt"

	"avrperiph/extint"
	"avrperiph/timer"

	"periph.io/x/conn/v3/physic"
)

// ErrTimerCode is returned for a timer_error code the client does not
// know.
var ErrTimerCode = errors.New("mcu: unknown timer error code")

// Status is the firmware's config response.
type Status struct {
	Configured bool
	CRC        uint32
	Shutdown   bool
	MoveCount  uint16
}

// TimerEvent is one timer_event report: Count periods since the unit was
// configured, as of Clock.
type TimerEvent struct {
	Unit  uint8
	Count uint32
	Clock uint32
}

// ExtIntEvent is one extint_event report.
type ExtIntEvent struct {
	OID   uint8
	Count uint32
	Clock uint32
}

func (m *MCU) GetClock(ctx context.Context) (uint32, error) {
	r, err := m.Query(ctx, "get_clock", nil, "clock")
	if err != nil {
		return 0, err
	}
	return r.Uint("clock"), nil
}

func (m *MCU) GetUptime(ctx context.Context) (uint64, error) {
	r, err := m.Query(ctx, "get_uptime", nil, "uptime")
	if err != nil {
		return 0, err
	}
	return uint64(r.Uint("high"))<<32 | uint64(r.Uint("clock")), nil
}

func (m *MCU) GetStatus(ctx context.Context) (Status, error) {
	r, err := m.Query(ctx, "get_config", nil, "config")
	if err != nil {
		return Status{}, err
	}
	return Status{
		Configured: r.Bool("is_config"),
		CRC:        r.Uint("crc"),
		Shutdown:   r.Bool("is_shutdown"),
		MoveCount:  uint16(r.Uint("move_count")),
	}, nil
}

// ConfigReset drops every configured object and clears a shutdown.
func (m *MCU) ConfigReset(ctx context.Context) error {
	return m.Send(ctx, "config_reset")
}

func (m *MCU) AllocateOIDs(ctx context.Context, count uint8) error {
	return m.Send(ctx, "allocate_oids", uint32(count))
}

func (m *MCU) FinalizeConfig(ctx context.Context, crc uint32) error {
	return m.Send(ctx, "finalize_config", crc)
}

// EmergencyStop shuts the firmware down. It answers with a shutdown
// response, delivered to OnShutdown.
func (m *MCU) EmergencyStop(ctx context.Context) error {
	return m.Send(ctx, "emergency_stop")
}

// Reset asks the firmware to reboot and restarts the link sequence.
func (m *MCU) Reset(ctx context.Context) error {
	if err := m.Send(ctx, "reset"); err != nil {
		return err
	}
	t, err := m.conn()
	if err != nil {
		return err
	}
	t.Reset()
	return nil
}

// ReadByte and ReadWord read the firmware's data space.
func (m *MCU) ReadByte(ctx context.Context, addr uint16) (uint8, error) {
	r, err := m.Query(ctx, "debug_read", []uint32{0, uint32(addr)}, "debug_result")
	if err != nil {
		return 0, err
	}
	return uint8(r.Uint("val")), nil
}

func (m *MCU) ReadWord(ctx context.Context, addr uint16) (uint16, error) {
	r, err := m.Query(ctx, "debug_read", []uint32{1, uint32(addr)}, "debug_result")
	if err != nil {
		return 0, err
	}
	return uint16(r.Uint("val")), nil
}

func unitIs(unit uint8) func(*Response) bool {
	return func(r *Response) bool { return r.Uint("unit") == uint32(unit) }
}

// timerError maps a timer_error code back to the driver's error.
func timerError(unit uint8, code uint32) error {
	var err error
	switch code {
	case 1:
		err = timer.ErrPeriodTooLong
	case 2:
		err = timer.ErrPeriodTooShort
	case 3:
		err = timer.ErrNoClockSource
	default:
		err = fmt.Errorf("%w %d", ErrTimerCode, code)
	}
	return fmt.Errorf("timer %d: %w", unit, err)
}

// ConfigureTimer runs config_timer and returns what the firmware applied.
// A period the unit cannot produce comes back as timer.ErrPeriodTooLong,
// timer.ErrPeriodTooShort or timer.ErrNoClockSource. cfg.Handler is not
// sent; use OnTimerEvent.
func (m *MCU) ConfigureTimer(ctx context.Context, unit uint8, cfg timer.Config) (timer.Settings, error) {
	args := []uint32{
		uint32(unit),
		uint32(cfg.Waveform),
		uint32(cfg.PeriodMs),
		uint32(cfg.Compare),
		uint32(cfg.Prescaler),
		boolArg(cfg.Interrupt),
	}
	r, err := m.query(ctx, "config_timer", args, unitIs(unit), "timer_config", "timer_error")
	if err != nil {
		return timer.Settings{}, err
	}
	if r.Name == "timer_error" {
		return timer.Settings{}, timerError(unit, r.Uint("code"))
	}
	defaulted := r.Uint("defaulted")
	return timer.Settings{
		Waveform:           timer.Waveform(r.Uint("waveform")),
		Prescaler:          timer.Prescaler(r.Uint("prescaler")),
		Compare:            timer.CompareOutput(r.Uint("compare")),
		Ticks:              uint16(r.Uint("ticks")),
		Interrupt:          r.Bool("interrupt"),
		WaveformDefaulted:  defaulted&1 != 0,
		PrescalerDefaulted: defaulted&2 != 0,
	}, nil
}

func (m *MCU) StopTimer(ctx context.Context, unit uint8) error {
	return m.Send(ctx, "timer_stop", uint32(unit))
}

func (m *MCU) ClearTimer(ctx context.Context, unit uint8) error {
	return m.Send(ctx, "timer_clear", uint32(unit))
}

func (m *MCU) ResetTimer(ctx context.Context, unit uint8) error {
	return m.Send(ctx, "timer_reset", uint32(unit))
}

// ReadTimer returns the unit's counter.
func (m *MCU) ReadTimer(ctx context.Context, unit uint8) (uint16, error) {
	r, err := m.query(ctx, "timer_read", []uint32{uint32(unit)}, unitIs(unit), "timer_value")
	if err != nil {
		return 0, err
	}
	return uint16(r.Uint("value")), nil
}

// CheckTimer reports and clears the unit's overflow flag.
func (m *MCU) CheckTimer(ctx context.Context, unit uint8) (bool, error) {
	r, err := m.query(ctx, "timer_check", []uint32{uint32(unit)}, unitIs(unit), "timer_overflow")
	if err != nil {
		return false, err
	}
	return r.Bool("overflow"), nil
}

// OnTimerEvent calls fn for every timer_event.
func (m *MCU) OnTimerEvent(fn func(TimerEvent)) {
	m.On("timer_event", func(r *Response) {
		fn(TimerEvent{Unit: uint8(r.Uint("unit")), Count: r.Uint("count"), Clock: r.Uint("clock")})
	})
}

// OnShutdown calls fn when the firmware shuts down.
func (m *MCU) OnShutdown(fn func(clock uint32, reason string)) {
	m.On("shutdown", func(r *Response) {
		fn(r.Uint("clock"), string(r.Bytes("reason")))
	})
}

// ConfigAnalogIn binds oid to ADC channel pin (0-7, 8 is the temperature
// sensor).
func (m *MCU) ConfigAnalogIn(ctx context.Context, oid, pin uint8) error {
	return m.Send(ctx, "config_analog_in", uint32(oid), uint32(pin))
}

// ReadAnalog runs one conversion on oid's channel.
func (m *MCU) ReadAnalog(ctx context.Context, oid uint8) (uint16, error) {
	r, err := m.query(ctx, "analog_read", []uint32{uint32(oid)}, oidIs(oid), "analog_value")
	if err != nil {
		return 0, err
	}
	return uint16(r.Uint("value")), nil
}

// Temperature reads the on-chip sensor.
func (m *MCU) Temperature(ctx context.Context) (physic.Temperature, error) {
	r, err := m.Query(ctx, "query_mcu_temp", nil, "mcu_temp")
	if err != nil {
		return 0, err
	}
	return physic.ZeroCelsius + physic.Temperature(r.Int("temp"))*physic.MilliKelvin, nil
}

func oidIs(oid uint8) func(*Response) bool {
	return func(r *Response) bool { return r.Uint("oid") == uint32(oid) }
}

func (m *MCU) ConfigDigitalOut(ctx context.Context, oid uint8, pin string, value, defaultValue bool, maxDuration uint32) error {
	id, err := m.Pin(pin)
	if err != nil {
		return err
	}
	return m.Send(ctx, "config_digital_out", uint32(oid), id, boolArg(value), boolArg(defaultValue), maxDuration)
}

func (m *MCU) SetDigitalOut(ctx context.Context, oid uint8, value bool) error {
	return m.Send(ctx, "update_digital_out", uint32(oid), boolArg(value))
}

// ConfigButton sets up a debounced input on pin.
func (m *MCU) ConfigButton(ctx context.Context, oid uint8, pin string, pullUp bool) error {
	id, err := m.Pin(pin)
	if err != nil {
		return err
	}
	return m.Send(ctx, "config_button", uint32(oid), id, boolArg(pullUp))
}

func (m *MCU) ButtonPressed(ctx context.Context, oid uint8) (bool, error) {
	r, err := m.query(ctx, "query_button", []uint32{uint32(oid)}, oidIs(oid), "button_state")
	if err != nil {
		return false, err
	}
	return r.Bool("pressed"), nil
}

// ConfigExtInt counts INT0 (line 0) or INT1 (line 1) events.
func (m *MCU) ConfigExtInt(ctx context.Context, oid, line uint8, sense extint.Sense) error {
	return m.Send(ctx, "config_extint", uint32(oid), uint32(line), uint32(sense))
}

// ConfigPCInt counts pin changes on pin.
func (m *MCU) ConfigPCInt(ctx context.Context, oid uint8, pin string) error {
	id, err := m.Pin(pin)
	if err != nil {
		return err
	}
	return m.Send(ctx, "config_pcint", uint32(oid), id)
}

// OnExtIntEvent calls fn for every extint_event.
func (m *MCU) OnExtIntEvent(fn func(ExtIntEvent)) {
	m.On("extint_event", func(r *Response) {
		fn(ExtIntEvent{OID: uint8(r.Uint("oid")), Count: r.Uint("count"), Clock: r.Uint("clock")})
	})
}

// Pin resolves a pin name such as "PB5" through the dictionary's pin
// enumeration.
func (m *MCU) Pin(name string) (uint32, error) {
	d := m.GetDictionary()
	if d == nil {
		return 0, ErrNoDictionary
	}
	id, ok := d.Enumerations["pin"][name]
	if !ok {
		return 0, fmt.Errorf("mcu: unknown pin %q", name)
	}
	return uint32(id), nil
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

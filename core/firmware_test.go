package core

import (
	"testing"
	"time"

	"avrperiph/hal"
	"avrperiph/protocol"
	"avrperiph/sim"
	"avrperiph/timer"

	"periph.io/x/conn/v3/gpio"
)

// sink is an unbounded protocol.OutputBuffer.
type sink struct{ buf []byte }

func (s *sink) Output(data []byte)       { s.buf = append(s.buf, data...) }
func (s *sink) CurPosition() int         { return len(s.buf) }
func (s *sink) Update(pos int, val byte) { s.buf[pos] = val }
func (s *sink) DataSince(pos int) []byte { return s.buf[pos:] }

type response struct {
	name string
	args []uint32
	raw  []byte
}

// harness runs the command layer against the simulated chip.
type harness struct {
	t    *testing.T
	mcu  *sim.MCU
	b    *Board
	out  *sink
	tr   *protocol.Transport
	seq  uint8
	errs []error
}

func newHarness(t *testing.T, withClock bool) *harness {
	t.Helper()
	globalRegistry = NewCommandRegistry()
	globalDictionary = NewDictionary(globalRegistry)
	globalState = FirmwareState{moveCount: 8}
	stopClock()
	resetTimers()
	adcReady = false
	mcuSensor = nil

	h := &harness{t: t, mcu: sim.New(hal.CPUFrequency), out: &sink{}, seq: protocol.MessageDest}
	h.b = NewBoard(h.mcu, hal.CPUFrequency)
	h.mcu.Attach(h.b.Vectors)
	resetObjects()
	ClearEvents()
	Init(h.b)
	if withClock {
		if err := StartClock(h.b); err != nil {
			t.Fatalf("StartClock: %v", err)
		}
	}

	h.tr = protocol.NewTransport(h.out, DispatchCommand)
	h.tr.SetErrorCallback(func(id uint16, err error) {
		h.errs = append(h.errs, err)
		ReportError(id, err)
	})
	SetGlobalTransport(h.tr)
	t.Cleanup(func() {
		SetGlobalTransport(nil)
		SetBoard(nil)
		stopClock()
	})
	return h
}

func (h *harness) send(name string, args ...uint32) {
	h.t.Helper()
	cmd, ok := globalRegistry.GetCommandByName(name)
	if !ok {
		h.t.Fatalf("no command %s", name)
	}
	out := protocol.NewScratchOutput()
	err := protocol.EncodeBlock(out, h.seq, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, uint32(cmd.ID))
		for _, a := range args {
			protocol.EncodeVLQUint(o, a)
		}
	})
	if err != nil {
		h.t.Fatalf("encode %s: %v", name, err)
	}
	h.seq = protocol.NextSequence(h.seq)
	h.tr.Receive(protocol.NewSliceInputBuffer(out.Result()))
}

// run advances the chip one millisecond at a time, running the main loop
// after each.
func (h *harness) run(ms int) {
	for i := 0; i < ms; i++ {
		h.mcu.Advance(time.Millisecond)
		RunTasks()
	}
}

// responses returns and clears everything sent except ACKs.
func (h *harness) responses() []response {
	h.t.Helper()
	var rs []response
	data := h.out.buf
	for len(data) > 0 {
		n := int(data[protocol.MessagePositionLen])
		payload := data[protocol.MessageHeaderSize : n-protocol.MessageTrailerSize]
		data = data[n:]
		if len(payload) == 0 {
			continue
		}
		id, _ := protocol.DecodeVLQUint(&payload)
		cmd, _ := globalRegistry.GetCommand(uint16(id))
		r := response{name: cmd.Name, raw: payload}
		for len(payload) > 0 && cmd.Name != "identify_response" && cmd.Name != "shutdown" {
			v, err := protocol.DecodeVLQUint(&payload)
			if err != nil {
				h.t.Fatalf("decode %s: %v", cmd.Name, err)
			}
			r.args = append(r.args, v)
		}
		rs = append(rs, r)
	}
	h.out.buf = nil
	return rs
}

// last returns the most recent response called name.
func (h *harness) last(name string) response {
	h.t.Helper()
	var found *response
	for _, r := range h.responses() {
		if r.name == name {
			r := r
			found = &r
		}
	}
	if found == nil {
		h.t.Fatalf("no %s response", name)
	}
	return *found
}

func TestIdentifyReturnsDictionary(t *testing.T) {
	h := newHarness(t, false)

	var dict []byte
	for off := uint32(0); ; {
		h.send("identify", off, 40)
		r := h.last("identify_response")
		raw := r.raw
		got, _ := protocol.DecodeVLQUint(&raw)
		chunk, err := protocol.DecodeVLQBytes(&raw)
		if err != nil || got != off {
			t.Fatalf("identify_response offset %d, %v", got, err)
		}
		if len(chunk) == 0 {
			break
		}
		dict = append(dict, chunk...)
		off += uint32(len(chunk))
	}
	t.Logf("dictionary is %d bytes", len(dict))
	if string(dict) != string(GetGlobalDictionary().Generate()) {
		t.Error("reassembled dictionary differs")
	}
}

func TestClockFollowsTimer2(t *testing.T) {
	h := newHarness(t, true)
	h.run(25)

	h.send("get_clock")
	r := h.last("clock")
	if r.args[0] < 24 || r.args[0] > 25 {
		t.Errorf("clock = %d after 25 ms", r.args[0])
	}

	h.send("get_uptime")
	r = h.last("uptime")
	if r.args[0] != 0 || r.args[1] < 24 {
		t.Errorf("uptime = %v", r.args)
	}
}

func TestConfigTimerReportsSettings(t *testing.T) {
	h := newHarness(t, true)

	// Timer1, CTC on OCR1A, 10 ms at /8: 19999 ticks.
	h.send("config_timer", 1, 1, 10, 0, 8, 0)
	r := h.last("timer_config")
	want := []uint32{1, 1, 8, 19999, 0, 0, 0}
	for i := range want {
		if r.args[i] != want[i] {
			t.Fatalf("timer_config = %v, want %v", r.args, want)
		}
	}

	// An invalid prescaler is replaced and flagged.
	h.send("config_timer", 1, 1, 1, 0, 3, 0)
	r = h.last("timer_config")
	if r.args[2] != 1 || r.args[3] != 15999 || r.args[6] != 2 {
		t.Errorf("defaulted timer_config = %v", r.args)
	}
}

func TestConfigTimerErrors(t *testing.T) {
	h := newHarness(t, true)

	// 100 ms does not fit Timer0 at /64.
	h.send("config_timer", 0, 1, 100, 0, 64, 0)
	r := h.last("timer_error")
	if r.args[0] != 0 || r.args[1] != timerErrTooLong {
		t.Errorf("timer_error = %v", r.args)
	}

	// Timer2 belongs to the clock.
	h.send("config_timer", 2, 0, 0, 0, 64, 0)
	if len(h.errs) != 1 || h.errs[0] != ErrTimerReserved {
		t.Errorf("errors = %v", h.errs)
	}
	if !h.tr.Synchronized() {
		t.Error("command error desynchronized the transport")
	}
}

func TestReservedTimerUntouched(t *testing.T) {
	h := newHarness(t, true)
	ReserveTimer(0)
	t.Cleanup(func() { reservedTimers = 0 })

	// The image drives Timer0 itself.
	if _, err := h.b.Timer0.Init(timer.Config{Prescaler: timer.Prescaler64}); err != nil {
		t.Fatalf("Timer0 init: %v", err)
	}

	h.send("config_timer", 0, 1, 1, 0, 64, 1)
	h.send("timer_stop", 0)
	if len(h.errs) != 2 || h.errs[0] != ErrTimerReserved || h.errs[1] != ErrTimerReserved {
		t.Errorf("errors = %v", h.errs)
	}

	h.send("emergency_stop")
	if !h.b.Timer0.Running() {
		t.Error("emergency stop halted a reserved unit")
	}
}

func TestTimerEventsReachHost(t *testing.T) {
	h := newHarness(t, true)

	h.send("config_timer", 0, 1, 1, 0, 64, 1)
	h.responses()
	h.run(10)

	var count uint32
	for _, r := range h.responses() {
		if r.name == "timer_event" && r.args[0] == 0 {
			count = r.args[1]
		}
	}
	if count < 9 || count > 10 {
		t.Errorf("timer_event count = %d after 10 ms", count)
	}
}

func TestTimerReadCheckReset(t *testing.T) {
	h := newHarness(t, false)

	// Timer0 Normal /1 overflows every 256 cycles.
	h.send("config_timer", 0, 0, 0, 0, 1, 0)
	h.mcu.Step(300)

	h.send("timer_check", 0)
	if r := h.last("timer_overflow"); r.args[1] != 1 {
		t.Errorf("no overflow after 300 cycles: %v", r.args)
	}
	h.send("timer_reset", 0)
	h.send("timer_check", 0)
	if r := h.last("timer_overflow"); r.args[1] != 0 {
		t.Errorf("overflow after reset: %v", r.args)
	}

	h.send("timer_stop", 0)
	h.send("timer_read", 0)
	v := h.last("timer_value").args[1]
	h.mcu.Step(100)
	h.send("timer_read", 0)
	if got := h.last("timer_value").args[1]; got != v {
		t.Errorf("stopped counter moved from %d to %d", v, got)
	}
	h.send("timer_clear", 0)
	h.send("timer_read", 0)
	if got := h.last("timer_value").args[1]; got != 0 {
		t.Errorf("counter after clear = %d", got)
	}
}

func TestAnalogRead(t *testing.T) {
	h := newHarness(t, false)
	h.mcu.SetAnalog(3, 612)

	h.send("config_analog_in", 4, 3)
	h.send("analog_read", 4)
	r := h.last("analog_value")
	if r.args[0] != 4 || r.args[1] != 612 {
		t.Errorf("analog_value = %v", r.args)
	}

	h.send("config_analog_in", 5, 9)
	if len(h.errs) != 1 || h.errs[0] != ErrInvalidChannel {
		t.Errorf("errors = %v", h.errs)
	}
}

func TestQueryAnalogIn(t *testing.T) {
	h := newHarness(t, true)
	h.mcu.SetAnalog(0, 100)

	h.send("config_analog_in", 1, 0)
	// 4 samples 1 ms apart every 10 ms starting at 5.
	h.send("query_analog_in", 1, 5, 1, 4, 10, 0, 1023*4, 1)
	h.run(30)

	var states []response
	for _, r := range h.responses() {
		if r.name == "analog_in_state" {
			states = append(states, r)
		}
	}
	if len(states) < 2 {
		t.Fatalf("got %d analog_in_state reports", len(states))
	}
	if states[0].args[1] != 15 || states[0].args[2] != 400 {
		t.Errorf("first report = %v, want next_clock 15 value 400", states[0].args)
	}
	if states[1].args[1] != 25 {
		t.Errorf("second report next_clock = %d", states[1].args[1])
	}
}

func TestAnalogRangeShutsDown(t *testing.T) {
	h := newHarness(t, true)
	h.mcu.SetAnalog(0, 1000)

	h.send("config_analog_in", 1, 0)
	h.send("query_analog_in", 1, 2, 1, 1, 5, 0, 500, 1)
	h.run(5)

	if !IsShutdown() {
		t.Fatal("out-of-range value did not shut down")
	}
	r := h.last("shutdown")
	raw := r.raw
	protocol.DecodeVLQUint(&raw)
	if reason, _ := protocol.DecodeVLQString(&raw); reason != "ADC out of range" {
		t.Errorf("reason = %q", reason)
	}
}

func TestMCUTemperature(t *testing.T) {
	h := newHarness(t, false)
	// 1.1 V reference: 314 mV reads as 292, about 25 °C.
	h.mcu.SetAnalog(8, 292)

	h.send("query_mcu_temp")
	r := h.last("mcu_temp")
	temp := int32(r.args[0])
	if temp < 20000 || temp > 30000 {
		t.Errorf("mcu_temp = %d m°C", temp)
	}
}

func TestDigitalOut(t *testing.T) {
	h := newHarness(t, true)

	// PB5 (pin 5), on, default off.
	h.send("config_digital_out", 1, 5, 1, 0, 0)
	if h.mcu.Output(hal.PortB, 5) != gpio.High {
		t.Fatal("PB5 not driven high")
	}
	h.send("update_digital_out", 1, 0)
	if h.mcu.Output(hal.PortB, 5) != gpio.Low {
		t.Error("PB5 not driven low")
	}

	h.send("queue_digital_out", 1, 3, 1)
	h.run(1)
	if h.mcu.Output(hal.PortB, 5) != gpio.Low {
		t.Error("queued value applied early")
	}
	h.run(3)
	if h.mcu.Output(hal.PortB, 5) != gpio.High {
		t.Error("queued value not applied")
	}

	h.send("config_digital_out", 2, 15, 0, 0, 0)
	if len(h.errs) != 1 || h.errs[0] != ErrInvalidPin {
		t.Errorf("errors = %v", h.errs)
	}
}

func TestDigitalOutMaxDuration(t *testing.T) {
	h := newHarness(t, true)

	h.send("config_digital_out", 1, 5, 0, 0, 5)
	h.send("update_digital_out", 1, 1)
	h.run(3)
	h.send("update_digital_out", 1, 1) // refresh
	h.run(3)
	if IsShutdown() {
		t.Fatal("refreshed output expired")
	}
	h.run(5)
	if !IsShutdown() {
		t.Fatal("stale output did not shut down")
	}
	if h.mcu.Output(hal.PortB, 5) != gpio.Low {
		t.Error("output not returned to default")
	}
}

func TestButtonStateAndToggle(t *testing.T) {
	h := newHarness(t, true)

	// PD2 button with pull-up, PB5 output.
	h.send("config_button", 1, 18, 1)
	h.send("config_digital_out", 2, 5, 0, 0, 0)

	h.send("query_button", 1)
	if r := h.last("button_state"); r.args[1] != 0 {
		t.Errorf("released button reads %v", r.args)
	}

	h.mcu.SetInput(hal.PortD, 2, gpio.Low)
	h.send("query_button", 1)
	if r := h.last("button_state"); r.args[1] != 1 {
		t.Errorf("pressed button reads %v", r.args)
	}

	h.send("button_toggle", 1, 2, 2)
	h.run(10) // held: one toggle
	if h.mcu.Output(hal.PortB, 5) != gpio.High {
		t.Fatal("press did not toggle")
	}
	h.mcu.SetInput(hal.PortD, 2, gpio.High)
	h.run(4)
	h.mcu.SetInput(hal.PortD, 2, gpio.Low)
	h.run(4)
	if h.mcu.Output(hal.PortB, 5) != gpio.Low {
		t.Error("second press did not toggle back")
	}
}

func TestExtIntEvents(t *testing.T) {
	h := newHarness(t, true)

	h.mcu.SetInput(hal.PortD, 2, gpio.High)
	h.send("config_extint", 1, 0, uint32(2)) // INT0 falling
	h.responses()

	h.mcu.SetInput(hal.PortD, 2, gpio.Low)
	h.run(1)
	h.mcu.SetInput(hal.PortD, 2, gpio.High)
	h.mcu.SetInput(hal.PortD, 2, gpio.Low)
	h.run(1)

	var count uint32
	for _, r := range h.responses() {
		if r.name == "extint_event" && r.args[0] == 1 {
			count = r.args[1]
		}
	}
	if count != 2 {
		t.Errorf("extint_event count = %d, want 2", count)
	}
}

func TestEmergencyStop(t *testing.T) {
	h := newHarness(t, true)

	h.send("config_timer", 1, 1, 10, 0, 8, 1)
	h.mcu.SetInput(hal.PortD, 3, gpio.High)
	h.send("config_extint", 2, 1, 3)
	h.send("emergency_stop")

	if h.b.Timer1.Running() {
		t.Error("Timer1 still running")
	}
	if _, armed := h.b.Timer1.Armed(); armed {
		t.Error("Timer1 interrupt still armed")
	}
	if h.mcu.Peek(hal.EIMSK) != 0 {
		t.Errorf("EIMSK = %#x", h.mcu.Peek(hal.EIMSK))
	}
	if !ClockRunning() || !h.b.Timer2.Running() {
		t.Error("system clock stopped")
	}

	h.send("get_config")
	if r := h.last("config"); r.args[2] != 1 {
		t.Errorf("config = %v", r.args)
	}

	h.send("config_timer", 0, 0, 0, 0, 64, 0)
	if len(h.errs) == 0 || h.errs[len(h.errs)-1] != ErrShutdown {
		t.Errorf("config accepted while shut down: %v", h.errs)
	}

	h.send("config_reset")
	if IsShutdown() {
		t.Error("config_reset did not clear shutdown")
	}
	for _, e := range Events() {
		t.Logf("event %s oid=%d v=%d", eventName(e.Type), e.OID, e.Value)
	}
}

func TestFinalizeAndAllocate(t *testing.T) {
	h := newHarness(t, false)

	h.send("allocate_oids", 2)
	h.send("config_analog_in", 3, 0)
	if len(h.errs) != 1 || h.errs[0] != ErrUnknownOID {
		t.Errorf("errors = %v", h.errs)
	}

	h.send("finalize_config", 0xCAFE)
	h.send("get_config")
	r := h.last("config")
	if r.args[0] != 1 || r.args[1] != 0xCAFE || r.args[3] != 8 {
		t.Errorf("config = %v", r.args)
	}
}

func TestDebugReadAndReset(t *testing.T) {
	h := newHarness(t, false)

	h.send("config_timer", 1, 1, 10, 0, 8, 0)
	h.send("debug_read", 1, uint32(hal.OCR1AL))
	if r := h.last("debug_result"); r.args[0] != 19999 {
		t.Errorf("OCR1A = %d", r.args[0])
	}

	resets := 0
	SetResetHandler(func() { resets++ })
	defer SetResetHandler(nil)
	h.send("reset")
	if resets != 0 {
		t.Error("reset ran before the main loop")
	}
	RunTasks()
	if resets != 1 {
		t.Errorf("resets = %d", resets)
	}
}

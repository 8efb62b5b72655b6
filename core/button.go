package core

import (
	"avrperiph/debounce"
	"avrperiph/protocol"

	"periph.io/x/conn/v3/gpio"
)

// Button is a debounced input. With a toggle output it also runs the
// press-to-toggle loop from the main loop.
type Button struct {
	OID    uint8
	button *debounce.Button
	toggle *debounce.Toggler
	Timer  Timer
	period uint32
}

var buttons = make(map[uint8]*Button)

func InitButtonCommands() {
	RegisterCommand("config_button", "oid=%c pin=%u pull_up=%c", handleConfigButton)
	RegisterCommand("query_button", "oid=%c", handleQueryButton)
	RegisterCommand("button_toggle", "oid=%c out_oid=%c poll_ticks=%u", handleButtonToggle)

	RegisterResponse("button_state", "oid=%c pressed=%c")
}

func handleConfigButton(data *[]byte) error {
	var oid, pin, pullUp uint32
	if err := protocol.DecodeArgs(data, &oid, &pin, &pullUp); err != nil {
		return err
	}
	if err := checkOID(oid); err != nil {
		return err
	}
	p, err := pinFromID(pin)
	if err != nil {
		return err
	}
	pull := gpio.Float
	if pullUp != 0 {
		pull = gpio.PullUp
	}
	p.In(pull)
	buttons[uint8(oid)] = &Button{OID: uint8(oid), button: debounce.New(p)}
	return nil
}

func lookupButton(data *[]byte) (*Button, error) {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	b, ok := buttons[uint8(oid)]
	if !ok {
		return nil, ErrUnknownOID
	}
	return b, nil
}

func handleQueryButton(data *[]byte) error {
	b, err := lookupButton(data)
	if err != nil {
		return err
	}
	pressed := b.button.Pressed()
	return SendResponse("button_state", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(b.OID))
		protocol.EncodeVLQUint(out, boolArg(pressed))
	})
}

// handleButtonToggle polls the button every poll_ticks and inverts the
// digital output out_oid once per press. poll_ticks 0 stops polling.
func handleButtonToggle(data *[]byte) error {
	b, err := lookupButton(data)
	if err != nil {
		return err
	}
	var outOID, poll uint32
	if err := protocol.DecodeArgs(data, &outOID, &poll); err != nil {
		return err
	}
	CancelTimer(&b.Timer)
	if poll == 0 {
		b.toggle = nil
		return nil
	}
	d, ok := digitalOutputs[uint8(outOID)]
	if !ok {
		return ErrUnknownOID
	}
	b.toggle = debounce.NewToggler(b.button, digitalToggle{d})
	b.period = poll
	b.Timer.Handler = b.poll
	b.Timer.WakeTime = GetTime() + poll
	ScheduleTimer(&b.Timer)
	return nil
}

func (b *Button) poll(t *Timer) uint8 {
	if b.toggle == nil {
		return SF_DONE
	}
	b.toggle.Poll()
	t.WakeTime += b.period
	return SF_RESCHEDULE
}

// digitalToggle lets a Toggler drive a DigitalOut so max_duration and
// shutdown defaults still apply.
type digitalToggle struct{ d *DigitalOut }

func (o digitalToggle) Toggle() {
	o.d.set(!o.d.Value)
}

package core

import (
	"errors"

	"avrperiph/hal"
	"avrperiph/protocol"

	"periph.io/x/conn/v3/gpio"
)

var ErrInvalidPin = errors.New("core: no such pin")

// PinNames is the "pin" enumeration: pin numbers are port*8+bit with ports
// in hal.Port order.
var PinNames = [24]string{
	"PB0", "PB1", "PB2", "PB3", "PB4", "PB5", "PB6", "PB7",
	"PC0", "PC1", "PC2", "PC3", "PC4", "PC5", "PC6", "",
	"PD0", "PD1", "PD2", "PD3", "PD4", "PD5", "PD6", "PD7",
}

func pinFromID(id uint32) (hal.PortPin, error) {
	if id >= uint32(len(PinNames)) || PinNames[id] == "" {
		return hal.PortPin{}, ErrInvalidPin
	}
	return hal.Pin(MustBoard().Bus, hal.Port(id/8), uint8(id%8)), nil
}

// DigitalOut is a configured output pin. A non-default value with
// max_duration set must be refreshed within max_duration ticks or the
// firmware shuts down.
type DigitalOut struct {
	OID          uint8
	Pin          hal.PortPin
	Value        gpio.Level
	DefaultValue gpio.Level
	MaxDuration  uint32

	Timer    Timer // queue_digital_out
	endTimer Timer // max_duration watchdog
	pending  gpio.Level
}

var digitalOutputs = make(map[uint8]*DigitalOut)

func InitGPIOCommands() {
	RegisterCommand("config_digital_out", "oid=%c pin=%u value=%c default_value=%c max_duration=%u", handleConfigDigitalOut)
	RegisterCommand("update_digital_out", "oid=%c value=%c", handleUpdateDigitalOut)
	RegisterCommand("queue_digital_out", "oid=%c clock=%u value=%c", handleQueueDigitalOut)
}

func handleConfigDigitalOut(data *[]byte) error {
	var oid, pin, value, def, maxDuration uint32
	if err := protocol.DecodeArgs(data, &oid, &pin, &value, &def, &maxDuration); err != nil {
		return err
	}
	if err := checkOID(oid); err != nil {
		return err
	}
	p, err := pinFromID(pin)
	if err != nil {
		return err
	}
	d := &DigitalOut{
		OID:          uint8(oid),
		Pin:          p,
		DefaultValue: gpio.Level(def != 0),
		MaxDuration:  maxDuration,
	}
	d.endTimer.Handler = d.expired
	d.Timer.Handler = d.load
	digitalOutputs[d.OID] = d
	d.set(gpio.Level(value != 0))
	d.Pin.Out(d.Value)
	return nil
}

func lookupDigitalOut(data *[]byte) (*DigitalOut, error) {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	d, ok := digitalOutputs[uint8(oid)]
	if !ok {
		return nil, ErrUnknownOID
	}
	return d, nil
}

func handleUpdateDigitalOut(data *[]byte) error {
	d, err := lookupDigitalOut(data)
	if err != nil {
		return err
	}
	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if globalState.isShutdown {
		return ErrShutdown
	}
	d.set(gpio.Level(value != 0))
	return nil
}

func handleQueueDigitalOut(data *[]byte) error {
	d, err := lookupDigitalOut(data)
	if err != nil {
		return err
	}
	var clock, value uint32
	if err := protocol.DecodeArgs(data, &clock, &value); err != nil {
		return err
	}
	if globalState.isShutdown {
		return ErrShutdown
	}
	d.pending = gpio.Level(value != 0)
	d.Timer.WakeTime = clock
	ScheduleTimer(&d.Timer)
	return nil
}

// set drives v and arms or disarms the max_duration check.
func (d *DigitalOut) set(v gpio.Level) {
	d.Value = v
	d.Pin.Write(v)
	if d.MaxDuration == 0 || v == d.DefaultValue {
		CancelTimer(&d.endTimer)
		return
	}
	d.endTimer.WakeTime = GetTime() + d.MaxDuration
	ScheduleTimer(&d.endTimer)
}

func (d *DigitalOut) load(t *Timer) uint8 {
	d.set(d.pending)
	return SF_DONE
}

func (d *DigitalOut) expired(t *Timer) uint8 {
	TryShutdown("missed scheduling of next digital out event")
	return SF_DONE
}

// ShutdownAllDigitalOut returns every output to its default value.
func ShutdownAllDigitalOut() {
	for _, d := range digitalOutputs {
		CancelTimer(&d.Timer)
		CancelTimer(&d.endTimer)
		d.Value = d.DefaultValue
		d.Pin.Write(d.DefaultValue)
	}
}

// Package adc drives the ATmega328P 10-bit successive approximation ADC.
package adc

import (
	"errors"

	"avrperiph/hal"
	"avrperiph/logger"
)

var (
	// ErrInvalidPrescaler reports a clock divisor outside 2..128 powers of
	// two. /128 was applied.
	ErrInvalidPrescaler = errors.New("adc: invalid prescaler")

	// ErrConversionTimeout means ADSC never cleared.
	ErrConversionTimeout = errors.New("adc: conversion did not complete")
)

// Reference selects the conversion reference voltage (REFS1:0).
type Reference uint8

const (
	RefAREF       Reference = 0 // external AREF pin, internal reference off
	RefAVcc       Reference = 1 // AVcc with capacitor at AREF
	RefInternal11 Reference = 3 // internal 1.1 V
)

// Mode selects how conversions are started.
type Mode uint8

const (
	FreeRunning Mode = iota
	SingleConversion
)

// TemperatureChannel is the MUX setting of the on-chip temperature sensor.
const TemperatureChannel = 8

// Max is the largest right-adjusted result.
const Max = 1<<10 - 1

// Config is applied by Init.
type Config struct {
	Prescaler  uint8 // 2, 4, 8, 16, 32, 64 or 128
	Reference  Reference
	LeftAdjust bool
	Mode       Mode
}

// DefaultConfig matches the usual Arduino setup: AVcc reference, /128
// (125 kHz at 16 MHz), right adjusted, single conversions.
var DefaultConfig = Config{
	Prescaler: 128,
	Reference: RefAVcc,
	Mode:      SingleConversion,
}

// convertSpins bounds the ADSC wait. A conversion takes at most 25 ADC
// clocks, 3200 CPU cycles at /128.
const convertSpins = 1 << 16

// ADC is the converter on a bus.
type ADC struct {
	bus hal.Bus
	log logger.Logger
}

// New returns the converter on bus. It does not touch the hardware.
func New(bus hal.Bus) *ADC {
	return &ADC{bus: bus, log: logger.Get()}
}

func (a *ADC) admux() hal.Reg8  { return hal.R8(a.bus, hal.ADMUX) }
func (a *ADC) adcsra() hal.Reg8 { return hal.R8(a.bus, hal.ADCSRA) }

// control writes ADCSRA without acknowledging a pending ADIF.
func (a *ADC) control(set, clear uint8) {
	r := a.adcsra()
	r.Set(r.Get()&^(clear|1<<hal.ADIF) | set)
}

// Init enables the converter and applies cfg. An invalid prescaler is
// replaced by /128 and reported; the rest of cfg is still applied.
func (a *ADC) Init(cfg Config) error {
	a.control(1<<hal.ADEN, 0)
	err := a.SetPrescaler(cfg.Prescaler)
	a.SetReference(cfg.Reference)
	a.SetAdjust(cfg.LeftAdjust)
	a.SetMode(cfg.Mode)
	return err
}

// SetReference selects the reference. The reserved code 2 and anything
// above 3 select AREF.
func (a *ADC) SetReference(ref Reference) {
	if ref == 2 || ref > 3 {
		a.log.Warn("adc: reference " + logger.Itoa(int(ref)) + " reserved, using AREF")
		ref = RefAREF
	}
	a.admux().ReplaceBits(uint8(ref), 0x3, hal.REFS0)
}

// Reference reads back REFS1:0.
func (a *ADC) Reference() Reference {
	return Reference(a.admux().Get() >> hal.REFS0 & 0x3)
}

// SetAdjust selects left (high byte only) or right adjusted results.
func (a *ADC) SetAdjust(left bool) {
	if left {
		a.admux().SetBits(1 << hal.ADLAR)
	} else {
		a.admux().ClearBits(1 << hal.ADLAR)
	}
}

// SetChannel selects the input multiplexer. Channels above
// TemperatureChannel select ADC0.
func (a *ADC) SetChannel(ch uint8) {
	if ch > TemperatureChannel {
		ch = 0
	}
	a.admux().ReplaceBits(ch, 0x0F, hal.MUX0)
}

// Channel reads back the multiplexer setting.
func (a *ADC) Channel() uint8 {
	return a.admux().Get() & 0x0F
}

var prescalerCodes = [...]struct {
	div  uint8
	code uint8
}{
	{2, 1}, {4, 2}, {8, 3}, {16, 4}, {32, 5}, {64, 6}, {128, 7},
}

// SetPrescaler selects the ADC clock divisor. The ADC wants 50..200 kHz
// for full resolution, so /128 is the right choice at 16 MHz.
func (a *ADC) SetPrescaler(div uint8) error {
	code, err := uint8(7), ErrInvalidPrescaler
	for _, p := range prescalerCodes {
		if p.div == div {
			code, err = p.code, nil
			break
		}
	}
	if err != nil {
		a.log.Warn("adc: prescaler " + logger.Itoa(int(div)) + " invalid, using 128")
	}
	r := a.adcsra()
	r.Set(r.Get()&^(0x7<<hal.ADPS0|1<<hal.ADIF) | code<<hal.ADPS0)
	return err
}

// SetMode selects free running (auto trigger from the ADC itself) or
// single conversions.
func (a *ADC) SetMode(m Mode) {
	if m == FreeRunning {
		a.control(1<<hal.ADATE, 0)
		hal.R8(a.bus, hal.ADCSRB).ClearBits(1<<hal.ADTS2 | 1<<hal.ADTS1 | 1<<hal.ADTS0)
		return
	}
	a.control(0, 1<<hal.ADATE)
}

// FreeRunning reports whether conversions are auto-triggered by their own
// completion.
func (a *ADC) FreeRunning() bool {
	if !a.adcsra().HasBits(1 << hal.ADATE) {
		return false
	}
	return !hal.R8(a.bus, hal.ADCSRB).HasBits(1<<hal.ADTS2 | 1<<hal.ADTS1 | 1<<hal.ADTS0)
}

// Read selects ch and returns a sample. In single conversion mode it
// starts a conversion and waits for it; in free running mode it makes sure
// conversions are running and returns the latest result. Left-adjusted
// results are the high byte only.
func (a *ADC) Read(ch uint8) (uint16, error) {
	a.SetChannel(ch)
	if a.FreeRunning() {
		if !a.adcsra().HasBits(1 << hal.ADSC) {
			a.control(1<<hal.ADSC, 0)
		}
		return a.result(), nil
	}

	a.control(1<<hal.ADSC, 0)
	for i := 0; a.adcsra().HasBits(1 << hal.ADSC); i++ {
		if i == convertSpins {
			a.log.Error("adc: conversion timeout on channel " + logger.Itoa(int(ch)))
			return 0, ErrConversionTimeout
		}
	}
	return a.result(), nil
}

// result reads ADCL before ADCH; reading ADCL locks the data registers
// until ADCH is read.
func (a *ADC) result() uint16 {
	lo := hal.R8(a.bus, hal.ADCL).Get()
	hi := hal.R8(a.bus, hal.ADCH).Get()
	if a.leftAdjusted() {
		return uint16(hi)
	}
	return uint16(hi)<<8 | uint16(lo)
}

func (a *ADC) leftAdjusted() bool {
	return a.admux().HasBits(1 << hal.ADLAR)
}

// Disable turns the converter off.
func (a *ADC) Disable() {
	a.control(0, 1<<hal.ADEN|1<<hal.ADATE)
}

package core

import (
	"errors"

	"avrperiph/adc"
	"avrperiph/protocol"

	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

var ErrInvalidChannel = errors.New("core: no such ADC channel")

// AnalogIn is a configured ADC channel. Periodic sampling follows Klipper's
// analog_in: sample_count readings sample_ticks apart are summed and
// reported, then the next cycle starts rest_ticks after the previous one
// began.
type AnalogIn struct {
	OID     uint8
	Channel uint8

	Timer         Timer
	SampleTime    uint32
	SampleCount   uint8
	RestTime      uint32
	NextBeginTime uint32

	CurrentSample uint8
	Value         uint32

	MinValue        uint16
	MaxValue        uint16
	RangeCheckCount uint8
	InvalidCount    uint8
}

var (
	analogInputs = make(map[uint8]*AnalogIn)
	adcReady     bool
	mcuSensor    *adc.Sensor
)

func InitADCCommands() {
	RegisterCommand("config_analog_in", "oid=%c pin=%c", handleConfigAnalogIn)
	RegisterCommand("analog_read", "oid=%c", handleAnalogRead)
	RegisterCommand("query_analog_in", "oid=%c clock=%u sample_ticks=%u sample_count=%c rest_ticks=%u min_value=%hu max_value=%hu range_check_count=%c", handleQueryAnalogIn)
	RegisterCommand("query_mcu_temp", "", handleQueryMCUTemp)

	RegisterResponse("analog_value", "oid=%c value=%hu")
	RegisterResponse("analog_in_state", "oid=%c next_clock=%u value=%hu")
	RegisterResponse("mcu_temp", "temp=%i")

	RegisterConstant("ADC_MAX", adc.Max)
}

// ensureADC powers the converter on first use.
func ensureADC() *adc.ADC {
	a := MustBoard().ADC
	if !adcReady {
		a.Init(adc.DefaultConfig)
		adcReady = true
	}
	return a
}

func handleConfigAnalogIn(data *[]byte) error {
	var oid, ch uint32
	if err := protocol.DecodeArgs(data, &oid, &ch); err != nil {
		return err
	}
	if err := checkOID(oid); err != nil {
		return err
	}
	if ch > adc.TemperatureChannel {
		return ErrInvalidChannel
	}
	ensureADC()
	analogInputs[uint8(oid)] = &AnalogIn{OID: uint8(oid), Channel: uint8(ch)}
	return nil
}

func lookupAnalogIn(data *[]byte) (*AnalogIn, error) {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	ain, ok := analogInputs[uint8(oid)]
	if !ok {
		return nil, ErrUnknownOID
	}
	return ain, nil
}

func handleAnalogRead(data *[]byte) error {
	ain, err := lookupAnalogIn(data)
	if err != nil {
		return err
	}
	v, err := ensureADC().Read(ain.Channel)
	if err != nil {
		return err
	}
	return SendResponse("analog_value", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(ain.OID))
		protocol.EncodeVLQUint(out, uint32(v))
	})
}

func handleQueryAnalogIn(data *[]byte) error {
	ain, err := lookupAnalogIn(data)
	if err != nil {
		return err
	}
	var clock, sampleTicks, sampleCount, restTicks, minValue, maxValue, rangeCheck uint32
	if err := protocol.DecodeArgs(data, &clock, &sampleTicks, &sampleCount, &restTicks, &minValue, &maxValue, &rangeCheck); err != nil {
		return err
	}

	CancelTimer(&ain.Timer)
	ain.SampleTime = sampleTicks
	ain.SampleCount = uint8(sampleCount)
	ain.RestTime = restTicks
	ain.MinValue = uint16(minValue)
	ain.MaxValue = uint16(maxValue)
	ain.RangeCheckCount = uint8(rangeCheck)
	ain.Value = 0
	ain.CurrentSample = 0
	ain.InvalidCount = 0
	if ain.SampleCount == 0 {
		return nil
	}

	ain.NextBeginTime = clock
	ain.Timer.WakeTime = clock
	ain.Timer.Handler = ain.event
	ScheduleTimer(&ain.Timer)
	return nil
}

// event takes one sample and reports at the end of a cycle.
func (ain *AnalogIn) event(t *Timer) uint8 {
	v, err := ensureADC().Read(ain.Channel)
	if err != nil {
		TryShutdown("ADC conversion timeout")
		return SF_DONE
	}
	ain.Value += uint32(v)
	ain.CurrentSample++
	if ain.CurrentSample < ain.SampleCount {
		t.WakeTime += ain.SampleTime
		return SF_RESCHEDULE
	}

	value := ain.Value
	ain.Value = 0
	ain.CurrentSample = 0
	ain.NextBeginTime += ain.RestTime
	t.WakeTime = ain.NextBeginTime

	if value < uint32(ain.MinValue) || value > uint32(ain.MaxValue) {
		ain.InvalidCount++
		RecordEvent(EvtAnalogRange, ain.OID, value)
		if ain.InvalidCount >= ain.RangeCheckCount {
			TryShutdown("ADC out of range")
			return SF_DONE
		}
	} else {
		ain.InvalidCount = 0
	}

	next := ain.NextBeginTime
	SendResponse("analog_in_state", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(ain.OID))
		protocol.EncodeVLQUint(out, next)
		protocol.EncodeVLQUint(out, value)
	})
	return SF_RESCHEDULE
}

// handleQueryMCUTemp reads the on-die sensor in milli-degrees Celsius.
func handleQueryMCUTemp(data *[]byte) error {
	if mcuSensor == nil {
		mcuSensor = adc.NewSensor(ensureADC(), adc.TemperatureChannel, 5*physic.Volt)
	}
	if err := mcuSensor.Update(drivers.Temperature); err != nil {
		return err
	}
	temp := mcuSensor.Temperature()
	return SendResponse("mcu_temp", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQInt(out, temp)
	})
}

// ShutdownAllAnalogIn stops periodic sampling.
func ShutdownAllAnalogIn() {
	for _, ain := range analogInputs {
		CancelTimer(&ain.Timer)
		ain.SampleCount = 0
	}
}

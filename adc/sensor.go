package adc

import (
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

// Sensor reads one analog channel as a voltage and the on-chip temperature
// sensor, following the tinygo drivers Sensor convention: Update samples,
// the getters return the last sample.
type Sensor struct {
	adc     *ADC
	channel uint8

	// Vref is the reference the channel is converted against (AVcc or
	// AREF). Temperature readings always use the internal 1.1 V.
	Vref physic.ElectricPotential

	// TempOffset is added to the uncalibrated temperature. The datasheet
	// allows ±10 °C between parts.
	TempOffset physic.Temperature

	voltage     physic.ElectricPotential
	temperature physic.Temperature
}

var _ drivers.Sensor = (*Sensor)(nil)

// Internal11 is the nominal internal bandgap reference.
const Internal11 = 1100 * physic.MilliVolt

// NewSensor returns a sensor on channel ch of a, converting against vref.
func NewSensor(a *ADC, ch uint8, vref physic.ElectricPotential) *Sensor {
	return &Sensor{adc: a, channel: ch, Vref: vref}
}

// Update samples the requested measurements. drivers.Voltage reads the
// channel, drivers.Temperature switches to the internal reference for one
// conversion of the temperature channel and switches back.
func (s *Sensor) Update(which drivers.Measurement) error {
	if which&drivers.Voltage != 0 {
		raw, err := s.adc.Read(s.channel)
		if err != nil {
			return err
		}
		s.voltage = scale(raw, s.adc.leftAdjusted(), s.Vref)
	}
	if which&drivers.Temperature != 0 {
		ref := s.adc.Reference()
		s.adc.SetReference(RefInternal11)
		raw, err := s.adc.Read(TemperatureChannel)
		s.adc.SetReference(ref)
		if err != nil {
			return err
		}
		mv := scale(raw, s.adc.leftAdjusted(), Internal11) / physic.MilliVolt
		s.temperature = tempFromMilliVolts(int64(mv)) + s.TempOffset
	}
	return nil
}

// Voltage returns the last channel sample in microvolts.
func (s *Sensor) Voltage() int32 {
	return int32(s.voltage / physic.MicroVolt)
}

// Potential returns the last channel sample.
func (s *Sensor) Potential() physic.ElectricPotential {
	return s.voltage
}

// Temperature returns the last die temperature in milli-degrees Celsius.
func (s *Sensor) Temperature() int32 {
	return int32((s.temperature - physic.ZeroCelsius) / physic.MilliKelvin)
}

// scale converts a result to a voltage against ref. A left-adjusted result
// is the top 8 bits.
func scale(raw uint16, left bool, ref physic.ElectricPotential) physic.ElectricPotential {
	full := physic.ElectricPotential(Max + 1)
	if left {
		full = 1 << 8
	}
	return physic.ElectricPotential(raw) * ref / full
}

// tempFromMilliVolts applies the typical datasheet curve: 314 mV at 25 °C
// and 1 mV/°C.
func tempFromMilliVolts(mv int64) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(mv-289)*physic.Kelvin
}

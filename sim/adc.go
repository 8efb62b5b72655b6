package sim

import "avrperiph/hal"

// TemperatureChannel is the MUX setting of the internal temperature sensor.
const TemperatureChannel = 8

// SetAnalog sets the 10-bit conversion result for channel ch (0..7, or
// TemperatureChannel).
func (m *MCU) SetAnalog(ch uint8, value uint16) {
	if int(ch) >= len(m.analog) {
		return
	}
	m.analog[ch] = value & 0x3FF
}

func (m *MCU) storeADCSRA(v uint8) {
	const w1c = 1 << hal.ADIF
	flag := m.mem[hal.ADCSRA] & w1c
	if v&w1c != 0 {
		flag = 0
	}
	m.mem[hal.ADCSRA] = v&^w1c | flag
	if v&(1<<hal.ADEN) != 0 && v&(1<<hal.ADSC) != 0 {
		m.convert()
	}
}

// stepADC keeps a free-running conversion fresh.
func (m *MCU) stepADC() {
	s := m.mem[hal.ADCSRA]
	if s&(1<<hal.ADEN) == 0 || s&(1<<hal.ADATE) == 0 || s&(1<<hal.ADSC) == 0 {
		return
	}
	if m.mem[hal.ADCSRB]&0x07 != 0 {
		return
	}
	m.convert()
}

// convert completes one conversion. A free-running conversion leaves ADSC
// set; a single one clears it.
func (m *MCU) convert() {
	mux := m.mem[hal.ADMUX] & 0x0F
	var v uint16
	if int(mux) < len(m.analog) {
		v = m.analog[mux]
	}
	if m.mem[hal.ADMUX]&(1<<hal.ADLAR) != 0 {
		v <<= 6
	}
	m.mem[hal.ADCL] = uint8(v)
	m.mem[hal.ADCH] = uint8(v >> 8)

	s := m.mem[hal.ADCSRA] | 1<<hal.ADIF
	if s&(1<<hal.ADATE) == 0 {
		s &^= 1 << hal.ADSC
	}
	m.mem[hal.ADCSRA] = s
}

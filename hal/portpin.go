package hal

import "periph.io/x/conn/v3/gpio"

// Port identifies one of the three GPIO ports.
type Port uint8

const (
	PortB Port = iota
	PortC
	PortD
)

func (p Port) regs() (pin, ddr, port Addr) {
	switch p {
	case PortC:
		return PINC, DDRC, PORTC
	case PortD:
		return PIND, DDRD, PORTD
	default:
		return PINB, DDRB, PORTB
	}
}

// String returns the datasheet name of the port.
func (p Port) String() string {
	switch p {
	case PortB:
		return "PORTB"
	case PortC:
		return "PORTC"
	case PortD:
		return "PORTD"
	}
	return "PORT?"
}

// PortPin is one bit of a GPIO port. It speaks periph's gpio.Level so the
// same debounce and output code works with host pins.
type PortPin struct {
	Bus  Bus
	Port Port
	Bit  uint8
}

// Pin returns bit of port on bus.
func Pin(b Bus, port Port, bit uint8) PortPin {
	return PortPin{Bus: b, Port: port, Bit: bit & 7}
}

// In makes the pin an input. gpio.PullUp enables the internal pull-up; the
// chip has no pull-down, so anything else leaves the pin floating.
func (p PortPin) In(pull gpio.Pull) {
	_, ddr, port := p.Port.regs()
	R8(p.Bus, ddr).ClearBits(1 << p.Bit)
	if pull == gpio.PullUp {
		R8(p.Bus, port).SetBits(1 << p.Bit)
	} else {
		R8(p.Bus, port).ClearBits(1 << p.Bit)
	}
}

// Out makes the pin an output driving l.
func (p PortPin) Out(l gpio.Level) {
	_, ddr, _ := p.Port.regs()
	R8(p.Bus, ddr).SetBits(1 << p.Bit)
	p.Write(l)
}

// Write drives l without touching the direction.
func (p PortPin) Write(l gpio.Level) {
	_, _, port := p.Port.regs()
	if l == gpio.High {
		R8(p.Bus, port).SetBits(1 << p.Bit)
	} else {
		R8(p.Bus, port).ClearBits(1 << p.Bit)
	}
}

// Toggle inverts the output latch.
func (p PortPin) Toggle() {
	_, _, port := p.Port.regs()
	r := R8(p.Bus, port)
	r.Set(r.Get() ^ 1<<p.Bit)
}

// Read samples the PINx input register.
func (p PortPin) Read() gpio.Level {
	pin, _, _ := p.Port.regs()
	return gpio.Level(R8(p.Bus, pin).HasBits(1 << p.Bit))
}

package timer

// Prescaler is a logical clock divisor request. The zero value selects no
// clock source, which is the only state in which the counter is stopped.
type Prescaler uint16

const (
	PrescalerNone Prescaler = 0
	Prescaler1    Prescaler = 1
	Prescaler8    Prescaler = 8
	Prescaler64   Prescaler = 64
	Prescaler256  Prescaler = 256
	Prescaler1024 Prescaler = 1024

	// DefaultPrescaler replaces any request outside the enumerated set.
	DefaultPrescaler = Prescaler1
)

// prescalerSlot indexes a unit's clock-select table.
func (p Prescaler) slot() (int, bool) {
	switch p {
	case PrescalerNone:
		return 0, true
	case Prescaler1:
		return 1, true
	case Prescaler8:
		return 2, true
	case Prescaler64:
		return 3, true
	case Prescaler256:
		return 4, true
	case Prescaler1024:
		return 5, true
	}
	return 0, false
}

// Valid reports whether p is one of the enumerated requests.
func (p Prescaler) Valid() bool {
	_, ok := p.slot()
	return ok
}

// Divisor is the clock division factor, 0 for PrescalerNone.
func (p Prescaler) Divisor() uint32 {
	return uint32(p)
}

func (p Prescaler) String() string {
	switch p {
	case PrescalerNone:
		return "none"
	case Prescaler1:
		return "clk/1"
	case Prescaler8:
		return "clk/8"
	case Prescaler64:
		return "clk/64"
	case Prescaler256:
		return "clk/256"
	case Prescaler1024:
		return "clk/1024"
	}
	return "invalid"
}

// Normalize returns p when it is valid and DefaultPrescaler otherwise,
// together with ErrInvalidPrescaler in the second case.
func Normalize(p Prescaler) (Prescaler, error) {
	if !p.Valid() {
		return DefaultPrescaler, ErrInvalidPrescaler
	}
	return p, nil
}

// ResolvePrescaler maps a request to the unit's CSn2:0 code. Requests
// outside the enumerated set resolve to the code for DefaultPrescaler and
// return ErrInvalidPrescaler so callers relying on the default do so on
// purpose.
func ResolvePrescaler(u *Unit, p Prescaler) (uint8, error) {
	p, err := Normalize(p)
	i, _ := p.slot()
	return u.clockSelect[i], err
}

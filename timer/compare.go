package timer

// CompareOutput selects what a compare match does to the OCnA pin in the
// non-PWM modes.
type CompareOutput uint8

const (
	Disconnected CompareOutput = iota // normal port operation
	Toggle
	Clear
	Set
)

func (c CompareOutput) String() string {
	switch c {
	case Disconnected:
		return "disconnected"
	case Toggle:
		return "toggle"
	case Clear:
		return "clear"
	case Set:
		return "set"
	}
	return "invalid"
}

// SetCompare replaces the COMnA1:0 field. Unknown modes disconnect the pin
// and return ErrInvalidCompareOutput.
func (d *Driver[T]) SetCompare(c CompareOutput) error {
	var err error
	if c > Set {
		c, err = Disconnected, ErrInvalidCompareOutput
	}
	d.reg(d.unit.tccrA).ReplaceBits(uint8(c), 0x3, comA0)
	return err
}

// Compare reads back the COMnA1:0 field.
func (d *Driver[T]) Compare() CompareOutput {
	return CompareOutput(d.reg(d.unit.tccrA).Get() >> comA0 & 0x3)
}

// Package hal is the register access layer shared by every peripheral
// driver. Drivers never touch memory directly; they go through a Bus so the
// same code runs against the real data space under TinyGo and against the
// simulator on a host.
package hal

// Addr is an address in the AVR data space (registers start at 0x20).
type Addr uint16

// Bus reads and writes single bytes of the data space.
type Bus interface {
	Load(addr Addr) uint8
	Store(addr Addr, value uint8)
}

// Reg8 is one 8-bit register on a bus.
type Reg8 struct {
	Bus  Bus
	Addr Addr
}

// R8 returns the register at addr.
func R8(b Bus, addr Addr) Reg8 {
	return Reg8{Bus: b, Addr: addr}
}

func (r Reg8) Get() uint8 {
	return r.Bus.Load(r.Addr)
}

func (r Reg8) Set(v uint8) {
	r.Bus.Store(r.Addr, v)
}

// SetBits is a read-modify-write. Do not use it on flag registers: writing
// back a set flag clears it.
func (r Reg8) SetBits(mask uint8) {
	r.Set(r.Get() | mask)
}

func (r Reg8) ClearBits(mask uint8) {
	r.Set(r.Get() &^ mask)
}

// ReplaceBits replaces the field mask<<pos with value<<pos.
func (r Reg8) ReplaceBits(value, mask, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | (value&mask)<<pos)
}

// HasBits reports whether any bit of mask is set.
func (r Reg8) HasBits(mask uint8) bool {
	return r.Get()&mask != 0
}

// Reg16 is a 16-bit register pair accessed through the shared TEMP latch.
// Reading the low byte latches the high byte, so Get reads low first.
// Writing the high byte only fills the latch, so Set writes high first.
// Neither sequence is atomic against an interrupt that touches another
// 16-bit register of the same peripheral.
type Reg16 struct {
	Bus Bus
	Lo  Addr
	Hi  Addr
}

// R16 returns the register pair whose low byte lives at lo.
func R16(b Bus, lo Addr) Reg16 {
	return Reg16{Bus: b, Lo: lo, Hi: lo + 1}
}

func (r Reg16) Get() uint16 {
	lo := r.Bus.Load(r.Lo)
	hi := r.Bus.Load(r.Hi)
	return uint16(hi)<<8 | uint16(lo)
}

func (r Reg16) Set(v uint16) {
	r.Bus.Store(r.Hi, uint8(v>>8))
	r.Bus.Store(r.Lo, uint8(v))
}

//go:build tinygo && avr

package hal

import (
	"runtime/volatile"
	"unsafe"
)

// MMIO is the real data space of the running chip.
type MMIO struct{}

// Device is the bus every firmware driver should use.
var Device Bus = MMIO{}

func (MMIO) Load(addr Addr) uint8 {
	return (*volatile.Register8)(unsafe.Pointer(uintptr(addr))).Get()
}

func (MMIO) Store(addr Addr, value uint8) {
	(*volatile.Register8)(unsafe.Pointer(uintptr(addr))).Set(value)
}

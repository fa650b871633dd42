//go:build tinygo

package core

import (
	"runtime/volatile"
	"unsafe"
)

// MMIO is the Bus for code running on the SoC itself: every access is a
// volatile load or store at the physical address.
type MMIO struct{}

func (MMIO) Read8(addr uintptr) uint8 {
	return (*volatile.Register8)(unsafe.Pointer(addr)).Get()
}

func (MMIO) Write8(addr uintptr, value uint8) {
	(*volatile.Register8)(unsafe.Pointer(addr)).Set(value)
}

func (MMIO) Read16(addr uintptr) uint16 {
	return (*volatile.Register16)(unsafe.Pointer(addr)).Get()
}

func (MMIO) Write16(addr uintptr, value uint16) {
	(*volatile.Register16)(unsafe.Pointer(addr)).Set(value)
}

func (MMIO) Read32(addr uintptr) uint32 {
	return (*volatile.Register32)(unsafe.Pointer(addr)).Get()
}

func (MMIO) Write32(addr uintptr, value uint32) {
	(*volatile.Register32)(unsafe.Pointer(addr)).Set(value)
}

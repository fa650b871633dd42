package core

// Width is the access size of a register in bits.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
)

// Mask returns the all-ones value for the width.
func (w Width) Mask() uint32 {
	switch w {
	case Width8:
		return 0xFF
	case Width16:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

// Bus is the abstract register access path that core code uses.
// Platform-specific implementations handle actual hardware access
// (volatile MMIO on the target, /dev/mem or a serial monitor on a host,
// a memory model in tests).
//
// Every access is performed in program order with no caching. An address
// outside the implementation's window is a configuration defect, not a
// runtime condition, so there is no error return.
type Bus interface {
	Read8(addr uintptr) uint8
	Write8(addr uintptr, value uint8)
	Read16(addr uintptr) uint16
	Write16(addr uintptr, value uint16)
	Read32(addr uintptr) uint32
	Write32(addr uintptr, value uint32)
}

// ReadSized reads a register of the given width, widened to 32 bits.
func ReadSized(bus Bus, addr uintptr, w Width) uint32 {
	switch w {
	case Width8:
		return uint32(bus.Read8(addr))
	case Width16:
		return uint32(bus.Read16(addr))
	default:
		return bus.Read32(addr)
	}
}

// WriteSized writes the low bits of value to a register of the given width.
func WriteSized(bus Bus, addr uintptr, w Width, value uint32) {
	switch w {
	case Width8:
		bus.Write8(addr, uint8(value))
	case Width16:
		bus.Write16(addr, uint16(value))
	default:
		bus.Write32(addr, value)
	}
}

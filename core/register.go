package core

// Register names one hardware register inside a block.
type Register struct {
	Name   string
	Offset uintptr
	Width  Width
}

// Field is a named bit range of a register. Mask is already positioned;
// Shift moves a field value into it.
type Field struct {
	Reg   Register
	Mask  uint32
	Shift uint
}

// Block is a typed view over one memory-mapped register region.
// It owns no state; two Blocks with the same bus and base see the same
// hardware.
type Block struct {
	bus  Bus
	base uintptr
}

// NewBlock returns a view of the registers at base.
func NewBlock(bus Bus, base uintptr) Block {
	return Block{bus: bus, base: base}
}

// Base returns the block's base address.
func (b Block) Base() uintptr {
	return b.base
}

// Addr returns the absolute address of r.
func (b Block) Addr(r Register) uintptr {
	return b.base + r.Offset
}

// Read returns the whole register.
func (b Block) Read(r Register) uint32 {
	return ReadSized(b.bus, b.base+r.Offset, r.Width)
}

// Write replaces the whole register. Only for registers that are write-only
// or whose every bit is owned by the caller.
func (b Block) Write(r Register, value uint32) {
	WriteSized(b.bus, b.base+r.Offset, r.Width, value)
}

// ReadField extracts f from its register.
func (b Block) ReadField(f Field) uint32 {
	return (b.Read(f.Reg) & f.Mask) >> f.Shift
}

// WriteField performs reg = (reg &^ mask) | ((value << shift) & mask).
func (b Block) WriteField(f Field, value uint32) {
	reg := b.Read(f.Reg)
	reg = (reg &^ f.Mask) | ((value << f.Shift) & f.Mask)
	b.Write(f.Reg, reg)
}

// SetBits sets every bit of mask in r.
func (b Block) SetBits(r Register, mask uint32) {
	b.WriteField(Field{Reg: r, Mask: mask}, 0xFFFFFFFF)
}

// ClearBits clears every bit of mask in r.
func (b Block) ClearBits(r Register, mask uint32) {
	b.WriteField(Field{Reg: r, Mask: mask}, 0)
}

// HasBits reports whether every bit of mask is set in r.
func (b Block) HasBits(r Register, mask uint32) bool {
	return b.Read(r)&mask == mask
}

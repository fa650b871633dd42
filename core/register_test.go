package core

import "testing"

// MockBus is a byte-addressed memory implementing Bus. It records every
// access so tests can check transaction widths.
type MockBus struct {
	mem    map[uintptr]byte
	widths []Width
	writes int
}

func NewMockBus() *MockBus {
	return &MockBus{mem: make(map[uintptr]byte)}
}

func (m *MockBus) get(addr uintptr, n int) uint32 {
	var v uint32
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint32(m.mem[addr+uintptr(i)])
	}
	return v
}

func (m *MockBus) set(addr uintptr, n int, v uint32) {
	for i := 0; i < n; i++ {
		m.mem[addr+uintptr(i)] = byte(v >> (8 * i))
	}
	m.writes++
}

func (m *MockBus) Read8(addr uintptr) uint8 {
	m.widths = append(m.widths, Width8)
	return uint8(m.get(addr, 1))
}

func (m *MockBus) Write8(addr uintptr, v uint8) {
	m.widths = append(m.widths, Width8)
	m.set(addr, 1, uint32(v))
}

func (m *MockBus) Read16(addr uintptr) uint16 {
	m.widths = append(m.widths, Width16)
	return uint16(m.get(addr, 2))
}

func (m *MockBus) Write16(addr uintptr, v uint16) {
	m.widths = append(m.widths, Width16)
	m.set(addr, 2, uint32(v))
}

func (m *MockBus) Read32(addr uintptr) uint32 {
	m.widths = append(m.widths, Width32)
	return m.get(addr, 4)
}

func (m *MockBus) Write32(addr uintptr, v uint32) {
	m.widths = append(m.widths, Width32)
	m.set(addr, 4, v)
}

var (
	testReg32 = Register{Name: "TEST32", Offset: 0x100, Width: Width32}
	testReg16 = Register{Name: "TEST16", Offset: 0x2C, Width: Width16}
	testReg8  = Register{Name: "TEST8", Offset: 0x29, Width: Width8}
)

func TestWriteFieldPreservesOtherBits(t *testing.T) {
	bus := NewMockBus()
	blk := NewBlock(bus, 0x1000)
	blk.Write(testReg32, 0xFFFFFFFF)

	f := Field{Reg: testReg32, Mask: 0x1F000000, Shift: 24}
	blk.WriteField(f, 0x08)

	if got := blk.Read(testReg32); got != 0xE8FFFFFF {
		t.Errorf("Expected 0xE8FFFFFF, got 0x%08X", got)
	}
	if got := blk.ReadField(f); got != 0x08 {
		t.Errorf("Expected field 0x08, got 0x%X", got)
	}
}

func TestWriteFieldTruncatesValue(t *testing.T) {
	bus := NewMockBus()
	blk := NewBlock(bus, 0)

	f := Field{Reg: testReg32, Mask: 0x7F00, Shift: 8}
	blk.WriteField(f, 0x1FF)

	if got := blk.Read(testReg32); got != 0x7F00 {
		t.Errorf("Expected value masked to 0x7F00, got 0x%X", got)
	}
}

func TestSetClearHasBits(t *testing.T) {
	bus := NewMockBus()
	blk := NewBlock(bus, 0x2000)

	blk.SetBits(testReg16, 0x0005)
	if !blk.HasBits(testReg16, 0x0005) {
		t.Error("Expected bits 0x5 set")
	}
	blk.ClearBits(testReg16, 0x0001)
	if got := blk.Read(testReg16); got != 0x0004 {
		t.Errorf("Expected 0x0004, got 0x%04X", got)
	}
	if blk.HasBits(testReg16, 0x0005) {
		t.Error("Expected HasBits false once a bit is clear")
	}
}

func TestSizedAccess(t *testing.T) {
	bus := NewMockBus()
	blk := NewBlock(bus, 0x3000)

	blk.Write(testReg32, 0)
	blk.SetBits(testReg8, 0xFF)
	blk.SetBits(testReg16, 0x1234)

	for i, w := range bus.widths[1:3] {
		if w != Width8 {
			t.Errorf("Access %d: expected 8-bit, got %d", i, w)
		}
	}
	// neighbours of the 8-bit register are untouched
	if bus.mem[0x3028] != 0 || bus.mem[0x302A] != 0 {
		t.Error("8-bit write leaked into neighbouring bytes")
	}
	if got := blk.Read(testReg16); got != 0x1234 {
		t.Errorf("Expected 0x1234, got 0x%04X", got)
	}
	if got := blk.Addr(testReg16); got != 0x302C {
		t.Errorf("Expected address 0x302C, got 0x%X", got)
	}
}

func TestWidthMask(t *testing.T) {
	tests := []struct {
		w    Width
		want uint32
	}{
		{Width8, 0xFF},
		{Width16, 0xFFFF},
		{Width32, 0xFFFFFFFF},
	}
	for _, tt := range tests {
		if got := tt.w.Mask(); got != tt.want {
			t.Errorf("Width %d: expected 0x%X, got 0x%X", tt.w, tt.want, got)
		}
	}
}

func TestWriteSizedTruncates(t *testing.T) {
	bus := NewMockBus()
	WriteSized(bus, 0x10, Width8, 0x1FF)
	if got := ReadSized(bus, 0x10, Width32); got != 0xFF {
		t.Errorf("Expected 0xFF, got 0x%X", got)
	}
}

//go:build linux

package devmem

import (
	"strings"
	"testing"

	"mmcinit/core"
	"mmcinit/sdmmc"
	"mmcinit/tegra"
)

// memBus returns a Bus whose windows are plain slices.
func memBus(base uintptr, size int) *Bus {
	b := &Bus{fd: -1}
	b.attach(base, make([]byte, size), false)
	return b
}

func TestPageSpan(t *testing.T) {
	tests := []struct {
		base, size    uintptr
		start, length uintptr
	}{
		{0x60006000, 0x1000, 0x60006000, 0x1000},
		{0x60005010, 4, 0x60005000, 0x1000},
		{0x70000AB4, 4, 0x70000000, 0x1000},
		{0x700B0000, 0x800, 0x700B0000, 0x1000},
		{0x60006FFE, 4, 0x60006000, 0x2000},
	}
	for _, tt := range tests {
		start, length := pageSpan(tt.base, tt.size, 0x1000)
		if start != tt.start || length != tt.length {
			t.Errorf("pageSpan(0x%x, 0x%x): expected 0x%x+0x%x, got 0x%x+0x%x",
				tt.base, tt.size, tt.start, tt.length, start, length)
		}
	}
}

func TestBusAccess(t *testing.T) {
	b := memBus(0x700B0000, 0x1000)

	b.Write32(0x700B0100, 0xA1B2C3D4)
	if got := b.Read8(0x700B0100); got != 0xD4 {
		t.Errorf("Expected low byte 0xD4, got 0x%02X", got)
	}
	if got := b.Read16(0x700B0102); got != 0xA1B2 {
		t.Errorf("Expected high half 0xA1B2, got 0x%04X", got)
	}
	b.Write16(0x700B0100, 0x1234)
	b.Write8(0x700B0103, 0xFF)
	if got := b.Read32(0x700B0100); got != 0xFFB21234 {
		t.Errorf("Expected 0xFFB21234, got 0x%08X", got)
	}

	blk := core.NewBlock(b, sdmmc.SDMMC1.Base())
	blk.SetBits(sdmmc.RegClockControl, 0x1)
	if !blk.HasBits(sdmmc.RegClockControl, 0x1) {
		t.Errorf("Expected register model to work over the window")
	}
}

func expectPanic(t *testing.T, substr string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("Expected panic containing %q", substr)
		}
		if msg, _ := r.(string); !strings.Contains(msg, substr) {
			t.Errorf("Expected panic containing %q, got %v", substr, r)
		}
	}()
	fn()
}

func TestBusUnmappedAndMisaligned(t *testing.T) {
	b := memBus(0x1000, 0x100)

	expectPanic(t, "not mapped", func() { b.Read32(0x2000) })
	expectPanic(t, "not mapped", func() { b.Read32(0x1100) })
	expectPanic(t, "misaligned", func() { b.Write16(0x1001, 0) })
}

func TestSoCWindowsCoverSequencer(t *testing.T) {
	b := &Bus{fd: -1}
	for _, w := range SoCWindows() {
		start, length := pageSpan(w[0], w[1], 0x1000)
		b.attach(start, make([]byte, length), false)
	}

	// every block the sequencer reaches must resolve without panicking
	b.Read32(tegra.CARBase + 0x300)
	b.Read32(tegra.TimerUSBase)
	b.Read32(sdmmc.APBMiscBase + sdmmc.RegEMMC4PadCfgPadCtrl.Offset)
	b.Read32(sdmmc.SDMMC4.Base() + sdmmc.RegCapabilities.Offset)

	if err := b.Close(); err != nil {
		t.Errorf("Expected clean close of borrowed windows, got %v", err)
	}
}

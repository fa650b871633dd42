package sim

import (
	"errors"
	"testing"

	"mmcinit/core"
	"mmcinit/sdmmc"
)

func TestBusByteLanes(t *testing.T) {
	bus := NewBus()
	bus.Write32(0x28, 0x11223344)
	bus.Write8(0x29, 0xAA)
	bus.Write16(0x2A, 0xBEEF)

	if got := bus.Read32(0x28); got != 0xBEEFAA44 {
		t.Errorf("Expected 0xBEEFAA44, got 0x%08X", got)
	}
	if got := bus.Read8(0x28); got != 0x44 {
		t.Errorf("Expected 0x44, got 0x%02X", got)
	}
	if got := bus.Read16(0x2A); got != 0xBEEF {
		t.Errorf("Expected 0xBEEF, got 0x%04X", got)
	}
}

func TestBusTraceCollapsesPolls(t *testing.T) {
	bus := NewBus()
	for i := 0; i < 100; i++ {
		bus.Read32(0x1EC)
	}
	bus.Write32(0x1EC, 1)
	bus.Read32(0x1EC)

	trace := bus.Trace()
	if len(trace) != 3 {
		t.Fatalf("Expected 3 trace entries, got %d", len(trace))
	}
	if trace[0].Repeat != 100 {
		t.Errorf("Expected first entry to repeat 100 times, got %d", trace[0].Repeat)
	}
	if trace[1].Op != OpWrite || trace[1].Value != 1 {
		t.Errorf("Expected write of 1, got %+v", trace[1])
	}

	bus.ResetTrace()
	if len(bus.Trace()) != 0 {
		t.Error("Expected empty trace after reset")
	}
}

func TestBusHooksAndPoke(t *testing.T) {
	bus := NewBus()
	reads := 0
	bus.OnRead(0x100, func() {
		reads++
		bus.Poke(0x100, core.Width32, uint32(reads))
	})
	var written []uint32
	bus.OnWrite(0x104, func(v uint32) { written = append(written, v) })

	if got := bus.Read32(0x100); got != 1 {
		t.Errorf("Expected hook value 1, got %d", got)
	}
	if got := bus.Peek(0x100, core.Width32); got != 1 || reads != 1 {
		t.Errorf("Expected Peek to bypass the hook, got %d after %d reads", got, reads)
	}

	bus.Write16(0x104, 0x1234)
	bus.Poke(0x104, core.Width16, 0x5678)
	if len(written) != 1 || written[0] != 0x1234 {
		t.Errorf("Expected one hooked write of 0x1234, got %v", written)
	}
	if n := bus.Touched(0x104, 0x108); n != 1 {
		t.Errorf("Expected 1 traced access, got %d", n)
	}
}

func TestBusClear(t *testing.T) {
	bus := NewBus()
	bus.Poke(0x10, core.Width32, 1)
	bus.Poke(0x20, core.Width32, 2)
	bus.Clear(0x10, 0x20)
	if bus.Peek(0x10, core.Width32) != 0 || bus.Peek(0x20, core.Width32) != 2 {
		t.Error("Clear must zero [lo, hi) only")
	}
}

func TestClockStep(t *testing.T) {
	clk := NewClock(0)
	a := clk.Now()
	b := clk.Now()
	if b-a != 1 {
		t.Errorf("Expected zero step to be treated as 1, got %d", b-a)
	}

	clk.Set(0xFFFFFFFE)
	start := clk.Peek()
	clk.Advance(10)
	if got := clk.ElapsedSince(start); got != 11 {
		t.Errorf("Expected 11 across the wrap, got %d", got)
	}
}

func TestSDMMCModelResetRestoresDefaults(t *testing.T) {
	b := NewBoard(10)
	base := sdmmc.SDMMC4.Base()
	b.Bus.Poke(base+sdmmc.RegHostControl.Offset, core.Width8, 0xFF)

	b.CAR.AssertReset(sdmmc.SDMMC4.Peripheral())

	if got := b.Bus.Peek(base+sdmmc.RegHostControl.Offset, core.Width8); got != 0 {
		t.Errorf("Expected HOST_CONTROL reset to 0, got 0x%x", got)
	}
	if got := b.Bus.Peek(base+sdmmc.RegCapabilities.Offset, core.Width32); got != DefaultCapabilities {
		t.Errorf("Expected default capabilities, got 0x%x", got)
	}
	if b.Controllers[sdmmc.SDMMC4].Resets() != 1 {
		t.Errorf("Expected 1 reset, got %d", b.Controllers[sdmmc.SDMMC4].Resets())
	}
	if b.Controllers[sdmmc.SDMMC1].Resets() != 0 {
		t.Error("Expected SDMMC1 unaffected by SDMMC4 reset")
	}
}

func TestSDMMCModelClockStable(t *testing.T) {
	b := NewBoard(10)
	h := b.Handle(sdmmc.SDMMC1)
	regs := h.Regs()

	regs.SetBits(sdmmc.RegClockControl, sdmmc.ClockIntEnable)
	if !regs.HasBits(sdmmc.RegClockControl, sdmmc.ClockIntStable) {
		t.Error("Expected INT_STABLE after INT_EN")
	}

	b.Inject(sdmmc.SDMMC1, Faults{ClockUnstable: true})
	regs.SetBits(sdmmc.RegClockControl, sdmmc.ClockIntEnable)
	if regs.HasBits(sdmmc.RegClockControl, sdmmc.ClockIntStable) {
		t.Error("Expected INT_STABLE to stay clear with ClockUnstable")
	}
}

func TestSDMMCModelCalibration(t *testing.T) {
	b := NewBoard(10)
	b.Inject(sdmmc.SDMMC4, Faults{AutoCalStuck: true, DLLFinalizeStuck: true})
	regs := b.Handle(sdmmc.SDMMC4).Regs()

	regs.SetBits(sdmmc.RegAutoCalConfig, sdmmc.AutoCalStart|sdmmc.AutoCalEnable)
	if !regs.HasBits(sdmmc.RegAutoCalStatus, sdmmc.AutoCalActive) {
		t.Error("Expected auto-cal to stay active")
	}
	if regs.HasBits(sdmmc.RegAutoCalConfig, sdmmc.AutoCalStart) {
		t.Error("Expected AUTO_CAL_START to self-clear")
	}

	regs.SetBits(sdmmc.RegVendorDLLCalCfg, sdmmc.DLLCalCalibrate)
	if regs.HasBits(sdmmc.RegVendorDLLCalCfg, sdmmc.DLLCalCalibrate) {
		t.Error("Expected CALIBRATE to self-clear")
	}
	if !regs.HasBits(sdmmc.RegVendorDLLCalSta, sdmmc.DLLCalActive) {
		t.Error("Expected DLL finalize to stay active")
	}
}

func TestParseFaults(t *testing.T) {
	f, err := ParseFaults("autocal-stuck", " No-64bit ", "")
	if err != nil {
		t.Fatalf("ParseFaults failed: %v", err)
	}
	if !f.AutoCalStuck || !f.No64Bit || f.ClockUnstable {
		t.Errorf("Unexpected fault set %+v", f)
	}

	if _, err := ParseFaults("melted"); !errors.Is(err, ErrUnknownFault) {
		t.Errorf("Expected ErrUnknownFault, got %v", err)
	}

	names := FaultNames()
	if len(names) != 5 || names[0] != "autocal-stuck" {
		t.Errorf("Unexpected fault names %v", names)
	}
}

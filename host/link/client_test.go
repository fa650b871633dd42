package link

import (
	"errors"
	"net"
	"strings"
	"testing"

	"mmcinit/core"
	"mmcinit/monitor"
	"mmcinit/sdmmc"
	"mmcinit/sim"
	"mmcinit/tegra"
)

func connect(t *testing.T, b *sim.Board) (*Client, net.Conn) {
	t.Helper()
	host, target := net.Pipe()
	srv := monitor.NewServer(b.Bus, b.CAR, b.Timer(), nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(target) }()

	c := NewClient(host)
	t.Cleanup(func() {
		c.Close()
		target.Close()
		<-done
	})
	return c, target
}

func TestClientIdentify(t *testing.T) {
	c, _ := connect(t, sim.NewBoard(25))

	text, err := c.Identify()
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if !strings.HasPrefix(text, "version mmcinit-link-1\n") {
		t.Errorf("Expected version line first, got %q", text)
	}
	if !strings.Contains(text, "\nmmc_bringup controller=%c") {
		t.Errorf("Expected mmc_bringup in dictionary, got %q", text)
	}
}

func TestClientBus(t *testing.T) {
	b := sim.NewBoard(25)
	c, _ := connect(t, b)

	c.Write32(0x2000, 0xCAFEF00D)
	if got := b.Bus.Peek(0x2000, core.Width32); got != 0xCAFEF00D {
		t.Errorf("Expected 0xCAFEF00D on the target, got 0x%08X", got)
	}
	if got := c.Read16(0x2002); got != 0xCAFE {
		t.Errorf("Expected 0xCAFE, got 0x%04X", got)
	}
	c.Write8(0x2001, 0x12)
	if got := c.Read32(0x2000); got != 0xCAFE120D {
		t.Errorf("Expected 0xCAFE120D, got 0x%08X", got)
	}
	if err := c.Err(); err != nil {
		t.Errorf("Expected no link error, got %v", err)
	}
}

func TestClientClock(t *testing.T) {
	c, _ := connect(t, sim.NewBoard(25))

	start := c.Now()
	if e := c.ElapsedSince(start); e == 0 || e > 1000 {
		t.Errorf("Expected a small positive elapsed time, got %d", e)
	}
}

func TestClientRemoteBringUp(t *testing.T) {
	b := sim.NewBoard(25)
	c, _ := connect(t, b)
	sink := &core.RecordingSink{}

	res, err := c.BringUp(sdmmc.SDMMC4, sdmmc.DefaultConfig(sdmmc.SDMMC4), sink)
	if err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	if !res.Ready() {
		t.Fatalf("Expected ready, got %s at %s", res.Status, res.Stage)
	}
	if len(res.Timings) != 10 {
		t.Errorf("Expected 10 timings, got %d", len(res.Timings))
	}
	if res.Summary.Capabilities != sim.DefaultCapabilities {
		t.Errorf("Expected caps 0x%08X, got 0x%08X", sim.DefaultCapabilities, res.Summary.Capabilities)
	}
	if res.Summary.BusWidth != 8 {
		t.Errorf("Expected 8-bit summary, got %+v", res.Summary)
	}
	if src := sink.Entries()[0].Source; src != "eMMC" {
		t.Errorf("Expected source eMMC, got %q", src)
	}
	if sink.Count("initialized in") != 1 {
		t.Errorf("Expected completion message to be replayed")
	}
	if b.Controllers[sdmmc.SDMMC4].Resets() != 1 {
		t.Errorf("Expected the target controller to be reset once")
	}
}

func TestClientRemoteBringUpFailure(t *testing.T) {
	b := sim.NewBoard(100)
	b.Inject(sdmmc.SDMMC1, sim.Faults{ClockUnstable: true})
	c, _ := connect(t, b)

	res, err := c.BringUp(sdmmc.SDMMC1, sdmmc.DefaultConfig(sdmmc.SDMMC1), nil)
	if err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	if res.Ready() || res.Stage != sdmmc.StageClockStabilization {
		t.Errorf("Expected failure at clock-stabilization, got %s at %s", res.Status, res.Stage)
	}
	if !errors.Is(res.Err(), sdmmc.ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", res.Err())
	}
	last := res.Timings[len(res.Timings)-1]
	if !last.Failed || last.Stage != sdmmc.StageClockStabilization {
		t.Errorf("Expected last timing to be the failed clock stage, got %+v", last)
	}
}

func TestClientRejected(t *testing.T) {
	c, _ := connect(t, sim.NewBoard(25))

	cfg := sdmmc.DefaultConfig(sdmmc.SDMMC1)
	cfg.BusWidth = 3
	if _, err := c.BringUp(sdmmc.SDMMC1, cfg, nil); !errors.Is(err, ErrRejected) {
		t.Errorf("Expected ErrRejected, got %v", err)
	}
}

func TestClientDrivesSequencer(t *testing.T) {
	b := sim.NewBoard(250)
	c, _ := connect(t, b)

	h := sdmmc.NewHandle(c, sdmmc.SDMMC4)
	res := sdmmc.BringUp(h, sdmmc.DefaultConfig(sdmmc.SDMMC4), tegra.NewCAR(c), c, nil)
	if err := c.Err(); err != nil {
		t.Fatalf("Expected no link error, got %v", err)
	}
	if !res.Ready() {
		t.Fatalf("Expected ready, got %v", res.Err())
	}
	addr := sdmmc.SDMMC4.Base() + sdmmc.RegClockControl.Offset
	if got := b.Bus.Peek(addr, core.Width16); got != 0x07 {
		t.Errorf("Expected CLOCK_CONTROL 0x07 on the target, got 0x%04X", got)
	}
}

func TestClientStickyError(t *testing.T) {
	c, target := connect(t, sim.NewBoard(25))
	target.Close()

	if got := c.Read32(0x1000); got != 0 {
		t.Errorf("Expected 0 from a dead link, got 0x%X", got)
	}
	first := c.Err()
	if first == nil {
		t.Fatalf("Expected a link error")
	}
	c.Write32(0x1000, 1)
	if c.Err() != first {
		t.Errorf("Expected the first error to stick, got %v", c.Err())
	}
	if e := c.ElapsedSince(0); e != ^uint32(0) {
		t.Errorf("Expected elapsed to saturate, got %d", e)
	}

	c.ClearErr()
	if c.Err() != nil {
		t.Errorf("Expected ClearErr to reset the error")
	}
}

func TestFirstDiff(t *testing.T) {
	tests := []struct {
		want, got string
		expected  string
	}{
		{"a\nb\n", "a\nc\n", `line 2: host "b", target "c"`},
		{"a\nb\nc", "a\nb", `target is missing "c"`},
		{"a", "a\nz", `target has extra "z"`},
	}
	for _, tt := range tests {
		if got := firstDiff(tt.want, tt.got); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}

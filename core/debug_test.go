package core

import (
	"sync"
	"testing"
)

func TestWriterSinkFormat(t *testing.T) {
	var lines []string
	sink := NewWriterSink(func(s string) { lines = append(lines, s) })

	sink.Emit("eMMC", "clock stabilized.")

	if len(lines) != 1 || lines[0] != "eMMC: clock stabilized." {
		t.Errorf("Expected 'eMMC: clock stabilized.', got %v", lines)
	}
}

func TestPlatformSinkHonoursEnable(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})
	defer SetDebugEnabled(true)

	sink := PlatformSink()
	sink.Emit("eMMC", "one")
	SetDebugEnabled(false)
	sink.Emit("eMMC", "two")

	if len(lines) != 1 {
		t.Errorf("Expected 1 line while enabled, got %d", len(lines))
	}
}

func TestAsyncSinkDrains(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	sink := NewAsyncSink(func(s string) {
		mu.Lock()
		lines = append(lines, s)
		mu.Unlock()
	}, 64)

	for i := 0; i < 10; i++ {
		sink.Emit("eMMC", "line "+Itoa(i))
	}
	sink.Close()

	if len(lines) != 10 {
		t.Fatalf("Expected 10 lines, got %d", len(lines))
	}
	if lines[9] != "eMMC: line 9" {
		t.Errorf("Expected ordered output, last line was %q", lines[9])
	}
	if sink.Dropped() != 0 {
		t.Errorf("Expected no drops, got %d", sink.Dropped())
	}

	// emits after close are ignored
	sink.Emit("eMMC", "late")
	if len(lines) != 10 {
		t.Errorf("Expected late emit to be ignored")
	}
}

func TestAsyncSinkDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	sink := NewAsyncSink(func(string) { <-release }, 1)

	for i := 0; i < 20; i++ {
		sink.Emit("eMMC", "x")
	}
	close(release)
	sink.Close()

	// the worker holds at most one line and the queue one more
	if sink.Dropped() < 18 {
		t.Errorf("Expected at least 18 drops, got %d", sink.Dropped())
	}
}

func TestRecordingSink(t *testing.T) {
	rec := &RecordingSink{}
	rec.Emit("eMMC", "autocal timed out after 10010 us")
	rec.Emit("eMMC", "clock stabilized.")
	rec.Emit("microSD", "internal clock timed out after 2000010 us")

	if rec.Count("timed out") != 2 {
		t.Errorf("Expected 2 timeout messages, got %d", rec.Count("timed out"))
	}
	if rec.Count("") != 3 {
		t.Errorf("Expected empty substring to match all, got %d", rec.Count(""))
	}

	var out []string
	rec.Dump(func(s string) { out = append(out, s) })
	if out[2] != "microSD: internal clock timed out after 2000010 us" {
		t.Errorf("Unexpected dump line %q", out[2])
	}
}

func TestStringHelpers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Itoa(0), "0"},
		{Itoa(-42), "-42"},
		{Utoa(4294967295), "4294967295"},
		{Hex32(0x10000000), "0x10000000"},
		{Hex32(0x376CD08C), "0x376cd08c"},
		{Hex32(0), "0x00000000"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, tt.got)
		}
	}
	if !contains("sdmmc4 timed out", "timed") || contains("abc", "abcd") {
		t.Error("contains gave the wrong answer")
	}
}

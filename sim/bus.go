// Package sim is a register-level model of the parts of the SoC that
// controller bring-up touches. It backs tests and the host CLI's sim
// command.
package sim

import (
	"sync"

	"mmcinit/core"
)

// Op is the direction of a bus access.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
)

func (o Op) String() string {
	if o == OpWrite {
		return "W"
	}
	return "R"
}

// Access is one traced bus transaction. Consecutive identical reads (a poll
// loop seeing the same value) collapse into one Access with Repeat > 1.
type Access struct {
	Op     Op
	Addr   uintptr
	Width  core.Width
	Value  uint32
	Repeat uint32
}

// Bus is a memory-backed core.Bus. Storage is kept as aligned 32-bit words;
// 8- and 16-bit accesses act on their byte lanes so neighbouring registers
// in the same word are preserved.
//
// Hooks let a model react to accesses: a read hook runs before the value is
// sampled, a write hook after the value is stored. Hooks may use Peek and
// Poke, which bypass hooks and the trace.
type Bus struct {
	mu         sync.Mutex
	words      map[uintptr]uint32
	trace      []Access
	readHooks  map[uintptr][]func()
	writeHooks map[uintptr][]func(value uint32)
}

// NewBus returns an empty bus. Unwritten addresses read as zero.
func NewBus() *Bus {
	return &Bus{
		words:      make(map[uintptr]uint32),
		readHooks:  make(map[uintptr][]func()),
		writeHooks: make(map[uintptr][]func(uint32)),
	}
}

func lane(addr uintptr) (word uintptr, shift uint) {
	return addr &^ 3, uint(addr&3) * 8
}

func (b *Bus) load(addr uintptr, w core.Width) uint32 {
	word, shift := lane(addr)
	return (b.words[word] >> shift) & w.Mask()
}

func (b *Bus) store(addr uintptr, w core.Width, value uint32) {
	word, shift := lane(addr)
	mask := w.Mask() << shift
	b.words[word] = (b.words[word] &^ mask) | ((value << shift) & mask)
}

func (b *Bus) record(a Access) {
	if n := len(b.trace); n > 0 && a.Op == OpRead {
		last := &b.trace[n-1]
		if last.Op == OpRead && last.Addr == a.Addr && last.Width == a.Width && last.Value == a.Value {
			last.Repeat++
			return
		}
	}
	a.Repeat = 1
	b.trace = append(b.trace, a)
}

func (b *Bus) read(addr uintptr, w core.Width) uint32 {
	b.mu.Lock()
	hooks := b.readHooks[addr]
	b.mu.Unlock()
	for _, h := range hooks {
		h()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.load(addr, w)
	b.record(Access{Op: OpRead, Addr: addr, Width: w, Value: v})
	return v
}

func (b *Bus) write(addr uintptr, w core.Width, value uint32) {
	value &= w.Mask()
	b.mu.Lock()
	b.store(addr, w, value)
	b.record(Access{Op: OpWrite, Addr: addr, Width: w, Value: value})
	hooks := b.writeHooks[addr]
	b.mu.Unlock()
	for _, h := range hooks {
		h(value)
	}
}

func (b *Bus) Read8(addr uintptr) uint8           { return uint8(b.read(addr, core.Width8)) }
func (b *Bus) Write8(addr uintptr, value uint8)   { b.write(addr, core.Width8, uint32(value)) }
func (b *Bus) Read16(addr uintptr) uint16         { return uint16(b.read(addr, core.Width16)) }
func (b *Bus) Write16(addr uintptr, value uint16) { b.write(addr, core.Width16, uint32(value)) }
func (b *Bus) Read32(addr uintptr) uint32         { return b.read(addr, core.Width32) }
func (b *Bus) Write32(addr uintptr, value uint32) { b.write(addr, core.Width32, value) }

// Peek reads without running hooks or tracing.
func (b *Bus) Peek(addr uintptr, w core.Width) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(addr, w)
}

// Poke writes without running hooks or tracing.
func (b *Bus) Poke(addr uintptr, w core.Width, value uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store(addr, w, value)
}

// Clear zeroes every word in [lo, hi).
func (b *Bus) Clear(lo, hi uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for addr := range b.words {
		if addr >= lo && addr < hi {
			delete(b.words, addr)
		}
	}
}

// OnRead registers fn to run before every traced read of addr.
func (b *Bus) OnRead(addr uintptr, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readHooks[addr] = append(b.readHooks[addr], fn)
}

// OnWrite registers fn to run after every traced write of addr.
func (b *Bus) OnWrite(addr uintptr, fn func(value uint32)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeHooks[addr] = append(b.writeHooks[addr], fn)
}

// Trace returns a copy of the recorded transactions.
func (b *Bus) Trace() []Access {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Access, len(b.trace))
	copy(out, b.trace)
	return out
}

// ResetTrace drops the recorded transactions.
func (b *Bus) ResetTrace() {
	b.mu.Lock()
	b.trace = nil
	b.mu.Unlock()
}

// Writes returns every value written to addr, in order.
func (b *Bus) Writes(addr uintptr) []uint32 {
	var out []uint32
	for _, a := range b.Trace() {
		if a.Op == OpWrite && a.Addr == addr {
			out = append(out, a.Value)
		}
	}
	return out
}

// Touched counts traced transactions (of either direction) that hit
// [lo, hi). Collapsed reads count once.
func (b *Bus) Touched(lo, hi uintptr) int {
	n := 0
	for _, a := range b.Trace() {
		if a.Addr >= lo && a.Addr < hi {
			n++
		}
	}
	return n
}

//go:build linux

// Package devmem is a core.Bus over /dev/mem, for running the sequencer
// directly on a Linux system that owns the SoC (an L4T userspace with the
// SDMMC driver unbound).
package devmem

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"mmcinit/core"
	"mmcinit/sdmmc"
	"mmcinit/tegra"
)

// DefaultPath is the physical memory device.
const DefaultPath = "/dev/mem"

// Bus accesses physical registers through mmap'd windows. Every address used
// must fall inside a window added with Map.
type Bus struct {
	mu      sync.RWMutex
	fd      int
	windows []window
}

type window struct {
	base uintptr
	mem  []byte
	own  bool // unmapped on Close
}

// Open opens path for synchronous read-write access. No window is mapped
// yet.
func Open(path string) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Bus{fd: fd}, nil
}

// OpenSoC opens path and maps every block the sequencer touches: the CAR,
// TIMERUS, the APB_MISC pad registers and all four SDMMC controllers.
func OpenSoC(path string) (*Bus, error) {
	b, err := Open(path)
	if err != nil {
		return nil, err
	}
	for _, w := range SoCWindows() {
		if err := b.Map(w[0], w[1]); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

// SoCWindows lists the {base, size} ranges OpenSoC maps.
func SoCWindows() [][2]uintptr {
	return [][2]uintptr{
		{tegra.CARBase, 0x1000},
		{tegra.TimerUSBase, 4},
		{sdmmc.APBMiscBase + sdmmc.RegEMMC4PadCfgPadCtrl.Offset, 4},
		{sdmmc.BlockBase, sdmmc.NumControllers * sdmmc.BlockStride},
	}
}

// Map makes [base, base+size) accessible. The range is widened to whole
// pages.
func (b *Bus) Map(base, size uintptr) error {
	start, length := pageSpan(base, size, uintptr(os.Getpagesize()))
	mem, err := unix.Mmap(b.fd, int64(start), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap 0x%08x+0x%x: %w", start, length, err)
	}
	b.attach(start, mem, true)
	return nil
}

func (b *Bus) attach(base uintptr, mem []byte, own bool) {
	b.mu.Lock()
	b.windows = append(b.windows, window{base: base, mem: mem, own: own})
	b.mu.Unlock()
}

// Close unmaps every window and closes the device.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	for _, w := range b.windows {
		if !w.own {
			continue
		}
		if err := unix.Munmap(w.mem); err != nil && first == nil {
			first = err
		}
	}
	b.windows = nil
	if b.fd >= 0 {
		if err := unix.Close(b.fd); err != nil && first == nil {
			first = err
		}
		b.fd = -1
	}
	return first
}

// pageSpan rounds [base, base+size) out to page boundaries.
func pageSpan(base, size, page uintptr) (start, length uintptr) {
	start = base &^ (page - 1)
	end := (base + size + page - 1) &^ (page - 1)
	return start, end - start
}

// ptr returns a pointer to the n bytes at addr. An unmapped or misaligned
// address is a setup error and panics.
func (b *Bus) ptr(addr uintptr, n uintptr) unsafe.Pointer {
	if addr%n != 0 {
		panic(fmt.Sprintf("devmem: misaligned %d-byte access at 0x%08x", n, addr))
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, w := range b.windows {
		if addr >= w.base && addr+n <= w.base+uintptr(len(w.mem)) {
			return unsafe.Pointer(&w.mem[addr-w.base])
		}
	}
	panic(fmt.Sprintf("devmem: 0x%08x is not mapped", addr))
}

func (b *Bus) Read8(addr uintptr) uint8 {
	return *(*uint8)(b.ptr(addr, 1))
}

func (b *Bus) Write8(addr uintptr, value uint8) {
	*(*uint8)(b.ptr(addr, 1)) = value
}

func (b *Bus) Read16(addr uintptr) uint16 {
	return *(*uint16)(b.ptr(addr, 2))
}

func (b *Bus) Write16(addr uintptr, value uint16) {
	*(*uint16)(b.ptr(addr, 2)) = value
}

// 32-bit accesses go through sync/atomic so the compiler issues exactly one
// full-width load or store.

func (b *Bus) Read32(addr uintptr) uint32 {
	return atomic.LoadUint32((*uint32)(b.ptr(addr, 4)))
}

func (b *Bus) Write32(addr uintptr, value uint32) {
	atomic.StoreUint32((*uint32)(b.ptr(addr, 4)), value)
}

var _ core.Bus = (*Bus)(nil)

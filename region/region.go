// Package region implements the executable code region: a single
// mmap'd pool of RWX (or alternately-protected W^X) pages that holds
// every translated block's host machine code. Blocks are carved out
// with a simple bump allocator, without per-allocation bookkeeping;
// the pool is never individually freed per-block, only reset
// wholesale when it fills up. The mmap/mprotect mechanics go through golang.org/x/sys/unix the same way
// guestmem.Space uses it for the guest address space.
package region

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lookbusy1344/arm64jit/rtlog"
)

// Default, minimum and maximum region sizes in bytes.
const (
	DefaultSize = 16 << 20
	MinSize     = 1 << 20
	MaxSize     = 256 << 20

	// pageAlign is the required alignment for the region base.
	pageAlign = 4096

	// blockAlign is the alignment every individual allocation is rounded
	// up to, so that block starts never straddle a cache line awkwardly.
	blockAlign = 16
)

// Stats is the read-only debug/statistics snapshot.
type Stats struct {
	Base       uintptr
	Capacity   int
	Used       int
	Free       int
	BlockCount int
	Resets     uint64
}

// Region is a single mmap'd executable pool with bump allocation.
type Region struct {
	mem        []byte
	base       uintptr
	used       int
	blockCount int
	resets     uint64

	// writable tracks whether the pool currently has PROT_WRITE, for
	// the W^X toggle Finalize/BeginWrite perform.
	writable bool
}

// New mmaps a region of the given size (clamped to [MinSize,MaxSize]
// and rounded up to a page boundary) with RWX protection initially, so
// that callers who don't need strict W^X can write and execute without
// extra syscalls; callers that do want W^X call BeginWrite/Finalize
// around each block's translation.
func New(size int) (*Region, error) {
	if size < MinSize {
		size = MinSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	size = alignUp(size, pageAlign)

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("region: mmap %d bytes: %w", size, err)
	}
	return &Region{mem: mem, base: baseAddr(mem), writable: true}, nil
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}

// baseAddr recovers the host virtual address backing an mmap'd slice,
// for reporting in Stats and for the dispatcher to compute absolute
// jump targets from bump-allocator offsets.
func baseAddr(mem []byte) uintptr {
	if len(mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&mem[0]))
}

// Alloc bump-allocates n bytes (rounded up to blockAlign) and returns a
// slice of the region's backing memory for the caller (codebuf.New) to
// write into. It returns ok=false when the request would overflow the
// region; the caller is expected to Reset and retry.
func (r *Region) Alloc(n int) (mem []byte, hostAddr uintptr, ok bool) {
	aligned := alignUp(n, blockAlign)
	if r.used+aligned > len(r.mem) {
		return nil, 0, false
	}
	start := r.used
	r.used += aligned
	r.blockCount++
	return r.mem[start : start+n : start+aligned], r.base + uintptr(start), true
}

// Reset discards every allocation, rewinding the bump pointer to zero.
// A region reset implies a full translation-cache flush: the caller
// must invalidate every cache.Cache entry that pointed into this
// region before relying on Reset's freed space.
func (r *Region) Reset() {
	rtlog.Printf("region reset: dropping %d blocks, %d bytes", r.blockCount, r.used)
	r.used = 0
	r.blockCount = 0
	r.resets++
}

// BeginWrite ensures the region is writable, for callers enforcing
// strict W^X instead of relying on the default RWX mapping.
func (r *Region) BeginWrite() error {
	if r.writable {
		return nil
	}
	if err := unix.Mprotect(r.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("region: mprotect rw: %w", err)
	}
	r.writable = true
	return nil
}

// Finalize makes the region executable-only (PROT_READ|PROT_EXEC),
// then invalidates the host instruction cache over the whole mapping
// so the CPU does not execute stale fetched bytes for code just
// written. On amd64 this is a no-op beyond the
// mprotect: x86 keeps instruction and data caches coherent in
// hardware, unlike the ARM64 guest this JIT targets — but the call is
// still issued for portability of the Region abstraction.
func (r *Region) Finalize() error {
	if err := unix.Mprotect(r.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("region: mprotect rx: %w", err)
	}
	r.writable = false
	invalidateICache(r.mem)
	return nil
}

// invalidateICache is a hook for architectures that need an explicit
// instruction-cache flush after writing executable pages. amd64's
// hardware-coherent icache makes this a no-op; on any other
// architecture it panics, as no flush is implemented.
func invalidateICache(mem []byte) {
	if runtime.GOARCH != "amd64" {
		panic("region: invalidateICache not implemented for " + runtime.GOARCH)
	}
}

// Close unmaps the region's memory. Using the Region after Close is
// undefined.
func (r *Region) Close() error {
	return unix.Munmap(r.mem)
}

// Stats reports the read-only debug/statistics snapshot.
func (r *Region) Stats() Stats {
	return Stats{
		Base:       r.base,
		Capacity:   len(r.mem),
		Used:       r.used,
		Free:       len(r.mem) - r.used,
		BlockCount: r.blockCount,
		Resets:     r.resets,
	}
}

// Base returns the region's host base address.
func (r *Region) Base() uintptr {
	return r.base
}

// Backing exposes the whole mapping as a byte slice, for the
// dispatcher's cross-block chain patching: a rel32 site recorded in an
// earlier block lives outside that block's own allocation window, so
// patching it needs a view over the full region. Callers must hold the
// region writable (BeginWrite) while mutating through it.
func (r *Region) Backing() []byte {
	return r.mem
}

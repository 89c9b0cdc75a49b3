// Package guestmem implements the guest address space behind the
// translation core: guest virtual addresses are identity-mapped to
// host virtual addresses, so a guest load/store translated into host
// code (translate/memory.go's MemReg base) dereferences the same
// numeric address the guest program would use. Storage is real host
// mmap'd pages rather than a Go byte slice, since translated code
// accesses guest memory directly rather than through a
// bounds-checking interpreter loop.
package guestmem

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Prot is the protection bitmask: read=1, write=2, exec=4.
type Prot uint8

const (
	ProtRead Prot = 1 << iota
	ProtWrite
	ProtExec
)

// MapFlag mirrors the mmap flag semantics guest mappings use.
type MapFlag uint8

const (
	FlagAnonymous MapFlag = 1 << iota
	FlagPrivate
	FlagShared
	FlagFixed
)

// ErrNotMapped is returned by Translate when the requested guest
// address falls outside every region this Space currently owns.
var ErrNotMapped = fmt.Errorf("guestmem: address not mapped")

type region struct {
	base uintptr
	size uintptr
	prot Prot
	data []byte // mmap'd backing, used by Mprotect
}

func (r region) end() uintptr { return r.base + r.size }

// Space owns the set of mapped regions that make up one guest
// process's address space. Because guest addresses are identity-
// mapped, a Space never needs to translate an address that falls
// inside a mapped region; it only needs to answer whether one does.
type Space struct {
	mu      sync.RWMutex
	regions []region
}

// New returns an empty address space.
func New() *Space {
	return &Space{}
}

// Map creates a fixed mapping at guestAddr of size bytes with the
// given protection and flags. size is rounded up to the host page
// size. The mapping is always fixed — callers pick the guest address
// and this call either honors it or fails.
func (s *Space) Map(guestAddr uintptr, size int, prot Prot, flags MapFlag) error {
	if size <= 0 {
		return fmt.Errorf("guestmem: invalid size %d", size)
	}
	pageSize := uintptr(unix.Getpagesize())
	aligned := (uintptr(size) + pageSize - 1) &^ (pageSize - 1)

	unixProt := 0
	if prot&ProtRead != 0 {
		unixProt |= unix.PROT_READ
	}
	if prot&ProtWrite != 0 {
		unixProt |= unix.PROT_WRITE
	}
	if prot&ProtExec != 0 {
		unixProt |= unix.PROT_EXEC
	}

	unixFlags := unix.MAP_FIXED
	if flags&FlagShared != 0 {
		unixFlags |= unix.MAP_SHARED
	} else {
		unixFlags |= unix.MAP_PRIVATE
	}
	if flags&FlagAnonymous != 0 {
		unixFlags |= unix.MAP_ANON
	}

	data, err := mmapFixed(guestAddr, aligned, unixProt, unixFlags)
	if err != nil {
		return fmt.Errorf("guestmem: mmap at %#x: %w", guestAddr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = append(s.regions, region{base: guestAddr, size: aligned, prot: prot, data: data})
	sort.Slice(s.regions, func(i, j int) bool { return s.regions[i].base < s.regions[j].base })
	return nil
}

// mmapFixed issues the mmap(2) syscall directly with MAP_FIXED at a
// caller-chosen address: golang.org/x/sys/unix.Mmap has no parameter
// for the target address, so a fixed guest-address mapping has to go
// through the raw syscall wrapper instead of the package's
// convenience function.
func mmapFixed(addr, length uintptr, prot, flags int) ([]byte, error) {
	r1, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, length, uintptr(prot), uintptr(flags|unix.MAP_FIXED), ^uintptr(0), 0)
	if errno != 0 {
		return nil, errno
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(r1)), int(length)), nil
}

// Unmap removes the mapping covering guestAddr..guestAddr+size.
func (s *Space) Unmap(guestAddr uintptr, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.regions {
		if r.base == guestAddr {
			// r.data came from the raw mmap in mmapFixed, which unix.Munmap
			// does not track, so the unmap goes through the raw syscall too.
			if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, r.base, r.size, 0); errno != 0 {
				return fmt.Errorf("guestmem: munmap at %#x: %w", guestAddr, errno)
			}
			s.regions = append(s.regions[:i], s.regions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("guestmem: no mapping at %#x", guestAddr)
}

// Protect changes the protection of the mapping covering guestAddr.
func (s *Space) Protect(guestAddr uintptr, size int, prot Prot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.regions {
		if r.base != guestAddr {
			continue
		}
		unixProt := 0
		if prot&ProtRead != 0 {
			unixProt |= unix.PROT_READ
		}
		if prot&ProtWrite != 0 {
			unixProt |= unix.PROT_WRITE
		}
		if prot&ProtExec != 0 {
			unixProt |= unix.PROT_EXEC
		}
		if err := unix.Mprotect(r.data, unixProt); err != nil {
			return fmt.Errorf("guestmem: mprotect at %#x: %w", guestAddr, err)
		}
		s.regions[i].prot = prot
		return nil
	}
	return fmt.Errorf("guestmem: no mapping at %#x", guestAddr)
}

// Translate reports the host address for a guest address, which is
// always the same numeric value under the identity-mapping scheme,
// unless no region currently covers it (ErrNotMapped).
func (s *Space) Translate(guestAddr uintptr) (uintptr, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.regions {
		if guestAddr >= r.base && guestAddr < r.end() {
			return guestAddr, nil
		}
	}
	return 0, ErrNotMapped
}

// WriteAt copies data into guest memory starting at guestAddr, for a
// loader populating a freshly mapped region with a program image.
func (s *Space) WriteAt(guestAddr uintptr, data []byte) error {
	host, err := s.Translate(guestAddr)
	if err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(host)), len(data)), data)
	return nil
}

// ReadAt returns a copy of n bytes of guest memory starting at
// guestAddr.
func (s *Space) ReadAt(guestAddr uintptr, n int) ([]byte, error) {
	host, err := s.Translate(guestAddr)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(host)), n))
	return out, nil
}

// Base returns the base address of the lowest mapped region, or 0 when
// nothing is mapped. Under identity mapping that is also its host
// address. The dispatcher does not use it for MemReg, which it loads
// with 0 (see dispatch.memBase).
func (s *Space) Base() uintptr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.regions) == 0 {
		return 0
	}
	return s.regions[0].base
}

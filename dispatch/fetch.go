package dispatch

import (
	"encoding/binary"
	"unsafe"

	"github.com/lookbusy1344/arm64jit/guest"
	"github.com/lookbusy1344/arm64jit/guestmem"
)

// statePtr recovers the host address of the guest register file, for
// jitcall to load into translate.StateReg before entering JIT'd code.
func statePtr(s *guest.State) uintptr {
	return uintptr(unsafe.Pointer(s))
}

// memBase is the value loaded into translate.MemReg before entering
// JIT'd code. Guest addresses are identity-mapped to host addresses
// (guestmem.Space.Translate returns its argument unchanged for any
// mapped address), so the base a translated load/store adds on top of
// a guest address register must be zero, not the first region's
// start: Space.Base() is a Stats/debug convenience for "where did the
// image load", not an offset the data path should fold in again on
// top of addresses fetch.go and guestmem.Space already treat as
// absolute. MemReg stays a named register (not simply dropped from
// the emitter) so a future non-identity mapping scheme only has to
// change this one function.
func memBase(mem *guestmem.Space) uintptr {
	return 0
}

// guestFetcher adapts a guestmem.Space to translate.Fetcher: guest
// addresses are identity-mapped, so fetching an instruction word is a
// bounds check (via Translate) followed by a direct little-endian read
// of the four bytes at that host address.
type guestFetcher struct {
	mem *guestmem.Space
}

func (f guestFetcher) FetchWord(guestAddr uint64) (uint32, error) {
	host, err := f.mem.Translate(uintptr(guestAddr))
	if err != nil {
		return 0, err
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(host)), 4)
	return binary.LittleEndian.Uint32(b), nil
}

// Package translate turns a decoded ARM64 instruction (arm64asm.Decoded)
// into host x86-64 machine code appended to a codebuf.Buffer, one
// handler per instruction class. Every translated block keeps a
// pointer to the guest register file (guest.State) resident in RBX
// for its whole lifetime; individual instructions read and write
// guest registers as memory operands off that base rather than
// holding a register allocation of their own, driving everything off
// one CPU struct instead of a compiler-grade allocator.
package translate

import (
	"unsafe"

	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/guest"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// StateReg is the host register a translated block assumes holds the
// address of its guest.State for the block's entire lifetime. Callers
// outside this package (dispatch.jitcall) are responsible for loading
// it before transferring control and must never observe it clobbered.
const StateReg = x86asm.RBX

// MemReg is the host register holding the base of the guest address
// space, held live the same way as StateReg. Load/store translators
// compute host addresses as MemReg+guestAddr rather than touching
// guest.State directly. Guest addresses are identity-mapped to host
// addresses, so the dispatcher loads MemReg with 0
// (dispatch.memBase) rather than any mapped region's start — folding
// a region base in here as well would double-count it, since
// guestmem.Space.Translate already treats guest addresses as absolute
// host addresses.
const MemReg = x86asm.R12

// scratch registers available to instruction translators. RBX (the
// state pointer) and RSP are never used as scratch.
const (
	scratch0 = x86asm.RAX
	scratch1 = x86asm.RCX
	scratch2 = x86asm.RDX
	scratch3 = x86asm.RSI
	scratch4 = x86asm.RDI
)

var (
	offX              [31]int32
	offSP             int32
	offPC             int32
	offNZCV           int32
	offV              [32]int32
	offFPCR           int32
	offFPSR           int32
	offExit           int32
	offAbortPending   int32
	offAbort          int32
	offSyscallPending int32
	offExclAddr       int32
	offExclVal        int32
)

func init() {
	var s guest.State
	base := uintptr(unsafe.Pointer(&s))
	for i := range s.X {
		offX[i] = int32(uintptr(unsafe.Pointer(&s.X[i])) - base)
	}
	offSP = int32(uintptr(unsafe.Pointer(&s.SP)) - base)
	offPC = int32(uintptr(unsafe.Pointer(&s.PC)) - base)
	offNZCV = int32(uintptr(unsafe.Pointer(&s.NZCV)) - base)
	for i := range s.V {
		offV[i] = int32(uintptr(unsafe.Pointer(&s.V[i])) - base)
	}
	offFPCR = int32(uintptr(unsafe.Pointer(&s.FPCR)) - base)
	offFPSR = int32(uintptr(unsafe.Pointer(&s.FPSR)) - base)
	offExit = int32(uintptr(unsafe.Pointer(&s.ExitRequested)) - base)
	offAbortPending = int32(uintptr(unsafe.Pointer(&s.AbortPending)) - base)
	offAbort = int32(uintptr(unsafe.Pointer(&s.AbortReason)) - base)
	offSyscallPending = int32(uintptr(unsafe.Pointer(&s.SyscallPending)) - base)
	offExclAddr = int32(uintptr(unsafe.Pointer(&s.ExclusiveAddr)) - base)
	offExclVal = int32(uintptr(unsafe.Pointer(&s.ExclusiveVal)) - base)
}

// Block accumulates emitted host code plus per-block bookkeeping
// (guest byte length, whether it ends in a chain-eligible branch) that
// cache.Entry needs once the block is installed.
type Block struct {
	Buf        *codebuf.Buffer
	GuestStart uint64
	GuestLen   uint64
	Terminal   bool // true once a translator has closed the block
	Patches    []PendingPatch
}

// NewBlock starts a translation for the basic block beginning at
// guestPC, writing into buf.
func NewBlock(buf *codebuf.Buffer, guestPC uint64) *Block {
	return &Block{Buf: buf, GuestStart: guestPC}
}

// loadReg emits code loading the 64-bit (or 32-bit zero-extended)
// value of ARM64 register armReg into dst. Register 31 is the zero
// register in this decoder's convention (guest.ZeroRegister); reads
// from it always produce zero without touching memory.
func loadReg(buf *codebuf.Buffer, dst x86asm.Reg, armReg int, sf bool) {
	if armReg == guest.ZeroRegister {
		x86asm.AluRegReg(buf, true, x86asm.ALUXor, dst, dst)
		return
	}
	x86asm.MovRegMem(buf, sf, dst, StateReg, offX[armReg])
}

// loadRegOrSP is the variant for instruction forms where register 31
// names the stack pointer rather than the zero register: load/store
// base registers and the non-flag-setting add/sub immediates.
func loadRegOrSP(buf *codebuf.Buffer, dst x86asm.Reg, armReg int, sf bool) {
	if armReg == guest.ZeroRegister {
		x86asm.MovRegMem(buf, sf, dst, StateReg, offSP)
		return
	}
	x86asm.MovRegMem(buf, sf, dst, StateReg, offX[armReg])
}

// storeRegOrSP writes src back to armReg, treating index 31 as SP.
func storeRegOrSP(buf *codebuf.Buffer, armReg int, src x86asm.Reg, sf bool) {
	if !sf {
		x86asm.MovRegReg(buf, false, src, src)
	}
	if armReg == guest.ZeroRegister {
		x86asm.MovMemReg(buf, true, StateReg, offSP, src)
		return
	}
	x86asm.MovMemReg(buf, true, StateReg, offX[armReg], src)
}

// storeReg emits code writing src back to ARM64 register armReg. A
// 32-bit write zero-extends into the full 64-bit slot, matching
// guest.State.SetReg32. Writes to the zero register are no-ops.
func storeReg(buf *codebuf.Buffer, armReg int, src x86asm.Reg, sf bool) {
	if armReg == guest.ZeroRegister {
		return
	}
	if !sf {
		// zero the high 32 bits of the slot first so a narrow write
		// doesn't leave stale data above it.
		x86asm.MovMemReg(buf, true, StateReg, offX[armReg], zeroHighHelper(buf, src))
		return
	}
	x86asm.MovMemReg(buf, true, StateReg, offX[armReg], src)
}

// zeroHighHelper clears the upper 32 bits of src by moving it through
// a 32-bit register-to-register mov (the x86-64 architectural
// zero-extend-on-32-bit-write rule), returning src for chaining.
func zeroHighHelper(buf *codebuf.Buffer, src x86asm.Reg) x86asm.Reg {
	x86asm.MovRegReg(buf, false, src, src)
	return src
}

func loadPC(buf *codebuf.Buffer, dst x86asm.Reg) {
	x86asm.MovRegMem(buf, true, dst, StateReg, offPC)
}

func storePC(buf *codebuf.Buffer, src x86asm.Reg) {
	x86asm.MovMemReg(buf, true, StateReg, offPC, src)
}

func storePCImm(buf *codebuf.Buffer, target uint64, scratch x86asm.Reg) {
	x86asm.MovRegImm64(buf, scratch, target)
	storePC(buf, scratch)
}

func loadNZCV(buf *codebuf.Buffer, dst x86asm.Reg) {
	x86asm.MovRegMem(buf, false, dst, StateReg, offNZCV)
}

func storeNZCV(buf *codebuf.Buffer, src x86asm.Reg) {
	x86asm.MovMemReg(buf, false, StateReg, offNZCV, src)
}

func vecOffset(reg int) int32 { return offV[reg] }

package translate

import (
	"github.com/lookbusy1344/arm64jit/arm64asm"
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// PatchKind distinguishes a recorded jmp/Jcc site by what its rel32
// field should eventually point at, once the block has a final host
// address. The dispatcher's install step (Dispatcher.tryTranslate in
// package dispatch) resolves PatchGuestPC sites by a cache lookup (linking directly to a resident block when possible, or
// else to the epilogue) and PatchEpilogue sites always to the
// dispatcher's resume stub.
type PatchKind int

const (
	PatchEpilogue PatchKind = iota
	PatchGuestPC
)

// PendingPatch is one unresolved rel32 site inside a translated block.
// Slot is the cache chain slot this edge belongs to when it resolves
// to a direct block link: 0 for the taken/unconditional successor, 1
// for a conditional branch's fallthrough. Epilogue exits carry Slot -1.
type PendingPatch struct {
	Offset      int
	Kind        PatchKind
	GuestTarget uint64
	Slot        int
}

// linkReg is the ARM64 link register, X30.
const linkReg = 30

func emitExitJump(buf *codebuf.Buffer, blk *Block, kind PatchKind, guestTarget uint64, slot int) {
	off := x86asm.JmpRel32(buf)
	blk.Patches = append(blk.Patches, PendingPatch{Offset: off, Kind: kind, GuestTarget: guestTarget, Slot: slot})
}

// Branch translates the ten control-transfer forms. nextPC is the
// address of the instruction immediately following this
// one, used as the not-taken target for conditional forms and as the
// return address BL/BLR must stash in X30.
func Branch(buf *codebuf.Buffer, blk *Block, f arm64asm.BranchFields, pc, nextPC uint64) {
	switch f.Op {
	case arm64asm.BranchB:
		target := uint64(int64(pc) + f.Imm)
		storePCImm(buf, target, scratch0)
		emitExitJump(buf, blk, PatchGuestPC, target, 0)

	case arm64asm.BranchBL:
		target := uint64(int64(pc) + f.Imm)
		x86asm.MovRegImm64(buf, scratch0, nextPC)
		storeReg(buf, linkReg, scratch0, true)
		storePCImm(buf, target, scratch0)
		emitExitJump(buf, blk, PatchGuestPC, target, 0)

	case arm64asm.BranchBR:
		loadReg(buf, scratch0, f.Rt, true)
		storePC(buf, scratch0)
		emitExitJump(buf, blk, PatchEpilogue, 0, -1)

	case arm64asm.BranchBLR:
		loadReg(buf, scratch0, f.Rt, true)
		x86asm.MovRegImm64(buf, scratch1, nextPC)
		storeReg(buf, linkReg, scratch1, true)
		storePC(buf, scratch0)
		emitExitJump(buf, blk, PatchEpilogue, 0, -1)

	case arm64asm.BranchRET:
		loadReg(buf, scratch0, f.Rt, true)
		storePC(buf, scratch0)
		emitExitJump(buf, blk, PatchEpilogue, 0, -1)

	case arm64asm.BranchCBZ, arm64asm.BranchCBNZ:
		loadReg(buf, scratch0, f.Rt, true)
		x86asm.TestRegReg(buf, true, scratch0, scratch0)
		cc := x86asm.CondNE
		if f.Op == arm64asm.BranchCBZ {
			cc = x86asm.CondE
		}
		emitCondPair(buf, blk, cc, uint64(int64(pc)+f.Imm), nextPC)

	case arm64asm.BranchTBZ, arm64asm.BranchTBNZ:
		// `bt reg, #b; jnc/jc`: BT handles bit indices past 31, which
		// an AND against a 32-bit immediate cannot.
		loadReg(buf, scratch0, f.Rt, true)
		x86asm.BtRegImm8(buf, true, x86asm.BitTest, scratch0, f.BitNo)
		cc := x86asm.CondB // CF=1: bit set, TBNZ taken
		if f.Op == arm64asm.BranchTBZ {
			cc = x86asm.CondAE
		}
		emitCondPair(buf, blk, cc, uint64(int64(pc)+f.Imm), nextPC)

	case arm64asm.BranchBcond:
		emitBcond(buf, blk, f.Cond, uint64(int64(pc)+f.Imm), nextPC)
	}
}

// emitCondPair emits `Jcc cc` over the flags the caller just set,
// selecting between takenTarget (cc holds) and fallthrough, then
// closes both arms with their own exit jump.
func emitCondPair(buf *codebuf.Buffer, blk *Block, cc x86asm.Condition, takenTarget, fallthroughPC uint64) {
	skipOff := x86asm.JccRel32(buf, cc)
	// not-taken path
	storePCImm(buf, fallthroughPC, scratch0)
	emitExitJump(buf, blk, PatchGuestPC, fallthroughPC, 1)
	takenStart := buf.Offset()
	x86asm.PatchRel32Local(buf, skipOff, takenStart)
	// taken path
	storePCImm(buf, takenTarget, scratch0)
	emitExitJump(buf, blk, PatchGuestPC, takenTarget, 0)
}

// emitBcond evaluates the ARM condition against the guest NZCV word
// (loaded from guest.State memory, not host EFLAGS, since flags aren't
// kept live in the host condition codes between translated
// instructions) and branches to takenTarget or fallthroughPC.
func emitBcond(buf *codebuf.Buffer, blk *Block, cond uint8, takenTarget, fallthroughPC uint64) {
	emitCondValue(buf, cond)
	x86asm.TestRegReg(buf, true, scratch1, scratch1)
	emitCondPair(buf, blk, x86asm.CondNE, takenTarget, fallthroughPC) // non-zero result => taken
}

// Fixed temporaries for emitCondValue's per-flag bits, distinct from
// scratch0 (holds the NZCV word) and scratch1 (the running result).
const (
	flagN = scratch2
	flagZ = scratch3
	flagC = scratch4
	flagV = x86asm.R8
)

// emitCondValue materializes the ARM condition's truth value (0 or 1)
// into scratch1, reading the guest NZCV word. Shared by B.cond and the
// conditional-select family, which test the same four-bit condition
// field.
func emitCondValue(buf *codebuf.Buffer, cond uint8) {
	loadNZCV(buf, scratch0)

	bitInto(buf, flagN, scratch0, 31)
	bitInto(buf, flagZ, scratch0, 30)
	bitInto(buf, flagC, scratch0, 29)
	bitInto(buf, flagV, scratch0, 28)

	result := scratch1
	switch cond {
	case 0: // EQ
		x86asm.MovRegReg(buf, true, result, flagZ)
	case 1: // NE
		x86asm.MovRegReg(buf, true, result, flagZ)
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, result, 1)
	case 2: // CS/HS
		x86asm.MovRegReg(buf, true, result, flagC)
	case 3: // CC/LO
		x86asm.MovRegReg(buf, true, result, flagC)
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, result, 1)
	case 4: // MI
		x86asm.MovRegReg(buf, true, result, flagN)
	case 5: // PL
		x86asm.MovRegReg(buf, true, result, flagN)
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, result, 1)
	case 6: // VS
		x86asm.MovRegReg(buf, true, result, flagV)
	case 7: // VC
		x86asm.MovRegReg(buf, true, result, flagV)
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, result, 1)
	case 8: // HI: C==1 && Z==0
		x86asm.MovRegReg(buf, true, result, flagZ)
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, result, 1)
		x86asm.AluRegReg(buf, true, x86asm.ALUAnd, result, flagC)
	case 9: // LS: !(C==1 && Z==0)
		x86asm.MovRegReg(buf, true, result, flagZ)
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, result, 1)
		x86asm.AluRegReg(buf, true, x86asm.ALUAnd, result, flagC)
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, result, 1)
	case 10: // GE: N==V
		x86asm.MovRegReg(buf, true, result, flagN)
		x86asm.AluRegReg(buf, true, x86asm.ALUXor, result, flagV)
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, result, 1)
	case 11: // LT: N!=V
		x86asm.MovRegReg(buf, true, result, flagN)
		x86asm.AluRegReg(buf, true, x86asm.ALUXor, result, flagV)
	case 12: // GT: Z==0 && N==V
		x86asm.MovRegReg(buf, true, result, flagN)
		x86asm.AluRegReg(buf, true, x86asm.ALUXor, result, flagV)
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, result, 1)
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, flagZ, 1)
		x86asm.AluRegReg(buf, true, x86asm.ALUAnd, result, flagZ)
	case 13: // LE: Z==1 || N!=V
		x86asm.MovRegReg(buf, true, result, flagN)
		x86asm.AluRegReg(buf, true, x86asm.ALUXor, result, flagV)
		x86asm.AluRegReg(buf, true, x86asm.ALUOr, result, flagZ)
	default: // AL / NV
		x86asm.MovRegImm32(buf, result, 1)
	}
}

// bitInto isolates bit n of src into dst, as a 0/1 value.
func bitInto(buf *codebuf.Buffer, dst, src x86asm.Reg, n uint8) {
	x86asm.MovRegReg(buf, true, dst, src)
	if n != 0 {
		x86asm.ShiftRegImm(buf, true, x86asm.ShiftShr, dst, n)
	}
	x86asm.AluRegImm32(buf, true, x86asm.ALUAnd, dst, 1)
}

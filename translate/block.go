package translate

import (
	"github.com/lookbusy1344/arm64jit/arm64asm"
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/decodeerr"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// MaxInstructions is the default per-block instruction cap: a
// straight-line run that never hits a control-transfer instruction
// still ends the block here, with a fallthrough edge to the next
// sequential PC.
const MaxInstructions = 128

// Fetcher reads one 32-bit guest instruction word at a guest address.
// dispatch wires this to guestmem.Space.Translate plus a raw memory
// read; tests supply an in-memory implementation over a plain slice.
type Fetcher interface {
	FetchWord(guestAddr uint64) (uint32, error)
}

// TranslateBlock decodes and emits x86 for one basic block starting at
// guestPC. The block ends at the first unconditional branch,
// conditional branch, SVC, Unknown encoding, or after maxInstructions
// decoded instructions (0 selects MaxInstructions). The returned
// Block carries every unresolved rel32 patch site (PendingPatch) for
// the installer (the dispatch package) to resolve once the block has
// a host address.
func TranslateBlock(buf *codebuf.Buffer, fetch Fetcher, guestPC uint64, maxInstructions int) (*Block, error) {
	if maxInstructions <= 0 {
		maxInstructions = MaxInstructions
	}

	blk := NewBlock(buf, guestPC)
	pc := guestPC

	for count := 0; count < maxInstructions; count++ {
		word, err := fetch.FetchWord(pc)
		if err != nil {
			return nil, decodeerr.Wrap(pc, 0, decodeerr.ReasonFetchFault, err)
		}

		d := arm64asm.Decode(word)
		nextPC := pc + 4
		blk.GuestLen = nextPC - guestPC

		switch d.Kind {
		case arm64asm.KindUnknown:
			emitFaultTrampolineCall(buf, blk, pc, word)
			blk.Terminal = true
			return finishBlock(buf, blk)

		case arm64asm.KindALU:
			ALU(buf, d.ALU)
		case arm64asm.KindCondSelect:
			CondSelect(buf, d.CondSelect)
		case arm64asm.KindMoveWide:
			MoveWide(buf, d.MoveWide)
		case arm64asm.KindMemory:
			Memory(buf, d.Memory)
		case arm64asm.KindAtomic:
			Atomic(buf, d.Atomic)
		case arm64asm.KindSIMD:
			translateSIMDInstruction(buf, d.SIMD)

		case arm64asm.KindBranch:
			Branch(buf, blk, d.Branch, pc, nextPC)
			blk.Terminal = true
			return finishBlock(buf, blk)

		case arm64asm.KindSystem:
			if System(buf, blk, d.System, pc, nextPC) {
				blk.Terminal = true
				return finishBlock(buf, blk)
			}

		default:
			emitFaultTrampolineCall(buf, blk, pc, word)
			blk.Terminal = true
			return finishBlock(buf, blk)
		}

		pc = nextPC
	}

	// max-instructions cap reached: close with a fallthrough edge.
	storePCImm(buf, pc, scratch0)
	emitExitJump(buf, blk, PatchGuestPC, pc, 0)
	blk.Terminal = true
	return finishBlock(buf, blk)
}

// translateSIMDInstruction dispatches a decoded SIMD word to either the
// three-register-same ALU/compare translator or the load/store-
// multiple translator, mirroring the split arm64asm/simd.go makes
// between decodeSIMDThreeSame and decodeSIMDLoadStore.
func translateSIMDInstruction(buf *codebuf.Buffer, f arm64asm.SIMDFields) {
	if f.Op == arm64asm.SIMDLD1 || f.Op == arm64asm.SIMDST1 {
		addrReg := scratch2
		loadRegOrSP(buf, addrReg, f.Rn, true)
		LoadStoreMultiple(buf, f, addrReg)
		return
	}
	SIMD(buf, f)
}

// emitFaultTrampolineCall records the abort reason and guest PC that
// caused translation to give up on this instruction, then closes the
// block with an exit to the dispatcher's fault path.
func emitFaultTrampolineCall(buf *codebuf.Buffer, blk *Block, pc uint64, word uint32) {
	storePCImm(buf, pc, scratch0)
	x86asm.MovMemImm8(buf, StateReg, offAbortPending, 1)
	x86asm.MovRegImm64(buf, scratch0, uint64(word))
	x86asm.MovMemReg(buf, false, StateReg, offAbort, scratch0)
	emitExitJump(buf, blk, PatchEpilogue, 0, -1)
}

// finishBlock validates the buffer's error-latch state before handing
// the block back to the caller; a BufferOverflow means the
// caller must not install this block.
func finishBlock(buf *codebuf.Buffer, blk *Block) (*Block, error) {
	if buf.Error() {
		return nil, decodeerr.New(blk.GuestStart, 0, decodeerr.ReasonUnsupportedOp)
	}
	return blk, nil
}

package translate

import (
	"github.com/lookbusy1344/arm64jit/arm64asm"
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

var aluOpMap = map[arm64asm.ALUOp]x86asm.ALUOp{
	arm64asm.OpADD: x86asm.ALUAdd,
	arm64asm.OpSUB: x86asm.ALUSub,
	arm64asm.OpAND: x86asm.ALUAnd,
	arm64asm.OpORR: x86asm.ALUOr,
	arm64asm.OpEOR: x86asm.ALUXor,
}

var shiftOpMap = [4]x86asm.ShiftOp{
	x86asm.ShiftShl, // LSL
	x86asm.ShiftShr, // LSR
	x86asm.ShiftSar, // ASR
	x86asm.ShiftRor, // ROR
}

// ALU translates the data-processing forms: ADD/SUB/AND/ORR/EOR
// (register-shifted or immediate), MADD/MSUB, SDIV/UDIV, and the
// one-source CLZ/REV. Every operand is read from and written to guest.State
// memory through the StateReg base; no ARM register is kept resident
// in a host register across instructions.
func ALU(buf *codebuf.Buffer, f arm64asm.ALUFields) {
	switch f.Opcode {
	case arm64asm.OpMUL:
		translateMul(buf, f)
		return
	case arm64asm.OpSDIV, arm64asm.OpUDIV:
		translateDiv(buf, f)
		return
	case arm64asm.OpCLZ:
		translateClz(buf, f)
		return
	case arm64asm.OpREV:
		translateRev(buf, f)
		return
	}

	// The non-flag-setting add/sub immediates are the SP-bearing forms:
	// register 31 names the stack pointer in Rd and Rn there (that is
	// how MOV to/from SP is spelled), everywhere else it is XZR.
	spForm := f.UseImm && !f.SetFlags && (f.Opcode == arm64asm.OpADD || f.Opcode == arm64asm.OpSUB)

	if spForm {
		loadRegOrSP(buf, scratch0, f.Rn, f.Sf)
	} else {
		loadReg(buf, scratch0, f.Rn, f.Sf)
	}

	if f.UseImm {
		x86asm.MovRegImm64(buf, scratch1, f.Imm)
	} else {
		loadReg(buf, scratch1, f.Rm, f.Sf)
		if f.ShiftAmt != 0 {
			x86asm.ShiftRegImm(buf, f.Sf, shiftOpMap[f.ShiftType&3], scratch1, f.ShiftAmt)
		}
		if f.Negate {
			x86asm.NotReg(buf, f.Sf, scratch1)
		}
	}

	op := aluOpMap[f.Opcode]
	x86asm.AluRegReg(buf, f.Sf, op, scratch0, scratch1)

	if spForm {
		storeRegOrSP(buf, f.Rd, scratch0, f.Sf)
	} else {
		storeReg(buf, f.Rd, scratch0, f.Sf)
	}

	if f.SetFlags {
		captureNZCV(buf, f.Opcode == arm64asm.OpSUB)
	}
}

func translateMul(buf *codebuf.Buffer, f arm64asm.ALUFields) {
	loadReg(buf, scratch0, f.Rn, f.Sf)
	loadReg(buf, scratch1, f.Rm, f.Sf)
	x86asm.ImulRegReg(buf, f.Sf, scratch0, scratch1)
	if f.Ra >= 0 {
		loadReg(buf, scratch2, f.Ra, f.Sf)
		if f.Negate {
			// MSUB: Rd = Ra - (Rn*Rm)
			x86asm.AluRegReg(buf, f.Sf, x86asm.ALUSub, scratch2, scratch0)
			storeReg(buf, f.Rd, scratch2, f.Sf)
			return
		}
		x86asm.AluRegReg(buf, f.Sf, x86asm.ALUAdd, scratch0, scratch2)
	}
	storeReg(buf, f.Rd, scratch0, f.Sf)
}

// translateDiv emits SDIV/UDIV guarded against the two guest inputs
// ARM64 defines as trap-free but x86 IDIV/DIV fault on: division by
// zero (ARM result 0) and, for SDIV only, INT_MIN/-1 (ARM result
// INT_MIN, since the mathematical quotient overflows the register).
// The guard is a local-jump sequence in the style of
// translate/branch.go's emitCondPair, converging on a single final
// storeReg regardless of which path ran.
func translateDiv(buf *codebuf.Buffer, f arm64asm.ALUFields) {
	loadReg(buf, x86asm.RAX, f.Rn, f.Sf)
	loadReg(buf, scratch1, f.Rm, f.Sf) // divisor must not be RDX: it holds the dividend's high half

	x86asm.TestRegReg(buf, f.Sf, scratch1, scratch1)
	zeroJump := x86asm.JccRel32(buf, x86asm.CondE)

	if f.Opcode == arm64asm.OpSDIV {
		// overflow case: divisor == -1 && dividend == INT_MIN
		if f.Sf {
			x86asm.MovRegImm64(buf, scratch2, ^uint64(0))
		} else {
			x86asm.MovRegImm32(buf, scratch2, 0xFFFFFFFF)
		}
		x86asm.AluRegReg(buf, f.Sf, x86asm.ALUCmp, scratch1, scratch2)
		notNegOne := x86asm.JccRel32(buf, x86asm.CondNE)

		if f.Sf {
			x86asm.MovRegImm64(buf, scratch2, 1<<63)
		} else {
			x86asm.MovRegImm32(buf, scratch2, 1<<31)
		}
		x86asm.AluRegReg(buf, f.Sf, x86asm.ALUCmp, x86asm.RAX, scratch2)
		notOverflow := x86asm.JccRel32(buf, x86asm.CondNE)

		// overflow: result is INT_MIN, already sitting in RAX.
		overflowDone := x86asm.JmpRel32(buf)

		notOverflowStart := buf.Offset()
		x86asm.PatchRel32Local(buf, notNegOne, notOverflowStart)
		x86asm.PatchRel32Local(buf, notOverflow, notOverflowStart)

		if f.Sf {
			x86asm.Cqo(buf)
		} else {
			x86asm.Cdq(buf)
		}
		x86asm.IdivReg(buf, f.Sf, scratch1)
		divDone := x86asm.JmpRel32(buf)

		overflowDoneStart := buf.Offset()
		x86asm.PatchRel32Local(buf, overflowDone, overflowDoneStart)
		x86asm.PatchRel32Local(buf, divDone, overflowDoneStart)
	} else {
		x86asm.AluRegReg(buf, f.Sf, x86asm.ALUXor, x86asm.RDX, x86asm.RDX)
		x86asm.DivReg(buf, f.Sf, scratch1)
	}

	resultDone := x86asm.JmpRel32(buf)

	zeroStart := buf.Offset()
	x86asm.PatchRel32Local(buf, zeroJump, zeroStart)
	x86asm.AluRegReg(buf, f.Sf, x86asm.ALUXor, x86asm.RAX, x86asm.RAX)

	end := buf.Offset()
	x86asm.PatchRel32Local(buf, resultDone, end)

	storeReg(buf, f.Rd, x86asm.RAX, f.Sf)
}

// translateClz emits CLZ via BSR: the leading-zero count is
// (width-1) - bsr(x), except that BSR leaves its destination undefined
// for a zero source, where ARM defines CLZ(0) as the full width — so
// the zero case branches around the BSR entirely.
func translateClz(buf *codebuf.Buffer, f arm64asm.ALUFields) {
	width := uint32(32)
	if f.Sf {
		width = 64
	}

	loadReg(buf, scratch1, f.Rn, f.Sf)
	x86asm.TestRegReg(buf, f.Sf, scratch1, scratch1)
	zeroJump := x86asm.JccRel32(buf, x86asm.CondE)

	x86asm.Bsr(buf, f.Sf, scratch0, scratch1)
	x86asm.MovRegImm32(buf, scratch2, width-1)
	x86asm.AluRegReg(buf, f.Sf, x86asm.ALUSub, scratch2, scratch0)
	x86asm.MovRegReg(buf, true, scratch0, scratch2)
	done := x86asm.JmpRel32(buf)

	zeroStart := buf.Offset()
	x86asm.PatchRel32Local(buf, zeroJump, zeroStart)
	x86asm.MovRegImm32(buf, scratch0, width)

	end := buf.Offset()
	x86asm.PatchRel32Local(buf, done, end)
	storeReg(buf, f.Rd, scratch0, f.Sf)
}

// translateRev emits REV as a single BSWAP of the operand width.
func translateRev(buf *codebuf.Buffer, f arm64asm.ALUFields) {
	loadReg(buf, scratch0, f.Rn, f.Sf)
	x86asm.BswapReg(buf, f.Sf, scratch0)
	storeReg(buf, f.Rd, scratch0, f.Sf)
}

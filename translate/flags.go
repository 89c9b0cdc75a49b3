package translate

import (
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// captureNZCV reads the host RFLAGS register produced by the ALU
// operation just emitted and repacks ZF/SF/CF/OF into the guest NZCV
// word at the PSTATE bit positions (guest.NBit..guest.VBit).
// x86's carry flag is the complement of ARM's for subtraction (x86
// CF=1 means borrow occurred; ARM C=1 means no borrow), so
// invertCarry must be set by callers translating SUB/SUBS/CMP.
//
// Clobbers scratch0-3; callers must have already consumed the ALU
// result into guest state before calling this.
func captureNZCV(buf *codebuf.Buffer, invertCarry bool) {
	flags := scratch2 // RDX
	tmp := scratch1    // RCX
	acc := scratch3    // RSI

	x86asm.Pushfq(buf)
	x86asm.PopReg(buf, flags)

	// N: bit 7 -> bit 31
	x86asm.MovRegReg(buf, true, tmp, flags)
	x86asm.ShiftRegImm(buf, true, x86asm.ShiftShr, tmp, 7)
	x86asm.AluRegImm32(buf, true, x86asm.ALUAnd, tmp, 1)
	x86asm.ShiftRegImm(buf, true, x86asm.ShiftShl, tmp, 31)
	x86asm.MovRegReg(buf, true, acc, tmp)

	// Z: bit 6 -> bit 30
	x86asm.MovRegReg(buf, true, tmp, flags)
	x86asm.ShiftRegImm(buf, true, x86asm.ShiftShr, tmp, 6)
	x86asm.AluRegImm32(buf, true, x86asm.ALUAnd, tmp, 1)
	x86asm.ShiftRegImm(buf, true, x86asm.ShiftShl, tmp, 30)
	x86asm.AluRegReg(buf, true, x86asm.ALUOr, acc, tmp)

	// C: bit 0 -> bit 29 (inverted for subtraction-family ops)
	x86asm.MovRegReg(buf, true, tmp, flags)
	x86asm.AluRegImm32(buf, true, x86asm.ALUAnd, tmp, 1)
	if invertCarry {
		x86asm.AluRegImm32(buf, true, x86asm.ALUXor, tmp, 1)
	}
	x86asm.ShiftRegImm(buf, true, x86asm.ShiftShl, tmp, 29)
	x86asm.AluRegReg(buf, true, x86asm.ALUOr, acc, tmp)

	// V: bit 11 -> bit 28
	x86asm.MovRegReg(buf, true, tmp, flags)
	x86asm.ShiftRegImm(buf, true, x86asm.ShiftShr, tmp, 11)
	x86asm.AluRegImm32(buf, true, x86asm.ALUAnd, tmp, 1)
	x86asm.ShiftRegImm(buf, true, x86asm.ShiftShl, tmp, 28)
	x86asm.AluRegReg(buf, true, x86asm.ALUOr, acc, tmp)

	storeNZCV(buf, acc)
}

package translate

import (
	"github.com/lookbusy1344/arm64jit/arm64asm"
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// MoveWide translates MOVZ/MOVK/MOVN. MOVZ/MOVN can be synthesized
// as a single immediate load; MOVK must preserve the other three
// halfwords, so it reads the destination first.
func MoveWide(buf *codebuf.Buffer, f arm64asm.MoveWideFields) {
	switch f.Kind {
	case arm64asm.MOVZ:
		x86asm.MovRegImm64(buf, scratch0, uint64(f.Imm16)<<f.Shift)
		storeReg(buf, f.Rd, scratch0, f.Sf)

	case arm64asm.MOVN:
		value := uint64(f.Imm16) << f.Shift
		if f.Sf {
			value = ^value
		} else {
			value = uint64(uint32(^uint32(value)))
		}
		x86asm.MovRegImm64(buf, scratch0, value)
		storeReg(buf, f.Rd, scratch0, f.Sf)

	case arm64asm.MOVK:
		loadReg(buf, scratch0, f.Rd, f.Sf)
		mask := uint64(0xFFFF) << f.Shift
		x86asm.MovRegImm64(buf, scratch1, ^mask)
		x86asm.AluRegReg(buf, true, x86asm.ALUAnd, scratch0, scratch1)
		x86asm.MovRegImm64(buf, scratch1, uint64(f.Imm16)<<f.Shift)
		x86asm.AluRegReg(buf, true, x86asm.ALUOr, scratch0, scratch1)
		storeReg(buf, f.Rd, scratch0, f.Sf)
	}
}

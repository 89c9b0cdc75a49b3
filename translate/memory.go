package translate

import (
	"github.com/lookbusy1344/arm64jit/arm64asm"
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// Memory translates the scalar load/store forms. Guest addresses are
// computed into addrReg and then used as an offset from MemReg, the
// identity-mapped guest address space base kept resident for the
// block's lifetime. The accesses (both elements, for pairs) happen
// at the effective address before any index writeback touches the
// base register, so pre- and
// post-index forms differ only in whether the written-back base
// includes the immediate the access itself already saw.
func Memory(buf *codebuf.Buffer, f arm64asm.MemFields) {
	addrReg := scratch2
	loadRegOrSP(buf, addrReg, f.Rn, true) // base register 31 is SP, not XZR

	switch f.Mode {
	case arm64asm.AddrPreIndex:
		x86asm.AluRegImm32(buf, true, x86asm.ALUAdd, addrReg, uint32(int32(f.Imm)))
	case arm64asm.AddrRegister:
		loadReg(buf, scratch3, f.Rm, true)
		x86asm.AluRegReg(buf, true, x86asm.ALUAdd, addrReg, scratch3)
	}

	disp := int32(0)
	if f.Mode == arm64asm.AddrOffset {
		disp = int32(f.Imm)
	}

	x86asm.AluRegReg(buf, true, x86asm.ALUAdd, addrReg, MemReg)
	accessOne(buf, f.Rt, addrReg, disp, f.Size, f.Signed, f.Sign64, f.IsLoad)
	if f.IsPair {
		accessOne(buf, f.Rt2, addrReg, disp+int32(f.Size/8), f.Size, false, false, f.IsLoad)
	}
	x86asm.AluRegReg(buf, true, x86asm.ALUSub, addrReg, MemReg)

	switch f.Mode {
	case arm64asm.AddrPreIndex:
		storeRegOrSP(buf, f.Rn, addrReg, true) // already base+imm
	case arm64asm.AddrPostIndex:
		x86asm.AluRegImm32(buf, true, x86asm.ALUAdd, addrReg, uint32(int32(f.Imm)))
		storeRegOrSP(buf, f.Rn, addrReg, true)
	}
}

// accessOne emits one load or store at [base+disp]. For signed loads
// sign64 picks the extension target: the full X register, or the W
// register with the upper 32 bits zeroed (the movsx 32-bit form plus
// the narrow storeReg give exactly that).
func accessOne(buf *codebuf.Buffer, rt int, base x86asm.Reg, disp int32, size uint8, signed, sign64, isLoad bool) {
	if isLoad {
		var dst x86asm.Reg = scratch0
		switch size {
		case 8:
			if signed {
				x86asm.MovsxRegMem8(buf, sign64, dst, base, disp)
			} else {
				x86asm.MovzxRegMem8(buf, dst, base, disp)
			}
		case 16:
			if signed {
				x86asm.MovsxRegMem16(buf, sign64, dst, base, disp)
			} else {
				x86asm.MovzxRegMem16(buf, dst, base, disp)
			}
		case 32:
			if signed {
				x86asm.MovsxdRegMem32(buf, dst, base, disp)
			} else {
				x86asm.MovRegMem(buf, false, dst, base, disp)
			}
		default: // 64
			x86asm.MovRegMem(buf, true, dst, base, disp)
		}
		storeReg(buf, rt, dst, !signed || sign64)
		return
	}

	loadReg(buf, scratch1, rt, true)
	switch size {
	case 8:
		x86asm.Mov8MemReg(buf, base, disp, scratch1)
	case 16:
		x86asm.Mov16MemReg(buf, base, disp, scratch1)
	case 32:
		x86asm.MovMemReg(buf, false, base, disp, scratch1)
	default:
		x86asm.MovMemReg(buf, true, base, disp, scratch1)
	}
}


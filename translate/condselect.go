package translate

import (
	"github.com/lookbusy1344/arm64jit/arm64asm"
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// CondSelect translates CSEL/CSINC/CSINV/CSNEG (and through them the
// CSET/CINC/CINV/CNEG aliases). The condition is evaluated against the
// guest NZCV word the same way B.cond does it, then a CMOV picks
// between Rn and the adjusted Rm without any branch in the emitted
// code. All register loads and the Rm adjustment happen before the
// TEST so nothing disturbs the flags the CMOV consumes.
func CondSelect(buf *codebuf.Buffer, f arm64asm.CondSelFields) {
	emitCondValue(buf, f.Cond) // scratch1 = 1 iff cond holds

	loadReg(buf, scratch0, f.Rn, f.Sf)
	loadReg(buf, scratch2, f.Rm, f.Sf)
	switch f.Op {
	case arm64asm.CSINC:
		x86asm.AluRegImm32(buf, f.Sf, x86asm.ALUAdd, scratch2, 1)
	case arm64asm.CSINV:
		x86asm.NotReg(buf, f.Sf, scratch2)
	case arm64asm.CSNEG:
		x86asm.NegReg(buf, f.Sf, scratch2)
	}

	x86asm.TestRegReg(buf, true, scratch1, scratch1)
	x86asm.CmovccRegReg(buf, f.Sf, x86asm.CondE, scratch0, scratch2) // cond false: take adjusted Rm
	storeReg(buf, f.Rd, scratch0, f.Sf)
}

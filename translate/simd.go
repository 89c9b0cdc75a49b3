package translate

import (
	"unsafe"

	"github.com/lookbusy1344/arm64jit/arm64asm"
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// xmmScratch0/1 hold the two source operands (and the result, written
// back over xmmScratch0) for the current SIMD instruction. NEON
// register Vi maps to host XMMi only for the duration of the load/
// store helpers below; the translator never keeps a vector resident
// across instructions, matching the scalar path's memory-resident
// register-file model (translate/context.go).
const (
	xmmScratch0 = x86asm.XMM(0)
	xmmScratch1 = x86asm.XMM(1)
	xmmScratch2 = x86asm.XMM(2)
)

func loadVec(buf *codebuf.Buffer, dst x86asm.XMM, reg int) {
	x86asm.MovdquMemLoad(buf, dst, StateReg, vecOffset(reg))
}

func storeVec(buf *codebuf.Buffer, reg int, src x86asm.XMM) {
	x86asm.MovdquMemStore(buf, src, StateReg, vecOffset(reg))
}

// signMasks holds the per-lane-width sign-bit pattern (bit 7/15/31/63
// of each lane set, everything else clear), indexed by the SIMDFields
// size encoding (0=byte,1=half,2=word,3=double). Unsigned vector
// compares XOR one of these into both operands before reusing the
// signed compare instruction; the table is a host process constant,
// not guest memory, so it is addressed directly by its Go pointer
// rather than through MemReg.
var signMasks [4][16]byte

func init() {
	lanes := [4]int{1, 2, 4, 8}
	for size, width := range lanes {
		for lane := 0; lane < 16/width; lane++ {
			signMasks[size][lane*width+width-1] = 0x80
		}
	}
}

// flipSignBits XORs the sign bit of every lane of the given width into
// reg using a scratch GPR to materialize the constant's address.
func flipSignBits(buf *codebuf.Buffer, reg x86asm.XMM, size uint8, addrScratch x86asm.Reg) {
	x86asm.MovRegImm64(buf, addrScratch, uint64(uintptr(unsafe.Pointer(&signMasks[size&3]))))
	x86asm.MovdquMemLoad(buf, xmmScratch2, addrScratch, 0)
	x86asm.Pxor(buf, reg, xmmScratch2)
}

type xmmOp func(buf *codebuf.Buffer, dst, src x86asm.XMM)

func bySize(size uint8, b, w, d, q xmmOp) xmmOp {
	switch size & 3 {
	case 0:
		return b
	case 1:
		return w
	case 2:
		return d
	default:
		return q
	}
}

// SIMD translates the three-register-same vector ALU/compare forms.
// Element size selects the packed mnemonic; Q (64- vs 128-bit) only
// controls how much of the 128-bit result the guest-visible state
// actually uses,
// which this translator leaves to the decoder's Q bit being threaded
// through to callers that need it (load/store-multiple sizing);
// the ALU/compare ops here always operate on the full register since
// x86's packed instructions have no narrower form.
func SIMD(buf *codebuf.Buffer, f arm64asm.SIMDFields) {
	loadVec(buf, xmmScratch0, f.Rn)
	loadVec(buf, xmmScratch1, f.Rm)

	switch f.Op {
	case arm64asm.SIMDAdd:
		bySize(f.Size, x86asm.Paddb, x86asm.Paddw, x86asm.Paddd, x86asm.Paddq)(buf, xmmScratch0, xmmScratch1)
	case arm64asm.SIMDSub:
		bySize(f.Size, x86asm.Psubb, x86asm.Psubw, x86asm.Psubd, x86asm.Psubq)(buf, xmmScratch0, xmmScratch1)
	case arm64asm.SIMDAnd:
		x86asm.Pand(buf, xmmScratch0, xmmScratch1)
	case arm64asm.SIMDOrr:
		x86asm.Por(buf, xmmScratch0, xmmScratch1)
	case arm64asm.SIMDEor:
		x86asm.Pxor(buf, xmmScratch0, xmmScratch1)

	case arm64asm.SIMDCmeq:
		bySize(f.Size, x86asm.Pcmpeqb, x86asm.Pcmpeqw, x86asm.Pcmpeqd, x86asm.Pcmpeqq)(buf, xmmScratch0, xmmScratch1)

	case arm64asm.SIMDCmgt:
		bySize(f.Size, x86asm.Pcmpgtb, x86asm.Pcmpgtw, x86asm.Pcmpgtd, x86asm.Pcmpgtq)(buf, xmmScratch0, xmmScratch1)

	case arm64asm.SIMDCmge:
		// CMGE = CMGT(Vn,Vm) || CMEQ(Vn,Vm).
		x86asm.Movapd(buf, xmmScratch2, xmmScratch0)
		bySize(f.Size, x86asm.Pcmpeqb, x86asm.Pcmpeqw, x86asm.Pcmpeqd, x86asm.Pcmpeqq)(buf, xmmScratch2, xmmScratch1)
		bySize(f.Size, x86asm.Pcmpgtb, x86asm.Pcmpgtw, x86asm.Pcmpgtd, x86asm.Pcmpgtq)(buf, xmmScratch0, xmmScratch1)
		x86asm.Por(buf, xmmScratch0, xmmScratch2)

	case arm64asm.SIMDCmhi:
		flipSignBits(buf, xmmScratch0, f.Size, scratch0)
		flipSignBits(buf, xmmScratch1, f.Size, scratch0)
		bySize(f.Size, x86asm.Pcmpgtb, x86asm.Pcmpgtw, x86asm.Pcmpgtd, x86asm.Pcmpgtq)(buf, xmmScratch0, xmmScratch1)

	case arm64asm.SIMDCmhs:
		flipSignBits(buf, xmmScratch0, f.Size, scratch0)
		flipSignBits(buf, xmmScratch1, f.Size, scratch0)
		x86asm.Movapd(buf, xmmScratch2, xmmScratch0)
		bySize(f.Size, x86asm.Pcmpeqb, x86asm.Pcmpeqw, x86asm.Pcmpeqd, x86asm.Pcmpeqq)(buf, xmmScratch2, xmmScratch1)
		bySize(f.Size, x86asm.Pcmpgtb, x86asm.Pcmpgtw, x86asm.Pcmpgtd, x86asm.Pcmpgtq)(buf, xmmScratch0, xmmScratch1)
		x86asm.Por(buf, xmmScratch0, xmmScratch2)

	case arm64asm.SIMDBsl:
		// BSL Vd, Vn, Vm: Vd = (Vd & Vn) | (~Vd & Vm). This module's
		// three-register decode carries the mask operand (Vd on entry)
		// in Rd; Vn/Vm are already loaded above.
		mask := x86asm.XMM(3)
		loadVec(buf, mask, f.Rd)
		x86asm.Pand(buf, xmmScratch0, mask)
		x86asm.Pandn(buf, mask, xmmScratch1)
		x86asm.Por(buf, xmmScratch0, mask)

	default:
		return
	}

	storeVec(buf, f.Rd, xmmScratch0)
}

// LoadStoreMultiple translates LD1/ST1: one MOVDQU (Q set, full 128
// bits) or MOVQ (Q clear, low 64 bits — the load form
// zeroes the upper lane, matching the D-register write rule) between
// guest memory at [MemReg+addrReg] and Vd. LD2-LD4/de-interleave
// variants are not in this module's decoded set (arm64asm/simd.go);
// see DESIGN.md.
func LoadStoreMultiple(buf *codebuf.Buffer, f arm64asm.SIMDFields, addrReg x86asm.Reg) {
	x86asm.AluRegReg(buf, true, x86asm.ALUAdd, addrReg, MemReg)
	if f.Op == arm64asm.SIMDLD1 {
		if f.Q {
			x86asm.MovdquMemLoad(buf, xmmScratch0, addrReg, 0)
		} else {
			x86asm.MovqMemLoad(buf, xmmScratch0, addrReg, 0)
		}
		storeVec(buf, f.Rd, xmmScratch0)
	} else {
		loadVec(buf, xmmScratch0, f.Rd)
		if f.Q {
			x86asm.MovdquMemStore(buf, xmmScratch0, addrReg, 0)
		} else {
			x86asm.MovqMemStore(buf, xmmScratch0, addrReg, 0)
		}
	}
	x86asm.AluRegReg(buf, true, x86asm.ALUSub, addrReg, MemReg)
}

package x86asm

import "github.com/lookbusy1344/arm64jit/codebuf"

// xmmExt reports whether xmm index needs the REX extension bit.
func xmmExt(x XMM) bool { return x&0x8 != 0 }
func xmmLo3(x XMM) byte { return byte(x & 0x7) }

func emitXmmRex(buf *codebuf.Buffer, dst, src XMM) {
	if xmmExt(dst) || xmmExt(src) {
		buf.AppendU8(rex(false, xmmExt(dst), false, xmmExt(src)))
	}
}

func modrmXmm(dst, src XMM) byte {
	return 0xC0 | xmmLo3(dst)<<3 | xmmLo3(src)
}

// sse2op emits a two-operand SSE instruction of the form
// [prefix] 0F opcode /r with dst as ModRM.reg and src as ModRM.rm.
func sse2op(buf *codebuf.Buffer, prefix byte, opcode byte, dst, src XMM) {
	if prefix != 0 {
		buf.AppendU8(prefix)
	}
	emitXmmRex(buf, dst, src)
	buf.AppendU8(0x0F)
	buf.AppendU8(opcode)
	buf.AppendU8(modrmXmm(dst, src))
}

// sse3op emits the three-byte-opcode (0F 38/0F 3A escape) SSSE3/SSE4
// forms used by PMULLD, PCMPEQQ, PCMPGTQ and PSHUFB.
func sse3op(buf *codebuf.Buffer, prefix byte, escape, opcode byte, dst, src XMM) {
	buf.AppendU8(prefix)
	emitXmmRex(buf, dst, src)
	buf.AppendU8(0x0F)
	buf.AppendU8(escape)
	buf.AppendU8(opcode)
	buf.AppendU8(modrmXmm(dst, src))
}

// Movdqu emits `movdqu dst, src` (F3 0F 6F /r), an unaligned 128-bit
// load between XMM registers (or, via MovdquMem, a true memory load).
func Movdqu(buf *codebuf.Buffer, dst, src XMM) {
	sse2op(buf, 0xF3, 0x6F, dst, src)
}

// MovdquMemLoad emits `movdqu dst, [base+disp]`.
func MovdquMemLoad(buf *codebuf.Buffer, dst XMM, base Reg, disp int32) {
	buf.AppendU8(0xF3)
	if xmmExt(dst) || ext(uint8(base)) {
		buf.AppendU8(rex(false, xmmExt(dst), false, ext(uint8(base))))
	}
	buf.AppendU8(0x0F)
	buf.AppendU8(0x6F)
	emitMemOperand(buf, byte(dst&0x7), base, disp)
}

// MovdquMemStore emits `movdqu [base+disp], src`.
func MovdquMemStore(buf *codebuf.Buffer, src XMM, base Reg, disp int32) {
	buf.AppendU8(0xF3)
	if xmmExt(src) || ext(uint8(base)) {
		buf.AppendU8(rex(false, xmmExt(src), false, ext(uint8(base))))
	}
	buf.AppendU8(0x0F)
	buf.AppendU8(0x7F)
	emitMemOperand(buf, byte(src&0x7), base, disp)
}

// MovqMemLoad emits `movq dst, [base+disp]` (F3 0F 7E /r): loads the
// low 64 bits and zeroes the upper half of dst, matching the
// upper-lane-clearing rule for 64-bit NEON vector loads.
func MovqMemLoad(buf *codebuf.Buffer, dst XMM, base Reg, disp int32) {
	buf.AppendU8(0xF3)
	if xmmExt(dst) || ext(uint8(base)) {
		buf.AppendU8(rex(false, xmmExt(dst), false, ext(uint8(base))))
	}
	buf.AppendU8(0x0F)
	buf.AppendU8(0x7E)
	emitMemOperand(buf, byte(dst&0x7), base, disp)
}

// MovqMemStore emits `movq [base+disp], src` (66 0F D6 /r), storing
// the low 64 bits of src.
func MovqMemStore(buf *codebuf.Buffer, src XMM, base Reg, disp int32) {
	buf.AppendU8(0x66)
	if xmmExt(src) || ext(uint8(base)) {
		buf.AppendU8(rex(false, xmmExt(src), false, ext(uint8(base))))
	}
	buf.AppendU8(0x0F)
	buf.AppendU8(0xD6)
	emitMemOperand(buf, byte(src&0x7), base, disp)
}

// Movapd emits `movapd dst, src` (66 0F 28 /r), an aligned 128-bit
// register move used to materialize vector operands before an
// arithmetic op.
func Movapd(buf *codebuf.Buffer, dst, src XMM) {
	sse2op(buf, 0x66, 0x28, dst, src)
}

// Packed integer add/sub, by element size.
func Paddb(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xFC, dst, src) }
func Paddw(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xFD, dst, src) }
func Paddd(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xFE, dst, src) }
func Paddq(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xD4, dst, src) }
func Psubb(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xF8, dst, src) }
func Psubw(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xF9, dst, src) }
func Psubd(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xFA, dst, src) }
func Psubq(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xFB, dst, src) }

// Bitwise packed ops.
func Pand(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xDB, dst, src) }
func Por(buf *codebuf.Buffer, dst, src XMM)  { sse2op(buf, 0x66, 0xEB, dst, src) }
func Pxor(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xEF, dst, src) }

// Packed multiply.
func Pmullw(buf *codebuf.Buffer, dst, src XMM)  { sse2op(buf, 0x66, 0xD5, dst, src) }
func Pmulld(buf *codebuf.Buffer, dst, src XMM)  { sse3op(buf, 0x66, 0x38, 0x40, dst, src) }
func Pmulhw(buf *codebuf.Buffer, dst, src XMM)  { sse2op(buf, 0x66, 0xE5, dst, src) }
func Pmulhuw(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xE4, dst, src) }

// Packed compare-for-equal / compare-greater-than, by element size.
// CMGE/CMHI/CMHS are synthesized in translate/simd.go from these.
func Pcmpeqb(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0x74, dst, src) }
func Pcmpeqw(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0x75, dst, src) }
func Pcmpeqd(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0x76, dst, src) }
func Pcmpeqq(buf *codebuf.Buffer, dst, src XMM) { sse3op(buf, 0x66, 0x38, 0x29, dst, src) }
func Pcmpgtb(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0x64, dst, src) }
func Pcmpgtw(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0x65, dst, src) }
func Pcmpgtd(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0x66, dst, src) }
func Pcmpgtq(buf *codebuf.Buffer, dst, src XMM) { sse3op(buf, 0x66, 0x38, 0x37, dst, src) }

// Pshufb emits the SSSE3 byte-shuffle (66 0F 38 00 /r). No translator
// emits it; LD2/LD3/LD4 are not decoded.
func Pshufb(buf *codebuf.Buffer, dst, src XMM) {
	sse3op(buf, 0x66, 0x38, 0x00, dst, src)
}

// Pshufd emits `pshufd dst, src, imm8` (66 0F 70 /r ib), a 32-bit-lane
// permute. No translator emits it.
func Pshufd(buf *codebuf.Buffer, dst, src XMM, imm uint8) {
	sse2op(buf, 0x66, 0x70, dst, src)
	buf.AppendU8(imm)
}

// Cmpps/Cmppd emit the packed-float compare with an immediate
// predicate (0F/66 0F C2 /r ib); predicate values follow the standard
// x86 table (0=EQ, 1=LT, 2=LE, 4=NEQ, 5=NLT, 6=NLE).
func Cmpps(buf *codebuf.Buffer, dst, src XMM, predicate uint8) {
	sse2op(buf, 0x00, 0xC2, dst, src)
	buf.AppendU8(predicate)
}

func Cmppd(buf *codebuf.Buffer, dst, src XMM, predicate uint8) {
	sse2op(buf, 0x66, 0xC2, dst, src)
	buf.AppendU8(predicate)
}

// Addps/Mulps emit packed single-precision float add/multiply.
func Addps(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x00, 0x58, dst, src) }
func Mulps(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x00, 0x59, dst, src) }

// Addpd/Mulpd are the double-precision equivalents, needed for
// 2D-lane (element size 64) float vector ops.
func Addpd(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0x58, dst, src) }
func Mulpd(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0x59, dst, src) }

// Pandn emits `pandn dst, src` (dst = ~dst & src), used by the
// BSL decomposition in translate/simd.go.
func Pandn(buf *codebuf.Buffer, dst, src XMM) { sse2op(buf, 0x66, 0xDF, dst, src) }

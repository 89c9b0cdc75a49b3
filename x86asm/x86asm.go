// Package x86asm encodes a chosen subset of x86-64 instructions as
// bytes into a codebuf.Buffer, one file per instruction family. It
// never validates operand legality beyond register-index range:
// errors are reported at the caller's decoder/translator boundary,
// not re-checked here.
package x86asm

import "github.com/lookbusy1344/arm64jit/codebuf"

// Reg identifies one of the 16 general-purpose x86-64 registers by
// its three-bit encoding plus the REX extension bit (0-15).
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// XMM identifies one of the 16 SSE registers (0-15); AVX-only indices
// 16-31 are accepted for argument-range purposes but have no VEX
// encoding path here since the SSE2/SSSE3 subset never needs more
// than 16.
type XMM uint8

// Condition is an x86 Jcc/CMOVcc condition code, stored as its four-bit
// encoding.
type Condition uint8

const (
	CondO Condition = iota
	CondNO
	CondB // CF=1 (JB/JC/JNAE)
	CondAE
	CondE
	CondNE
	CondBE
	CondA
	CondS
	CondNS
	CondP
	CondNP
	CondL
	CondGE
	CondG
	CondLE
)

const rexBase = 0x40

// rex builds a REX prefix byte. w selects 64-bit operand size; r, x, b
// are the extension bits for ModRM.reg, SIB.index and ModRM.rm/SIB.base
// respectively, each true when the corresponding register index is >= 8.
func rex(w, r, x, b bool) byte {
	v := byte(rexBase)
	if w {
		v |= 1 << 3
	}
	if r {
		v |= 1 << 2
	}
	if x {
		v |= 1 << 1
	}
	if b {
		v |= 1
	}
	return v
}

func ext(reg uint8) bool { return reg&0x8 != 0 }
func lo3(reg uint8) byte { return byte(reg & 0x7) }

// modrmReg builds a ModRM byte for mod=11 (register-direct) addressing.
func modrmReg(regField, rm uint8) byte {
	return 0xC0 | lo3(regField)<<3 | lo3(rm)
}

// emitRex emits a REX prefix when 64-bit operands (w) or extended
// registers require one, and nothing otherwise.
func emitRex(buf *codebuf.Buffer, w bool, r, x, b Reg) {
	if w || ext(uint8(r)) || ext(uint8(x)) || ext(uint8(b)) {
		buf.AppendU8(rex(w, ext(uint8(r)), ext(uint8(x)), ext(uint8(b))))
	}
}

// MovRegReg emits `mov dst, src` (or `mov32` when w is false).
func MovRegReg(buf *codebuf.Buffer, w bool, dst, src Reg) {
	emitRex(buf, w, src, 0, dst)
	buf.AppendU8(0x89) // MOV r/m, r
	buf.AppendU8(modrmReg(uint8(src), uint8(dst)))
}

// MovRegImm64 emits `movabs dst, imm64` (REX.W + B8+rd id).
func MovRegImm64(buf *codebuf.Buffer, dst Reg, imm uint64) {
	emitRex(buf, true, 0, 0, dst)
	buf.AppendU8(0xB8 + lo3(uint8(dst)))
	buf.AppendU64LE(imm)
}

// MovRegImm32 emits a 32-bit `mov dst, imm32`, zero-extending into the
// 64-bit destination (the standard x86-64 rule for 32-bit writes).
func MovRegImm32(buf *codebuf.Buffer, dst Reg, imm uint32) {
	if ext(uint8(dst)) {
		buf.AppendU8(rex(false, false, false, true))
	}
	buf.AppendU8(0xB8 + lo3(uint8(dst)))
	buf.AppendU32LE(imm)
}

// MovMemReg emits `mov [base+disp32], src`.
func MovMemReg(buf *codebuf.Buffer, w bool, base Reg, disp int32, src Reg) {
	emitRex(buf, w, src, 0, base)
	buf.AppendU8(0x89)
	emitMemOperand(buf, uint8(src), base, disp)
}

// MovRegMem emits `mov dst, [base+disp32]`.
func MovRegMem(buf *codebuf.Buffer, w bool, dst Reg, base Reg, disp int32) {
	emitRex(buf, w, dst, 0, base)
	buf.AppendU8(0x8B)
	emitMemOperand(buf, uint8(dst), base, disp)
}

// emitMemOperand writes a ModRM(+SIB)(+disp32) sequence addressing
// [base+disp32], always using the disp32 form for simplicity (the
// translator never needs disp8 packing savings).
func emitMemOperand(buf *codebuf.Buffer, regField uint8, base Reg, disp int32) {
	rm := lo3(uint8(base))
	modrm := byte(0x80) | regField<<3 | rm // mod=10 -> disp32
	buf.AppendU8(modrm)
	if rm == 4 { // RSP/R12 require a SIB byte
		buf.AppendU8(0x24) // SIB: scale=0 index=none base=rm
	}
	buf.AppendU32LE(uint32(disp))
}

// MovMemImm8 emits `mov byte [base+disp32], imm8` (C6 /0 ib), for
// writing single-byte guest.State fields (the bool flags) without
// touching the three bytes beside them a 32-bit store would clobber.
func MovMemImm8(buf *codebuf.Buffer, base Reg, disp int32, imm uint8) {
	if ext(uint8(base)) {
		buf.AppendU8(rex(false, false, false, true))
	}
	buf.AppendU8(0xC6)
	emitMemOperand(buf, 0, base, disp)
	buf.AppendU8(imm)
}

// PushReg emits `push reg`.
func PushReg(buf *codebuf.Buffer, reg Reg) {
	if ext(uint8(reg)) {
		buf.AppendU8(rex(false, false, false, true))
	}
	buf.AppendU8(0x50 + lo3(uint8(reg)))
}

// PopReg emits `pop reg`.
func PopReg(buf *codebuf.Buffer, reg Reg) {
	if ext(uint8(reg)) {
		buf.AppendU8(rex(false, false, false, true))
	}
	buf.AppendU8(0x58 + lo3(uint8(reg)))
}

// Pushfq emits `pushfq`.
func Pushfq(buf *codebuf.Buffer) {
	buf.AppendU8(0x9C)
}

// Popfq emits `popfq`.
func Popfq(buf *codebuf.Buffer) {
	buf.AppendU8(0x9D)
}

// Nop emits a single-byte NOP.
func Nop(buf *codebuf.Buffer) {
	buf.AppendU8(0x90)
}

// Ret emits `ret`.
func Ret(buf *codebuf.Buffer) {
	buf.AppendU8(0xC3)
}

package x86asm

import "github.com/lookbusy1344/arm64jit/codebuf"

// ALUOp enumerates the eight x86 "group 1" ALU operations that share
// the same /digit encoding for the immediate forms.
type ALUOp uint8

const (
	ALUAdd ALUOp = iota
	ALUOr
	ALUAdc
	ALUSbb
	ALUAnd
	ALUSub
	ALUXor
	ALUCmp
)

var aluRegRegOpcode = [...]byte{0x01, 0x09, 0x11, 0x19, 0x21, 0x29, 0x31, 0x39}

// AluRegReg emits `op dst, src` (dst op= src), e.g. ALUAdd -> `add dst, src`.
// translate/flags.go repacks the EFLAGS these set into the guest NZCV;
// after a subtraction it inverts CF, since x86 and ARM carry disagree there.
func AluRegReg(buf *codebuf.Buffer, w bool, op ALUOp, dst, src Reg) {
	emitRex(buf, w, src, 0, dst)
	buf.AppendU8(aluRegRegOpcode[op])
	buf.AppendU8(modrmReg(uint8(src), uint8(dst)))
}

// AluRegImm32 emits `op dst, imm32` using the 0x81 /digit encoding.
func AluRegImm32(buf *codebuf.Buffer, w bool, op ALUOp, dst Reg, imm uint32) {
	emitRex(buf, w, 0, 0, dst)
	buf.AppendU8(0x81)
	buf.AppendU8(0xC0 | byte(op)<<3 | lo3(uint8(dst)))
	buf.AppendU32LE(imm)
}

// TestRegReg emits `test dst, src` (AND that only updates flags).
func TestRegReg(buf *codebuf.Buffer, w bool, dst, src Reg) {
	emitRex(buf, w, src, 0, dst)
	buf.AppendU8(0x85)
	buf.AppendU8(modrmReg(uint8(src), uint8(dst)))
}

// TestRegImm32 emits `test dst, imm32` using the 0xF7 /0 encoding.
func TestRegImm32(buf *codebuf.Buffer, w bool, dst Reg, imm uint32) {
	emitRex(buf, w, 0, 0, dst)
	buf.AppendU8(0xF7)
	buf.AppendU8(0xC0 | lo3(uint8(dst)))
	buf.AppendU32LE(imm)
}

// ImulRegReg emits the two-operand form `imul dst, src` (dst *= src),
// 0F AF /r.
func ImulRegReg(buf *codebuf.Buffer, w bool, dst, src Reg) {
	emitRex(buf, w, dst, 0, src)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xAF)
	buf.AppendU8(modrmReg(uint8(dst), uint8(src)))
}

// Cqo emits `cqo` (sign-extend RAX into RDX:RAX), the setup step
// idiv/sdiv translation needs before a 64-bit IDIV.
func Cqo(buf *codebuf.Buffer) {
	buf.AppendU8(rex(true, false, false, false))
	buf.AppendU8(0x99)
}

// Cdq emits `cdq` (sign-extend EAX into EDX:EAX), the 32-bit form.
func Cdq(buf *codebuf.Buffer) {
	buf.AppendU8(0x99)
}

// IdivReg emits `idiv src` (signed divide RDX:RAX by src), 0xF7 /7.
func IdivReg(buf *codebuf.Buffer, w bool, src Reg) {
	emitRex(buf, w, 0, 0, src)
	buf.AppendU8(0xF7)
	buf.AppendU8(0xF8 | lo3(uint8(src)))
}

// DivReg emits `div src` (unsigned divide RDX:RAX by src), 0xF7 /6.
func DivReg(buf *codebuf.Buffer, w bool, src Reg) {
	emitRex(buf, w, 0, 0, src)
	buf.AppendU8(0xF7)
	buf.AppendU8(0xF0 | lo3(uint8(src)))
}

// NotReg emits `not dst` (one's complement), 0xF7 /2. Used to translate
// BIC/ORN/EON's "negate the second operand" semantics.
func NotReg(buf *codebuf.Buffer, w bool, dst Reg) {
	emitRex(buf, w, 0, 0, dst)
	buf.AppendU8(0xF7)
	buf.AppendU8(0xD0 | lo3(uint8(dst)))
}

// NegReg emits `neg dst` (two's complement), 0xF7 /3. Used by the
// CSNEG translation.
func NegReg(buf *codebuf.Buffer, w bool, dst Reg) {
	emitRex(buf, w, 0, 0, dst)
	buf.AppendU8(0xF7)
	buf.AppendU8(0xD8 | lo3(uint8(dst)))
}

// CmovccRegReg emits `cmovcc dst, src` (0F 40+cc /r): dst = src when
// the condition holds, otherwise unchanged (the 32-bit form still
// zero-extends dst either way, per the x86-64 32-bit-write rule).
func CmovccRegReg(buf *codebuf.Buffer, w bool, cc Condition, dst, src Reg) {
	emitRex(buf, w, dst, 0, src)
	buf.AppendU8(0x0F)
	buf.AppendU8(0x40 + byte(cc))
	buf.AppendU8(modrmReg(uint8(dst), uint8(src)))
}

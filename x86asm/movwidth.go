package x86asm

import "github.com/lookbusy1344/arm64jit/codebuf"

// MovzxRegMem8 emits `movzx dst, byte [base+disp32]` (0F B6 /r),
// zero-extending an 8-bit guest load into a 64-bit host register.
func MovzxRegMem8(buf *codebuf.Buffer, dst Reg, base Reg, disp int32) {
	emitRex(buf, true, dst, 0, base)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xB6)
	emitMemOperand(buf, uint8(dst), base, disp)
}

// MovzxRegMem16 emits `movzx dst, word [base+disp32]` (0F B7 /r).
func MovzxRegMem16(buf *codebuf.Buffer, dst Reg, base Reg, disp int32) {
	emitRex(buf, true, dst, 0, base)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xB7)
	emitMemOperand(buf, uint8(dst), base, disp)
}

// MovsxRegMem8 emits `movsx dst, byte [base+disp32]` (0F BE /r). w
// selects the destination width: 64-bit extends through the whole
// register, 32-bit extends into the low half and zeroes the rest per
// the x86-64 32-bit-write rule.
func MovsxRegMem8(buf *codebuf.Buffer, w bool, dst Reg, base Reg, disp int32) {
	emitRex(buf, w, dst, 0, base)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xBE)
	emitMemOperand(buf, uint8(dst), base, disp)
}

// MovsxRegMem16 emits `movsx dst, word [base+disp32]` (0F BF /r), with
// the same width selection as MovsxRegMem8.
func MovsxRegMem16(buf *codebuf.Buffer, w bool, dst Reg, base Reg, disp int32) {
	emitRex(buf, w, dst, 0, base)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xBF)
	emitMemOperand(buf, uint8(dst), base, disp)
}

// MovsxdRegMem32 emits `movsxd dst, dword [base+disp32]` (63 /r),
// sign-extending a 32-bit guest load into a 64-bit host register.
func MovsxdRegMem32(buf *codebuf.Buffer, dst Reg, base Reg, disp int32) {
	emitRex(buf, true, dst, 0, base)
	buf.AppendU8(0x63)
	emitMemOperand(buf, uint8(dst), base, disp)
}

// Mov8MemReg emits `mov byte [base+disp32], src` (88 /r).
func Mov8MemReg(buf *codebuf.Buffer, base Reg, disp int32, src Reg) {
	if ext(uint8(src)) || ext(uint8(base)) {
		buf.AppendU8(rex(false, ext(uint8(src)), false, ext(uint8(base))))
	}
	buf.AppendU8(0x88)
	emitMemOperand(buf, uint8(src), base, disp)
}

// Mov16MemReg emits `mov word [base+disp32], src` (66 89 /r).
func Mov16MemReg(buf *codebuf.Buffer, base Reg, disp int32, src Reg) {
	buf.AppendU8(0x66)
	emitRex(buf, false, src, 0, base)
	buf.AppendU8(0x89)
	emitMemOperand(buf, uint8(src), base, disp)
}

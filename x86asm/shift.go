package x86asm

import "github.com/lookbusy1344/arm64jit/codebuf"

// ShiftOp enumerates the x86 "group 2" shift/rotate operations, keyed
// by their /digit field.
type ShiftOp uint8

const (
	ShiftRol ShiftOp = 0
	ShiftRor ShiftOp = 1
	ShiftShl ShiftOp = 4
	ShiftShr ShiftOp = 5
	ShiftSar ShiftOp = 7
)

// ShiftRegImm emits `op dst, imm8` (0xC1 /digit ib).
func ShiftRegImm(buf *codebuf.Buffer, w bool, op ShiftOp, dst Reg, imm uint8) {
	emitRex(buf, w, 0, 0, dst)
	buf.AppendU8(0xC1)
	buf.AppendU8(0xC0 | byte(op)<<3 | lo3(uint8(dst)))
	buf.AppendU8(imm)
}

// ShiftRegCL emits `op dst, cl` (0xD3 /digit), the by-register form
// used whenever the shift amount is itself a guest register.
func ShiftRegCL(buf *codebuf.Buffer, w bool, op ShiftOp, dst Reg) {
	emitRex(buf, w, 0, 0, dst)
	buf.AppendU8(0xD3)
	buf.AppendU8(0xC0 | byte(op)<<3 | lo3(uint8(dst)))
}

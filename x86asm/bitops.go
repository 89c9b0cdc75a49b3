package x86asm

import "github.com/lookbusy1344/arm64jit/codebuf"

// Bsf emits `bsf dst, src` (0F BC /r): dst = index of least
// significant set bit in src (undefined when src==0).
func Bsf(buf *codebuf.Buffer, w bool, dst, src Reg) {
	emitRex(buf, w, dst, 0, src)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xBC)
	buf.AppendU8(modrmReg(uint8(dst), uint8(src)))
}

// Bsr emits `bsr dst, src` (0F BD /r): dst = index of most
// significant set bit in src. CLZ is synthesized from BSR plus a
// `(width-1) - result` correction (translateClz in translate/alu.go).
func Bsr(buf *codebuf.Buffer, w bool, dst, src Reg) {
	emitRex(buf, w, dst, 0, src)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xBD)
	buf.AppendU8(modrmReg(uint8(dst), uint8(src)))
}

// Popcnt emits `popcnt dst, src` (F3 0F B8 /r), a direct population
// count with no manual bit-twiddling loop.
func Popcnt(buf *codebuf.Buffer, w bool, dst, src Reg) {
	buf.AppendU8(0xF3)
	emitRex(buf, w, dst, 0, src)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xB8)
	buf.AppendU8(modrmReg(uint8(dst), uint8(src)))
}

// BswapReg emits `bswap reg` (0F C8+rd), reversing byte order across
// the 32- or 64-bit register. Used to translate REV.
func BswapReg(buf *codebuf.Buffer, w bool, reg Reg) {
	emitRex(buf, w, 0, 0, reg)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xC8 + lo3(uint8(reg)))
}

// BitOp enumerates the BT family's /digit selector for the
// immediate-index forms.
type BitOp uint8

const (
	BitTest  BitOp = 4 // BT
	BitSet   BitOp = 5 // BTS
	BitReset BitOp = 6 // BTR
	BitCompl BitOp = 7 // BTC
)

// BtRegImm8 emits `op dst, imm8` from the 0F BA /digit ib family:
// tests (and optionally sets/resets/complements) bit imm8 of dst into
// CF. Used directly for TBZ/TBNZ.
func BtRegImm8(buf *codebuf.Buffer, w bool, op BitOp, dst Reg, bit uint8) {
	emitRex(buf, w, 0, 0, dst)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xBA)
	buf.AppendU8(0xC0 | byte(op)<<3 | lo3(uint8(dst)))
	buf.AppendU8(bit)
}

// btRegRegOpcode maps each BitOp to its register-index-operand
// opcode (0F A3/AB/B3/BB /r); BitTest has no immediate-index-only
// analogue restriction here since the register form exists for all four.
var btRegRegOpcode = map[BitOp]byte{
	BitTest:  0xA3,
	BitSet:   0xAB,
	BitReset: 0xB3,
	BitCompl: 0xBB,
}

// BtRegReg emits `op dst, src` testing (and optionally mutating) the
// bit of dst whose index is held in src.
func BtRegReg(buf *codebuf.Buffer, w bool, op BitOp, dst, src Reg) {
	emitRex(buf, w, src, 0, dst)
	buf.AppendU8(0x0F)
	buf.AppendU8(btRegRegOpcode[op])
	buf.AppendU8(modrmReg(uint8(src), uint8(dst)))
}

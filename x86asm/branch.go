package x86asm

import "github.com/lookbusy1344/arm64jit/codebuf"

// JccRel32 emits `Jcc rel32` (0F 80+cc id) with a zero rel32
// placeholder and returns the buffer offset of the first displacement
// byte. The caller patches it later with PatchRel32 once the branch
// target's host address is known — either immediately, for an
// in-block target, or deferred through a translation-cache chain slot
// (cache.Entry.Chain) for a cross-block target.
func JccRel32(buf *codebuf.Buffer, cc Condition) (dispOffset int) {
	buf.AppendU8(0x0F)
	buf.AppendU8(0x80 + byte(cc))
	dispOffset = buf.Offset()
	buf.AppendU32LE(0)
	return dispOffset
}

// JmpRel32 emits `jmp rel32` (E9 id) and returns the displacement
// offset for later patching.
func JmpRel32(buf *codebuf.Buffer) (dispOffset int) {
	buf.AppendU8(0xE9)
	dispOffset = buf.Offset()
	buf.AppendU32LE(0)
	return dispOffset
}

// CallRel32 emits `call rel32` (E8 id) and returns the displacement
// offset for later patching.
func CallRel32(buf *codebuf.Buffer) (dispOffset int) {
	buf.AppendU8(0xE8)
	dispOffset = buf.Offset()
	buf.AppendU32LE(0)
	return dispOffset
}

// CallReg emits `call reg` (FF /2). No translator emits it: SVC and
// Unknown instructions leave translated code through an epilogue exit.
func CallReg(buf *codebuf.Buffer, reg Reg) {
	if ext(uint8(reg)) {
		buf.AppendU8(rex(false, false, false, true))
	}
	buf.AppendU8(0xFF)
	buf.AppendU8(modrmReg(2, uint8(reg)))
}

// JmpReg emits `jmp reg` (FF /4).
func JmpReg(buf *codebuf.Buffer, reg Reg) {
	if ext(uint8(reg)) {
		buf.AppendU8(rex(false, false, false, true))
	}
	buf.AppendU8(0xFF)
	buf.AppendU8(modrmReg(4, uint8(reg)))
}

// Rel32Disp computes the signed two's-complement displacement for a
// rel32 field whose first byte lives at host address source, jumping
// to host address target: target - (source + 4).
func Rel32Disp(source, target uintptr) uint32 {
	return uint32(int32(int64(target) - int64(source) - 4))
}

// PatchRel32 backpatches the rel32 field at dispOffset within buf so
// that, once buf's contents are installed starting at regionBase, the
// displacement resolves to target.
func PatchRel32(buf *codebuf.Buffer, dispOffset int, regionBase, target uintptr) {
	source := regionBase + uintptr(dispOffset)
	buf.PatchU32LE(dispOffset, Rel32Disp(source, target))
}

// PatchRel32Local backpatches a rel32 field whose target lies within
// the same buffer, at targetOffset. The displacement only depends on
// the distance between the two offsets, so this needs no host address
// and is safe to call before the block has a final home in the code
// region.
func PatchRel32Local(buf *codebuf.Buffer, dispOffset, targetOffset int) {
	disp := int32(targetOffset - (dispOffset + 4))
	buf.PatchU32LE(dispOffset, uint32(disp))
}

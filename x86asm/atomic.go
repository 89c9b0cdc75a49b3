package x86asm

import "github.com/lookbusy1344/arm64jit/codebuf"

const lockPrefix = 0xF0

// LockXaddMem emits `lock xadd [base+disp], src`: atomically adds src
// to *base, returns the prior value in src. Used for LDADD/LDADDAL.
func LockXaddMem(buf *codebuf.Buffer, w bool, base Reg, disp int32, src Reg) {
	buf.AppendU8(lockPrefix)
	emitRex(buf, w, src, 0, base)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xC1)
	emitMemOperand(buf, uint8(src), base, disp)
}

// LockCmpxchgMem emits `lock cmpxchg [base+disp], src`: compares RAX
// with *base; on equal stores src and sets ZF, otherwise loads *base
// into RAX and clears ZF. Used for CAS, for STLXR (a single attempt),
// and as the core of the LDCLR/LDSET/LDUMAX/LDUMIN retry loops.
func LockCmpxchgMem(buf *codebuf.Buffer, w bool, base Reg, disp int32, src Reg) {
	buf.AppendU8(lockPrefix)
	emitRex(buf, w, src, 0, base)
	buf.AppendU8(0x0F)
	buf.AppendU8(0xB1)
	emitMemOperand(buf, uint8(src), base, disp)
}

// XchgMem emits `xchg [base+disp], src`: memory-operand XCHG is
// always atomic on x86 even without an explicit LOCK prefix. Used for
// SWP.
func XchgMem(buf *codebuf.Buffer, w bool, base Reg, disp int32, src Reg) {
	emitRex(buf, w, src, 0, base)
	buf.AppendU8(0x87)
	emitMemOperand(buf, uint8(src), base, disp)
}

// LockOrMem / LockAndMem emit `lock or`/`lock and [base+disp], src`,
// used for LDSET and LDCLR (LDCLR's caller complements src first).
func LockOrMem(buf *codebuf.Buffer, w bool, base Reg, disp int32, src Reg) {
	lockAluMem(buf, w, 0x09, base, disp, src)
}

func LockAndMem(buf *codebuf.Buffer, w bool, base Reg, disp int32, src Reg) {
	lockAluMem(buf, w, 0x21, base, disp, src)
}

func lockAluMem(buf *codebuf.Buffer, w bool, opcode byte, base Reg, disp int32, src Reg) {
	buf.AppendU8(lockPrefix)
	emitRex(buf, w, src, 0, base)
	buf.AppendU8(opcode)
	emitMemOperand(buf, uint8(src), base, disp)
}

// LockCmpxchg16bMem emits `lock cmpxchg16b [base+disp]` (F0 REX.W 0F
// C7 /1): atomically compares RDX:RAX with the 16-byte operand, storing
// RCX:RBX on equality and loading the memory value into RDX:RAX
// otherwise. Used for the 64-bit CASP pair compare-and-swap.
func LockCmpxchg16bMem(buf *codebuf.Buffer, base Reg, disp int32) {
	buf.AppendU8(lockPrefix)
	buf.AppendU8(rex(true, false, false, ext(uint8(base))))
	buf.AppendU8(0x0F)
	buf.AppendU8(0xC7)
	emitMemOperand(buf, 1, base, disp)
}

// Mfence/Lfence/Sfence emit the three x86 memory fences. DMB and DSB
// both map to MFENCE (the conservative full fence); ISB maps to
// LFENCE followed by a CPUID serializing instruction, see
// translate/atomic.go.
func Mfence(buf *codebuf.Buffer) {
	buf.AppendU8(0x0F)
	buf.AppendU8(0xAE)
	buf.AppendU8(0xF0)
}

func Lfence(buf *codebuf.Buffer) {
	buf.AppendU8(0x0F)
	buf.AppendU8(0xAE)
	buf.AppendU8(0xE8)
}

func Sfence(buf *codebuf.Buffer) {
	buf.AppendU8(0x0F)
	buf.AppendU8(0xAE)
	buf.AppendU8(0xF8)
}

// Cpuid emits `cpuid`, the serializing instruction ISB decomposes
// into alongside LFENCE.
func Cpuid(buf *codebuf.Buffer) {
	buf.AppendU8(0x0F)
	buf.AppendU8(0xA2)
}

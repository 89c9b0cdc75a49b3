package translate

import (
	"github.com/lookbusy1344/arm64jit/arm64asm"
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// sysRegOffset maps the system registers this module supports to their
// guest.State offset. NZCV already has a dedicated flag-bearing-
// instruction path; MRS/MSR NZCV is the same packed word,
// not a second copy of the flags.
func sysRegOffset(reg arm64asm.SysReg) int32 {
	switch reg {
	case arm64asm.SysRegFPCR:
		return offFPCR
	case arm64asm.SysRegFPSR:
		return offFPSR
	case arm64asm.SysRegNZCV:
		return offNZCV
	default:
		return offFPCR // unreachable: decodeSysRegMove never produces SysRegUnknown
	}
}

// System translates the System class: SVC, which hands off to the
// syscall bridge, and MRS/MSR, which move fpcr/fpsr/nzcv to or from a
// general register. It reports whether the instruction closes the
// block (true only for SVC, which must exit translated code so the
// dispatcher can run Bridge.Dispatch on the host side — a JIT'd CALL
// straight into a Go function has no workable calling-convention
// bridge here, so the epilogue pattern emitFaultTrampolineCall
// already uses for Unknown instructions is reused, with
// guest.State.SyscallPending standing in for AbortPending).
func System(buf *codebuf.Buffer, blk *Block, f arm64asm.SystemFields, pc, nextPC uint64) bool {
	switch f.Op {
	case arm64asm.SysSVC:
		storePCImm(buf, nextPC, scratch0)
		x86asm.MovMemImm8(buf, StateReg, offSyscallPending, 1)
		emitExitJump(buf, blk, PatchEpilogue, 0, -1)
		return true

	case arm64asm.SysMRS:
		off := sysRegOffset(f.Reg)
		x86asm.MovRegMem(buf, false, scratch0, StateReg, off)
		storeReg(buf, f.Rt, scratch0, true)
		return false

	case arm64asm.SysMSR:
		off := sysRegOffset(f.Reg)
		loadReg(buf, scratch0, f.Rt, true)
		x86asm.MovMemReg(buf, false, StateReg, off, scratch0)
		return false
	}
	return false
}

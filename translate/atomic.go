package translate

import (
	"github.com/lookbusy1344/arm64jit/arm64asm"
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/guest"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// Atomic translates the barrier, exclusive, compare-and-swap and LSE
// atomic-memory-op forms. x86-64's own memory model is already at least as
// strong as ARM64's for these purposes (TSO vs weakly-ordered), so the
// barrier forms degrade to an x86 fence of matching or stronger
// strength rather than a no-op, keeping the translation correct even
// though it's more conservative than strictly necessary.
func Atomic(buf *codebuf.Buffer, f arm64asm.AtomicFields) {
	w := f.Size == 64

	switch f.Op {
	case arm64asm.OpDMB, arm64asm.OpDSB:
		x86asm.Mfence(buf)
	case arm64asm.OpISB:
		// LFENCE for the ordering half, CPUID for pipeline
		// serialization. CPUID clobbers RAX/RBX/RCX/RDX,
		// including the live StateReg, so those are saved around it.
		x86asm.Lfence(buf)
		x86asm.PushReg(buf, x86asm.RAX)
		x86asm.PushReg(buf, x86asm.RBX)
		x86asm.PushReg(buf, x86asm.RCX)
		x86asm.PushReg(buf, x86asm.RDX)
		x86asm.AluRegReg(buf, true, x86asm.ALUXor, x86asm.RAX, x86asm.RAX)
		x86asm.Cpuid(buf)
		x86asm.PopReg(buf, x86asm.RDX)
		x86asm.PopReg(buf, x86asm.RCX)
		x86asm.PopReg(buf, x86asm.RBX)
		x86asm.PopReg(buf, x86asm.RAX)

	case arm64asm.OpLDAR:
		loadRegOrSP(buf, scratch1, f.Rn, true)
		x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch1, MemReg)
		accessOne(buf, f.Rt, scratch1, 0, f.Size, false, false, true)
		x86asm.Mfence(buf)

	case arm64asm.OpSTLR:
		// x86 stores already have release order; the trailing MFENCE
		// adds the StoreLoad edge a later acquire load may need.
		loadRegOrSP(buf, scratch1, f.Rn, true)
		x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch1, MemReg)
		accessOne(buf, f.Rt, scratch1, 0, f.Size, false, false, false)
		x86asm.Mfence(buf)

	case arm64asm.OpLDAXR:
		translateLoadExclusive(buf, f)

	case arm64asm.OpSTLXR:
		translateStoreExclusive(buf, f)

	case arm64asm.OpLDADD, arm64asm.OpLDCLR, arm64asm.OpLDSET:
		translateLockedRMW(buf, f, w)

	case arm64asm.OpLDUMAX, arm64asm.OpLDUMIN:
		translateLockedMinMax(buf, f, w)

	case arm64asm.OpSWP:
		loadReg(buf, scratch0, f.Rs, true)
		loadRegOrSP(buf, scratch1, f.Rn, true)
		x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch1, MemReg)
		x86asm.XchgMem(buf, w, scratch1, 0, scratch0)
		storeReg(buf, f.Rt, scratch0, w)

	case arm64asm.OpCAS:
		loadReg(buf, x86asm.RAX, f.Rs, true) // comparand in RAX per CMPXCHG's implicit operand
		loadRegOrSP(buf, scratch1, f.Rn, true)
		x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch1, MemReg)
		loadReg(buf, scratch3, f.Rt, true)
		x86asm.LockCmpxchgMem(buf, w, scratch1, 0, scratch3)
		storeReg(buf, f.Rs, x86asm.RAX, w)

	case arm64asm.OpCASP:
		translateCASPair(buf, f)
	}
}

// translateLoadExclusive arms the local exclusive monitor: it records
// the guest address and the loaded value in guest state, so the paired
// STLXR's CMPXCHG can detect an intervening writer.
func translateLoadExclusive(buf *codebuf.Buffer, f arm64asm.AtomicFields) {
	loadRegOrSP(buf, scratch1, f.Rn, true)
	x86asm.MovMemReg(buf, true, StateReg, offExclAddr, scratch1)
	x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch1, MemReg)

	switch f.Size {
	case 8:
		x86asm.MovzxRegMem8(buf, scratch0, scratch1, 0)
	case 16:
		x86asm.MovzxRegMem16(buf, scratch0, scratch1, 0)
	case 32:
		x86asm.MovRegMem(buf, false, scratch0, scratch1, 0)
	default:
		x86asm.MovRegMem(buf, true, scratch0, scratch1, 0)
	}
	storeReg(buf, f.Rt, scratch0, true)
	x86asm.MovMemReg(buf, true, StateReg, offExclVal, scratch0)
	x86asm.Mfence(buf)
}

// translateStoreExclusive attempts the conditional store: LOCK CMPXCHG
// against the monitor's recorded value. The status register Rs gets 0
// when the swap won and 1 when another writer got there first.
func translateStoreExclusive(buf *codebuf.Buffer, f arm64asm.AtomicFields) {
	w := f.Size == 64

	loadRegOrSP(buf, scratch1, f.Rn, true)
	x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch1, MemReg)
	x86asm.MovRegMem(buf, true, x86asm.RAX, StateReg, offExclVal)
	loadReg(buf, scratch3, f.Rt, true)
	x86asm.LockCmpxchgMem(buf, w, scratch1, 0, scratch3)

	// MOV imm doesn't touch flags, so ZF from the CMPXCHG survives the
	// success-path constant load.
	x86asm.MovRegImm32(buf, scratch0, 0)
	ok := x86asm.JccRel32(buf, x86asm.CondE)
	x86asm.MovRegImm32(buf, scratch0, 1)
	x86asm.PatchRel32Local(buf, ok, buf.Offset())
	storeReg(buf, f.Rs, scratch0, true)
}

// translateCASPair emits CASP. The 32-bit pair form fits in one 64-bit
// LOCK CMPXCHG with Rs/Rs+1 packed as the low/high halves; the 64-bit
// form needs CMPXCHG16B, whose RBX operand collides with the live
// StateReg and is saved around the instruction.
func translateCASPair(buf *codebuf.Buffer, f arm64asm.AtomicFields) {
	if f.Size == 32 {
		loadRegOrSP(buf, scratch3, f.Rn, true)
		x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch3, MemReg)

		loadReg(buf, x86asm.RAX, f.Rs, false)
		loadReg(buf, scratch1, f.Rs+1, false)
		x86asm.ShiftRegImm(buf, true, x86asm.ShiftShl, scratch1, 32)
		x86asm.AluRegReg(buf, true, x86asm.ALUOr, x86asm.RAX, scratch1)

		loadReg(buf, scratch4, f.Rt, false)
		loadReg(buf, scratch1, f.Rt+1, false)
		x86asm.ShiftRegImm(buf, true, x86asm.ShiftShl, scratch1, 32)
		x86asm.AluRegReg(buf, true, x86asm.ALUOr, scratch4, scratch1)

		x86asm.LockCmpxchgMem(buf, true, scratch3, 0, scratch4)

		storeReg(buf, f.Rs, x86asm.RAX, false)
		x86asm.ShiftRegImm(buf, true, x86asm.ShiftShr, x86asm.RAX, 32)
		storeReg(buf, f.Rs+1, x86asm.RAX, false)
		return
	}

	// All guest-state reads happen before RBX (StateReg) is repurposed
	// as CMPXCHG16B's low new-value operand.
	loadRegOrSP(buf, scratch3, f.Rn, true)
	x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch3, MemReg)
	loadReg(buf, x86asm.RAX, f.Rs, true)
	loadReg(buf, x86asm.RDX, f.Rs+1, true)
	loadReg(buf, scratch4, f.Rt, true)
	loadReg(buf, x86asm.RCX, f.Rt+1, true)

	x86asm.PushReg(buf, x86asm.RBX)
	x86asm.MovRegReg(buf, true, x86asm.RBX, scratch4)
	x86asm.LockCmpxchg16bMem(buf, scratch3, 0)
	x86asm.PopReg(buf, x86asm.RBX)

	storeReg(buf, f.Rs, x86asm.RAX, true)
	storeReg(buf, f.Rs+1, x86asm.RDX, true)
}

func translateLockedRMW(buf *codebuf.Buffer, f arm64asm.AtomicFields, w bool) {
	loadReg(buf, scratch0, f.Rs, true)
	loadRegOrSP(buf, scratch1, f.Rn, true)
	x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch1, MemReg)
	switch f.Op {
	case arm64asm.OpLDADD:
		x86asm.LockXaddMem(buf, w, scratch1, 0, scratch0)
	case arm64asm.OpLDCLR:
		// The STCLR alias (Rt = XZR) discards the loaded value, so a
		// plain LOCK AND of the complemented mask suffices. The
		// value-returning form needs a CMPXCHG loop: AND doesn't hand
		// back the prior value the way XADD does.
		if f.Rt == guest.ZeroRegister {
			x86asm.NotReg(buf, w, scratch0)
			x86asm.LockAndMem(buf, w, scratch1, 0, scratch0)
			return
		}
		translateRMWLoop(buf, f, w, func(newVal x86asm.Reg) {
			x86asm.NotReg(buf, w, newVal)
			x86asm.AluRegReg(buf, w, x86asm.ALUAnd, newVal, x86asm.RAX)
		})
		return
	case arm64asm.OpLDSET:
		if f.Rt == guest.ZeroRegister {
			x86asm.LockOrMem(buf, w, scratch1, 0, scratch0)
			return
		}
		translateRMWLoop(buf, f, w, func(newVal x86asm.Reg) {
			x86asm.AluRegReg(buf, w, x86asm.ALUOr, newVal, x86asm.RAX)
		})
		return
	}
	storeReg(buf, f.Rt, scratch0, w)
}

// translateRMWLoop is the generic LOCK CMPXCHG retry loop for the LSE
// operations with no single-instruction x86 equivalent that also
// returns the prior value. compute receives the register pre-loaded
// with Rs and must leave the new memory value in it, reading the
// observed old value from RAX.
func translateRMWLoop(buf *codebuf.Buffer, f arm64asm.AtomicFields, w bool, compute func(newVal x86asm.Reg)) {
	loadRegOrSP(buf, scratch1, f.Rn, true)
	x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch1, MemReg)
	loadReg(buf, scratch2, f.Rs, true)

	retry := buf.Offset()
	x86asm.MovRegMem(buf, w, x86asm.RAX, scratch1, 0)
	x86asm.MovRegReg(buf, true, scratch3, scratch2)
	compute(scratch3)
	x86asm.LockCmpxchgMem(buf, w, scratch1, 0, scratch3)
	retryJump := x86asm.JccRel32(buf, x86asm.CondNE)
	x86asm.PatchRel32Local(buf, retryJump, retry)

	storeReg(buf, f.Rt, x86asm.RAX, w)
}

// translateLockedMinMax has no single-instruction x86 equivalent, so it
// loads the current value, computes the new one with a compare, and
// retries with LOCK CMPXCHG until it wins the race.
func translateLockedMinMax(buf *codebuf.Buffer, f arm64asm.AtomicFields, w bool) {
	loadRegOrSP(buf, scratch1, f.Rn, true)
	x86asm.AluRegReg(buf, true, x86asm.ALUAdd, scratch1, MemReg)
	loadReg(buf, scratch2, f.Rs, true)

	retry := buf.Offset()
	x86asm.MovRegMem(buf, w, x86asm.RAX, scratch1, 0)
	x86asm.MovRegReg(buf, true, scratch3, scratch2)
	x86asm.AluRegReg(buf, w, x86asm.ALUCmp, x86asm.RAX, scratch3)
	// skip overwriting the candidate with the current value when the
	// candidate is already the correct new value: current<=candidate
	// for UMAX, current>=candidate for UMIN.
	cc := x86asm.CondBE
	if f.Op == arm64asm.OpLDUMIN {
		cc = x86asm.CondAE
	}
	skip := x86asm.JccRel32(buf, cc)
	x86asm.MovRegReg(buf, true, scratch3, x86asm.RAX)
	keep := buf.Offset()
	x86asm.PatchRel32Local(buf, skip, keep)

	x86asm.LockCmpxchgMem(buf, w, scratch1, 0, scratch3)
	retryJump := x86asm.JccRel32(buf, x86asm.CondNE)
	x86asm.PatchRel32Local(buf, retryJump, retry)

	storeReg(buf, f.Rt, x86asm.RAX, w)
}

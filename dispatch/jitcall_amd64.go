package dispatch

// jitcall transfers control from Go into translated host code at
// hostPC, first loading the guest-state pointer into RBX and the
// guest-memory base into R12 — the two registers every translate/*
// emitter assumes are live for a block's entire lifetime (see
// translate.StateReg, translate.MemReg). It returns once the block
// chain reaches the epilogue stub, which simply executes RET back to
// the return address this CALL pushes. Plan9 assembly is the only way
// Go can hand control to a computed address under a custom calling
// convention.
//
//go:noescape
func jitcall(hostPC, statePtr, memBase uintptr)

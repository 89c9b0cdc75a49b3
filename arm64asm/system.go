package arm64asm

// decodeSystem recognizes the two supported System-class forms: SVC
// (exception generation, feeding the syscall bridge) and MRS/MSR
// (system register move, the only instructions that touch fpcr/fpsr
// here). The MRS/MSR prefix (bits31-22 = 1101010100) collides with
// decodeBarrier's DMB/DSB/ISB prefix; bit20 disambiguates (0 for the
// barrier family, 1 for register move).
func decodeSystem(word uint32) (Decoded, bool) {
	if d, ok := decodeSVC(word); ok {
		return d, true
	}
	if d, ok := decodeSysRegMove(word); ok {
		return d, true
	}
	return Decoded{}, false
}

// decodeSVC matches the exception-generation encoding's SVC form:
// bits31-24 = 11010100, opc (bits23-21) = 0, opc2 (bits4-2) = 0,
// LL (bits1-0) = 01.
func decodeSVC(word uint32) (Decoded, bool) {
	if bits(word, 31, 24) != 0b11010100 {
		return Decoded{}, false
	}
	if bits(word, 23, 21) != 0 || bits(word, 4, 2) != 0 || bits(word, 1, 0) != 0b01 {
		return Decoded{}, false
	}
	imm16 := uint16(bits(word, 20, 5))
	return Decoded{Kind: KindSystem, Word: word, System: SystemFields{
		Op: SysSVC, Imm16: imm16, Rt: -1,
	}}, true
}

// decodeSysRegMove matches MRS (L=1, register<-sysreg) and MSR
// (L=0, sysreg<-register) against the three system registers this
// module supports: NZCV, FPCR, FPSR. Any other (op1,CRn,CRm,op2)
// combination is left undecoded (KindUnknown), the same outcome the
// decoder gave before this class existed.
func decodeSysRegMove(word uint32) (Decoded, bool) {
	if bits(word, 31, 22) != 0b1101010100 || !bit(word, 20) {
		return Decoded{}, false
	}
	l := bit(word, 21)
	o0 := bit(word, 19)
	op1 := bits(word, 18, 16)
	crn := bits(word, 15, 12)
	crm := bits(word, 11, 8)
	op2 := bits(word, 7, 5)

	if !o0 || op1 != 3 || crn != 4 {
		return Decoded{}, false
	}

	var reg SysReg
	switch {
	case crm == 2 && op2 == 0:
		reg = SysRegNZCV
	case crm == 4 && op2 == 0:
		reg = SysRegFPCR
	case crm == 4 && op2 == 1:
		reg = SysRegFPSR
	default:
		return Decoded{}, false
	}

	op := SysMSR
	if l {
		op = SysMRS
	}
	return Decoded{Kind: KindSystem, Word: word, System: SystemFields{
		Op: op, Reg: reg, Rt: rt(word),
	}}, true
}

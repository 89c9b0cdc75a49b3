package arm64asm

// decodeALU recognizes the data-processing forms the translator
// covers: add/sub (immediate and shifted-register), logical (immediate
// and shifted-register), three-source multiply (MADD/MSUB), SDIV/UDIV,
// and the one-source CLZ/REV family.
func decodeALU(word uint32) (Decoded, bool) {
	if d, ok := decodeAddSubImm(word); ok {
		return d, true
	}
	if d, ok := decodeLogicalImmInst(word); ok {
		return d, true
	}
	if d, ok := decodeAddSubShifted(word); ok {
		return d, true
	}
	if d, ok := decodeLogicalShifted(word); ok {
		return d, true
	}
	if d, ok := decodeMulAddSub(word); ok {
		return d, true
	}
	if d, ok := decodeDiv(word); ok {
		return d, true
	}
	if d, ok := decodeDataProc1Source(word); ok {
		return d, true
	}
	return Decoded{}, false
}

func decodeAddSubImm(word uint32) (Decoded, bool) {
	if bits(word, 28, 23) != 0b100010 {
		return Decoded{}, false
	}
	op := OpADD
	if bit(word, 30) {
		op = OpSUB
	}
	imm := uint64(bits(word, 21, 10))
	if bit(word, 22) {
		imm <<= 12
	}
	return Decoded{Kind: KindALU, Word: word, ALU: ALUFields{
		Sf: sf(word), Rd: rd(word), Rn: rn(word), Rm: -1, Ra: -1,
		Imm: imm, UseImm: true, Opcode: op, SetFlags: bit(word, 29),
	}}, true
}

func decodeLogicalImmInst(word uint32) (Decoded, bool) {
	if bits(word, 28, 23) != 0b100100 {
		return Decoded{}, false
	}
	n := bits(word, 22, 22)
	immr := bits(word, 21, 16)
	imms := bits(word, 15, 10)
	sf64 := sf(word)
	if n == 1 && !sf64 {
		return Decoded{}, false // N=1 only valid for 64-bit operand
	}
	imm := decodeLogicalImm(n, immr, imms, sf64)

	var op ALUOp
	setFlags := false
	switch bits(word, 30, 29) {
	case 0b00:
		op = OpAND
	case 0b01:
		op = OpORR
	case 0b10:
		op = OpEOR
	case 0b11:
		op = OpAND
		setFlags = true
	}
	return Decoded{Kind: KindALU, Word: word, ALU: ALUFields{
		Sf: sf64, Rd: rd(word), Rn: rn(word), Rm: -1, Ra: -1,
		Imm: imm, UseImm: true, Opcode: op, SetFlags: setFlags,
	}}, true
}

func decodeAddSubShifted(word uint32) (Decoded, bool) {
	if bits(word, 28, 24) != 0b01011 || bit(word, 21) {
		return Decoded{}, false
	}
	shiftType := uint8(bits(word, 23, 22))
	if shiftType == 3 {
		return Decoded{}, false // ROR not defined for add/sub
	}
	op := OpADD
	if bit(word, 30) {
		op = OpSUB
	}
	return Decoded{Kind: KindALU, Word: word, ALU: ALUFields{
		Sf: sf(word), Rd: rd(word), Rn: rn(word), Rm: rm(word), Ra: -1,
		ShiftType: shiftType, ShiftAmt: uint8(bits(word, 15, 10)),
		Opcode: op, SetFlags: bit(word, 29),
	}}, true
}

func decodeLogicalShifted(word uint32) (Decoded, bool) {
	if bits(word, 28, 24) != 0b01010 {
		return Decoded{}, false
	}
	negate := bit(word, 21)
	var op ALUOp
	setFlags := false
	switch bits(word, 30, 29) {
	case 0b00:
		op = OpAND
	case 0b01:
		op = OpORR
	case 0b10:
		op = OpEOR
	case 0b11:
		op = OpAND
		setFlags = true
	}
	return Decoded{Kind: KindALU, Word: word, ALU: ALUFields{
		Sf: sf(word), Rd: rd(word), Rn: rn(word), Rm: rm(word), Ra: -1,
		ShiftType: uint8(bits(word, 23, 22)), ShiftAmt: uint8(bits(word, 15, 10)),
		Opcode: op, SetFlags: setFlags, Negate: negate,
	}}, true
}

func decodeMulAddSub(word uint32) (Decoded, bool) {
	if bits(word, 30, 21) != 0b0011011000 {
		return Decoded{}, false
	}
	return Decoded{Kind: KindALU, Word: word, ALU: ALUFields{
		Sf: sf(word), Rd: rd(word), Rn: rn(word), Rm: rm(word), Ra: ra(word),
		Opcode: OpMUL, Negate: bit(word, 15),
	}}, true
}

func decodeDiv(word uint32) (Decoded, bool) {
	if bits(word, 30, 21) != 0b0011010110 || bits(word, 15, 11) != 0b00001 {
		return Decoded{}, false
	}
	op := OpUDIV
	if bit(word, 10) {
		op = OpSDIV
	}
	return Decoded{Kind: KindALU, Word: word, ALU: ALUFields{
		Sf: sf(word), Rd: rd(word), Rn: rn(word), Rm: rm(word), Ra: -1,
		Opcode: op,
	}}, true
}

// decodeDataProc1Source recognizes the one-source forms this
// translator maps onto host bit instructions: CLZ (opcode 000100) and
// REV (000011 for 64-bit, 000010 for 32-bit).
// RBIT/REV16/CLS stay undecoded; the translator has no host sequence
// short enough to be worth emitting for them.
func decodeDataProc1Source(word uint32) (Decoded, bool) {
	if bits(word, 30, 21) != 0b1011010110 || bits(word, 20, 16) != 0 {
		return Decoded{}, false
	}
	sf64 := sf(word)
	var op ALUOp
	switch bits(word, 15, 10) {
	case 0b000100:
		op = OpCLZ
	case 0b000011:
		if !sf64 {
			return Decoded{}, false
		}
		op = OpREV
	case 0b000010:
		if sf64 {
			return Decoded{}, false // REV32 on a 64-bit register: not decoded
		}
		op = OpREV
	default:
		return Decoded{}, false
	}
	return Decoded{Kind: KindALU, Word: word, ALU: ALUFields{
		Sf: sf64, Rd: rd(word), Rn: rn(word), Rm: -1, Ra: -1, Opcode: op,
	}}, true
}

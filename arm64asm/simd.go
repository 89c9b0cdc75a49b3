package arm64asm

// decodeSIMD recognizes the supported vector forms:
// three-register-same ADD/SUB/AND/ORR/EOR/BSL/CMEQ/CMGT/CMGE/CMHI/CMHS,
// plus single-register LD1/ST1. The three-register-same family follows
// the standard "0 Q U 01110 size 1 Rm opcode 1 Rn Rd" base shape;
// LD1/ST1 follow the load/store-multiple-structures shape
// "0 Q 0011000 L 000000 opcode size Rn Rt" restricted to the
// one-register opcode (0111) with no post-index writeback, the only
// structured-load form this translator emits (the multi-register and
// de-interleave variants are left undecoded, see DESIGN.md).
func decodeSIMD(word uint32) (Decoded, bool) {
	if d, ok := decodeSIMDThreeSame(word); ok {
		return d, true
	}
	if d, ok := decodeSIMDLoadStore(word); ok {
		return d, true
	}
	return Decoded{}, false
}

func decodeSIMDThreeSame(word uint32) (Decoded, bool) {
	if bit(word, 31) || bits(word, 28, 24) != 0b01110 || !bit(word, 21) || !bit(word, 10) {
		return Decoded{}, false
	}
	q := bit(word, 30)
	u := bit(word, 29)
	size := uint8(bits(word, 23, 22))
	opcode := bits(word, 15, 11)

	var op SIMDOp
	switch {
	case opcode == 0b10000 && !u:
		op = SIMDAdd
	case opcode == 0b10000 && u:
		op = SIMDSub
	case opcode == 0b00011 && !u && size == 0b00:
		op = SIMDAnd
	case opcode == 0b00011 && !u && size == 0b10:
		op = SIMDOrr
	case opcode == 0b00011 && u && size == 0b00:
		op = SIMDEor
	case opcode == 0b00011 && u && size == 0b01:
		op = SIMDBsl
	case opcode == 0b10001 && u:
		op = SIMDCmeq
	case opcode == 0b00110 && !u:
		op = SIMDCmgt
	case opcode == 0b00111 && !u:
		op = SIMDCmge
	case opcode == 0b00110 && u:
		op = SIMDCmhi
	case opcode == 0b00111 && u:
		op = SIMDCmhs
	default:
		return Decoded{}, false
	}

	return Decoded{Kind: KindSIMD, Word: word, SIMD: SIMDFields{
		Op: op, Size: size, Q: q, Rd: rd(word), Rn: rn(word), Rm: rm(word), Index: -1,
	}}, true
}

func decodeSIMDLoadStore(word uint32) (Decoded, bool) {
	if bit(word, 31) || bits(word, 29, 23) != 0b0011000 || bits(word, 21, 16) != 0 {
		return Decoded{}, false
	}
	if bits(word, 15, 12) != 0b0111 { // one-register LD1/ST1
		return Decoded{}, false
	}
	q := bit(word, 30)
	size := uint8(bits(word, 11, 10))
	op := SIMDST1
	if bit(word, 22) {
		op = SIMDLD1
	}
	return Decoded{Kind: KindSIMD, Word: word, SIMD: SIMDFields{
		Op: op, Size: size, Q: q, Rd: rt(word), Rn: rn(word), Rm: -1, Index: -1,
	}}, true
}

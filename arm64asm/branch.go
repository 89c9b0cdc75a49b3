package arm64asm

// decodeBranch recognizes the ten control-transfer forms: B, BL, BR,
// BLR, RET, B.cond, CBZ, CBNZ, TBZ, TBNZ.
func decodeBranch(word uint32) (Decoded, bool) {
	switch {
	case bits(word, 30, 26) == 0b00101: // B / BL
		imm := signExtend32(bits(word, 25, 0), 26) << 2
		op := BranchB
		if bit(word, 31) {
			op = BranchBL
		}
		return Decoded{Kind: KindBranch, Word: word, Branch: BranchFields{Op: op, Imm: imm}}, true

	case bits(word, 30, 25) == 0b011010: // CBZ / CBNZ
		imm := signExtend32(bits(word, 23, 5), 19) << 2
		op := BranchCBZ
		if bit(word, 24) {
			op = BranchCBNZ
		}
		return Decoded{Kind: KindBranch, Word: word, Branch: BranchFields{
			Op: op, Imm: imm, Rt: rt(word),
		}}, true

	case bits(word, 30, 25) == 0b011011: // TBZ / TBNZ
		imm := signExtend32(bits(word, 18, 5), 14) << 2
		op := BranchTBZ
		if bit(word, 24) {
			op = BranchTBNZ
		}
		bitNo := uint8(bits(word, 23, 19))
		if bit(word, 31) {
			bitNo |= 1 << 5
		}
		return Decoded{Kind: KindBranch, Word: word, Branch: BranchFields{
			Op: op, Imm: imm, Rt: rt(word), BitNo: bitNo,
		}}, true

	case bits(word, 31, 25) == 0b0101010 && !bit(word, 4): // B.cond
		imm := signExtend32(bits(word, 23, 5), 19) << 2
		return Decoded{Kind: KindBranch, Word: word, Branch: BranchFields{
			Op: BranchBcond, Imm: imm, Cond: uint8(bits(word, 3, 0)),
		}}, true

	case bits(word, 31, 25) == 0b1101011 && bits(word, 20, 16) == 0b11111 && bits(word, 15, 10) == 0 && bits(word, 4, 0) == 0:
		opc := bits(word, 24, 21)
		var op BranchOp
		switch opc {
		case 0b0000:
			op = BranchBR
		case 0b0001:
			op = BranchBLR
		case 0b0010:
			op = BranchRET
		default:
			return Decoded{}, false
		}
		return Decoded{Kind: KindBranch, Word: word, Branch: BranchFields{Op: op, Rt: rn(word)}}, true
	}
	return Decoded{}, false
}

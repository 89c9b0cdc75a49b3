package arm64asm

// decodeMoveWide recognizes MOVZ/MOVN/MOVK: sf opc(2) 100101 hw(2)
// imm16(16) Rd(5).
func decodeMoveWide(word uint32) (Decoded, bool) {
	if bits(word, 28, 23) != 0b100101 {
		return Decoded{}, false
	}
	opc := bits(word, 30, 29)
	if opc == 0b01 {
		return Decoded{}, false // unallocated opc value
	}
	var kind MoveWideKind
	switch opc {
	case 0b00:
		kind = MOVN
	case 0b10:
		kind = MOVZ
	case 0b11:
		kind = MOVK
	}
	hw := bits(word, 22, 21)
	return Decoded{
		Kind: KindMoveWide,
		Word: word,
		MoveWide: MoveWideFields{
			Sf:    sf(word),
			Rd:    rd(word),
			Imm16: uint16(bits(word, 20, 5)),
			Shift: uint8(hw) * 16,
			Kind:  kind,
		},
	}, true
}

package arm64asm

// decodeCondSelect recognizes the conditional-select family:
// sf op S 11010100 Rm cond op2 Rn Rd, with op2 selecting the plain/
// increment variant and op the invert/negate half of the table. S=1
// combinations (CCMP territory) are left undecoded. CSET/CSETM/CINC/
// CINV/CNEG are aliases of these forms with the zero register and an
// inverted condition, so they decode here without special cases.
func decodeCondSelect(word uint32) (Decoded, bool) {
	if bits(word, 28, 21) != 0b11010100 || bit(word, 29) {
		return Decoded{}, false
	}
	op2 := bits(word, 11, 10)
	if op2 > 0b01 {
		return Decoded{}, false
	}

	var op CondSelOp
	switch {
	case !bit(word, 30) && op2 == 0b00:
		op = CSEL
	case !bit(word, 30) && op2 == 0b01:
		op = CSINC
	case bit(word, 30) && op2 == 0b00:
		op = CSINV
	default:
		op = CSNEG
	}

	return Decoded{Kind: KindCondSelect, Word: word, CondSelect: CondSelFields{
		Sf: sf(word), Rd: rd(word), Rn: rn(word), Rm: rm(word),
		Cond: uint8(bits(word, 15, 12)), Op: op,
	}}, true
}

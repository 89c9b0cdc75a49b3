package translate

// Hand-derived ARM64 encodings for the instructions these package
// tests exercise, mirroring arm64asm/decode_test.go's local
// encode-helper style rather than importing a general-purpose
// assembler.

func encodeMovz(sf bool, imm16 uint32, rd uint32) uint32 {
	word := uint32(0b10) << 29 // opc=10 -> MOVZ
	if sf {
		word |= 1 << 31
	}
	word |= 0b100101 << 23
	word |= (imm16 & 0xFFFF) << 5
	word |= rd & 0x1F
	return word
}

func encodeRet(rn uint32) uint32 {
	word := uint32(0b1101011) << 25
	word |= 0b0010 << 21
	word |= 0b11111 << 16
	word |= (rn & 0x1F) << 5
	return word
}

func encodeB(imm26 uint32) uint32 {
	word := uint32(0b00101) << 26
	word |= imm26 & 0x3FFFFFF
	return word
}

func encodeBcond(cond uint32, imm19 uint32) uint32 {
	word := uint32(0b0101010) << 25
	word |= (imm19 & 0x7FFFF) << 5
	word |= cond & 0xF
	return word
}

func encodeCbz(notZero bool, rt uint32, imm19 uint32) uint32 {
	word := uint32(0b011010) << 25
	if notZero {
		word |= 1 << 24
	}
	word |= (imm19 & 0x7FFFF) << 5
	word |= rt & 0x1F
	return word
}

func encodeSvc(imm16 uint32) uint32 {
	word := uint32(0b11010100) << 24
	word |= (imm16 & 0xFFFF) << 5
	word |= 0b01
	return word
}

func encodeMrs(crm, op2, rt uint32) uint32 {
	word := uint32(0b1101010100) << 22
	word |= 1 << 21 // L=1 -> MRS
	word |= 1 << 20
	word |= 1 << 19 // o0
	word |= 0b011 << 16
	word |= 0b0100 << 12
	word |= (crm & 0xF) << 8
	word |= (op2 & 0b111) << 5
	word |= rt & 0x1F
	return word
}

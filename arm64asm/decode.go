package arm64asm

// Decode classifies word by its top-level opcode bits and returns its
// tagged variant. Unrecognized encodings yield Kind == KindUnknown;
// the translator decides the fault policy for those.
func Decode(word uint32) Decoded {
	if d, ok := decodeMoveWide(word); ok {
		return d
	}
	if d, ok := decodeBranch(word); ok {
		return d
	}
	if d, ok := decodeSystem(word); ok {
		return d
	}
	if d, ok := decodeAtomic(word); ok {
		return d
	}
	if d, ok := decodeMemory(word); ok {
		return d
	}
	if d, ok := decodeCondSelect(word); ok {
		return d
	}
	if d, ok := decodeALU(word); ok {
		return d
	}
	if d, ok := decodeSIMD(word); ok {
		return d
	}
	return Decoded{Kind: KindUnknown, Word: word}
}

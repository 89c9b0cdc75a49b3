package arm64asm

// decodeAtomic recognizes the barrier and atomic-memory-operation
// forms. The load/store-exclusive family (size 001000 o2 L o1 Rs o0
// Rt2 Rn Rt), the CAS/CASP compare-and-swap forms sharing its o1=1
// slot, and the LSE atomic-memory-op family (size 111000 A R 1 Rs o3
// opc 00 Rn Rt) all follow the ARMv8 base encoding per the
// architecture reference.
func decodeAtomic(word uint32) (Decoded, bool) {
	if d, ok := decodeBarrier(word); ok {
		return d, true
	}
	if d, ok := decodeExclusive(word); ok {
		return d, true
	}
	if d, ok := decodeLSEAtomic(word); ok {
		return d, true
	}
	return Decoded{}, false
}

func decodeBarrier(word uint32) (Decoded, bool) {
	if bits(word, 31, 22) != 0b1101010100 || bits(word, 21, 12) != 0b0000110011 || bits(word, 4, 0) != 0b11111 {
		return Decoded{}, false
	}
	switch bits(word, 7, 5) {
	case 0b100:
		return Decoded{Kind: KindAtomic, Word: word, Atomic: AtomicFields{Op: OpDSB, Rn: -1, Rt: -1, Rt2: -1, Rs: -1}}, true
	case 0b101:
		return Decoded{Kind: KindAtomic, Word: word, Atomic: AtomicFields{Op: OpDMB, Rn: -1, Rt: -1, Rt2: -1, Rs: -1}}, true
	case 0b110:
		return Decoded{Kind: KindAtomic, Word: word, Atomic: AtomicFields{Op: OpISB, Rn: -1, Rt: -1, Rt2: -1, Rs: -1}}, true
	}
	return Decoded{}, false
}

func decodeExclusive(word uint32) (Decoded, bool) {
	if bits(word, 29, 24) != 0b001000 {
		return Decoded{}, false
	}
	size := 8 << bits(word, 31, 30)
	o2 := bit(word, 23)
	l := bit(word, 22)
	o1 := bit(word, 21)
	o0 := bit(word, 15)

	if o1 {
		// CAS: sz 0010001 L 1 Rs o0 11111 Rn Rt (o2=1).
		// CASP: 0 sz 0010000 L 1 Rs o0 11111 Rn Rt (o2=0, bit31=0,
		// bit30 selects 32- vs 64-bit pair; Rs/Rt must be even).
		if rt2(word) != 0b11111 {
			return Decoded{}, false
		}
		if o2 {
			if bits(word, 31, 30) < 0b10 {
				// CASB/CASH: the translator has no sub-word CMPXCHG
				// emission, so the byte/half forms stay undecoded.
				return Decoded{}, false
			}
			return Decoded{Kind: KindAtomic, Word: word, Atomic: AtomicFields{
				Op: OpCAS, Size: uint8(size), Rs: rm(word), Rt: rt(word), Rt2: -1, Rn: rn(word),
			}}, true
		}
		if bit(word, 31) || rm(word)&1 != 0 || rt(word)&1 != 0 {
			return Decoded{}, false
		}
		pairSize := uint8(32)
		if bit(word, 30) {
			pairSize = 64
		}
		return Decoded{Kind: KindAtomic, Word: word, Atomic: AtomicFields{
			Op: OpCASP, Size: pairSize, Rs: rm(word), Rt: rt(word), Rt2: rt(word) + 1, Rn: rn(word),
		}}, true
	}

	if o2 { // LDAR / STLR: Rs unused (fixed 11111)
		op := OpSTLR
		if l {
			op = OpLDAR
		}
		return Decoded{Kind: KindAtomic, Word: word, Atomic: AtomicFields{
			Op: op, Size: uint8(size), Rs: -1, Rt: rt(word), Rt2: -1, Rn: rn(word),
		}}, true
	}

	if !o0 { // plain STXR/LDXR without ordering semantics: not decoded
		return Decoded{}, false
	}
	if bits(word, 31, 30) < 0b10 {
		return Decoded{}, false // byte/half exclusives: no sub-word CMPXCHG emission
	}

	op := OpSTLXR
	if l {
		op = OpLDAXR
	}
	return Decoded{Kind: KindAtomic, Word: word, Atomic: AtomicFields{
		Op: op, Size: uint8(size), Rs: rm(word), Rt: rt(word), Rt2: -1, Rn: rn(word),
	}}, true
}

func decodeLSEAtomic(word uint32) (Decoded, bool) {
	if bits(word, 29, 24) != 0b111000 || !bit(word, 21) || bits(word, 11, 10) != 0 {
		return Decoded{}, false
	}
	if bits(word, 31, 30) < 0b10 {
		return Decoded{}, false // byte/half LSE forms: no sub-word LOCK emission
	}
	size := 8 << bits(word, 31, 30)
	o3 := bit(word, 15)
	opc := bits(word, 14, 12)

	if o3 {
		if opc != 0 {
			return Decoded{}, false
		}
		return Decoded{Kind: KindAtomic, Word: word, Atomic: AtomicFields{
			Op: OpSWP, Size: uint8(size), Rs: rm(word), Rt: rt(word), Rt2: -1, Rn: rn(word),
		}}, true
	}

	var op AtomicOp
	switch opc {
	case 0b000:
		op = OpLDADD
	case 0b001:
		op = OpLDCLR
	case 0b011:
		op = OpLDSET
	case 0b110:
		op = OpLDUMAX
	case 0b111:
		op = OpLDUMIN
	default:
		return Decoded{}, false
	}
	return Decoded{Kind: KindAtomic, Word: word, Atomic: AtomicFields{
		Op: op, Size: uint8(size), Rs: rm(word), Rt: rt(word), Rt2: -1, Rn: rn(word),
	}}, true
}

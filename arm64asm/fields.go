package arm64asm

// bits extracts the inclusive bit range [hi:lo] from word, one shared
// helper so every decoder file reads the same way.
func bits(word uint32, hi, lo int) uint32 {
	width := hi - lo + 1
	mask := uint32(1)<<uint(width) - 1
	return (word >> uint(lo)) & mask
}

func bit(word uint32, n int) bool {
	return (word>>uint(n))&1 != 0
}

// signExtend32 sign-extends a value of the given bit width to int64.
func signExtend32(value uint32, width int) int64 {
	shift := 32 - width
	return int64(int32(value<<uint(shift))) >> uint(shift)
}

// signExtend64 sign-extends a 64-bit-held value of the given bit
// width to int64.
func signExtend64(value uint64, width int) int64 {
	shift := 64 - width
	return int64(value<<uint(shift)) >> uint(shift)
}

// rd/rn/rm/rt/rt2/ra extract the standard ARMv8 base-encoding
// register fields.
func rd(word uint32) int  { return int(bits(word, 4, 0)) }
func rn(word uint32) int  { return int(bits(word, 9, 5)) }
func rm(word uint32) int  { return int(bits(word, 20, 16)) }
func rt(word uint32) int  { return int(bits(word, 4, 0)) }
func rt2(word uint32) int { return int(bits(word, 14, 10)) }
func ra(word uint32) int  { return int(bits(word, 14, 10)) }

func sf(word uint32) bool { return bit(word, 31) }

// decodeLogicalImm reproduces the standard ARMv8 (N:immr:imms)
// bitmask-immediate decode, producing a 32- or 64-bit mask per sf,
// following the "Logical (immediate)" algorithm in the ARM
// Architecture Reference Manual (DDI 0487).
func decodeLogicalImm(n uint32, immr, imms uint32, sf64 bool) uint64 {
	var width int
	var combined uint32
	if n == 1 {
		width = 64
		combined = imms // imms alone selects element size/run when N=1
	} else {
		// Find the highest zero bit in (N:imms): its position gives
		// log2(element width).
		width = 2
		test := imms
		for i := 5; i >= 0; i-- {
			if test&(1<<uint(i)) == 0 {
				width = 1 << uint(i)
				break
			}
		}
		combined = imms & uint32(width-1)
	}

	runLength := int(combined) + 1
	rotate := int(immr) & (width - 1)

	var elem uint64
	if runLength >= width {
		elem = ^uint64(0) >> uint(64-width)
	} else {
		elem = (uint64(1) << uint(runLength)) - 1
	}
	// rotate right by `rotate` within `width` bits
	if rotate > 0 {
		elem = ((elem >> uint(rotate)) | (elem << uint(width-rotate))) & (^uint64(0) >> uint(64-width))
	}

	// replicate the element pattern to fill 32 or 64 bits
	totalWidth := 32
	if sf64 {
		totalWidth = 64
	}
	result := uint64(0)
	for filled := 0; filled < totalWidth; filled += width {
		result |= elem << uint(filled)
	}
	if !sf64 {
		result &= 0xFFFFFFFF
	}
	return result
}

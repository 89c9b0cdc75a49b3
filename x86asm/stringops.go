package x86asm

import "github.com/lookbusy1344/arm64jit/codebuf"

// StrWidth selects the element width for the x86 string instructions.
type StrWidth uint8

const (
	StrByte StrWidth = iota
	StrWord
	StrDword
	StrQword
)

// emitStrPrefixes writes the prefixes for a string instruction: 0xF3
// (REP) when rep is true, repeating it RCX times, then the operand-size
// prefix the element width needs. No translator emits the string
// instructions.
func emitStrPrefixes(buf *codebuf.Buffer, rep bool, w StrWidth) {
	if rep {
		buf.AppendU8(0xF3)
	}
	if w == StrWord {
		buf.AppendU8(0x66)
	}
	if w == StrQword {
		buf.AppendU8(rex(true, false, false, false))
	}
}

// Movs emits MOVSB/W/D/Q ([RDI] <- [RSI], advancing both by the
// element width according to DF).
func Movs(buf *codebuf.Buffer, rep bool, w StrWidth) {
	emitStrPrefixes(buf, rep, w)
	if w == StrByte {
		buf.AppendU8(0xA4)
	} else {
		buf.AppendU8(0xA5)
	}
}

// Stos emits STOSB/W/D/Q ([RDI] <- AL/AX/EAX/RAX).
func Stos(buf *codebuf.Buffer, rep bool, w StrWidth) {
	emitStrPrefixes(buf, rep, w)
	if w == StrByte {
		buf.AppendU8(0xAA)
	} else {
		buf.AppendU8(0xAB)
	}
}

// Lods emits LODSB/W/D/Q (AL/AX/EAX/RAX <- [RSI]).
func Lods(buf *codebuf.Buffer, rep bool, w StrWidth) {
	emitStrPrefixes(buf, rep, w)
	if w == StrByte {
		buf.AppendU8(0xAC)
	} else {
		buf.AppendU8(0xAD)
	}
}

// Scas emits SCASB/W/D/Q (compares AL/AX/EAX/RAX with [RDI]).
func Scas(buf *codebuf.Buffer, repe bool, w StrWidth) {
	emitStrPrefixes(buf, repe, w)
	if w == StrByte {
		buf.AppendU8(0xAE)
	} else {
		buf.AppendU8(0xAF)
	}
}

// Cmps emits CMPSB/W/D/Q (compares [RSI] with [RDI]).
func Cmps(buf *codebuf.Buffer, repe bool, w StrWidth) {
	emitStrPrefixes(buf, repe, w)
	if w == StrByte {
		buf.AppendU8(0xA6)
	} else {
		buf.AppendU8(0xA7)
	}
}

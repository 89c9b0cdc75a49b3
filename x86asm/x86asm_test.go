package x86asm

import (
	"testing"

	"github.com/lookbusy1344/arm64jit/codebuf"
)

func TestMovRegImm64Encoding(t *testing.T) {
	buf := codebuf.NewScratch(16)
	MovRegImm64(buf, RAX, 0x42)
	got := buf.Bytes()
	// REX.W (0x48) + B8 (MOV RAX, imm64) + 8-byte little-endian imm.
	want := []byte{0x48, 0xB8, 0x42, 0, 0, 0, 0, 0, 0, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (% x)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x (% x)", i, got[i], want[i], got)
		}
	}
}

func TestMovRegImm64ExtendedReg(t *testing.T) {
	buf := codebuf.NewScratch(16)
	MovRegImm64(buf, R9, 1)
	got := buf.Bytes()
	// REX.WB (0x49) + B9 (B8 + R9&7=1).
	if got[0] != 0x49 || got[1] != 0xB9 {
		t.Fatalf("got % x, want REX.WB 49, opcode B9", got)
	}
}

func TestAluRegRegOpcodes(t *testing.T) {
	cases := []struct {
		op   ALUOp
		want byte
	}{
		{ALUAdd, 0x01}, {ALUOr, 0x09}, {ALUAdc, 0x11}, {ALUSbb, 0x19},
		{ALUAnd, 0x21}, {ALUSub, 0x29}, {ALUXor, 0x31}, {ALUCmp, 0x39},
	}
	for _, c := range cases {
		buf := codebuf.NewScratch(8)
		AluRegReg(buf, true, c.op, RAX, RCX)
		got := buf.Bytes()
		if got[1] != c.want {
			t.Fatalf("op %d: opcode = %#x, want %#x", c.op, got[1], c.want)
		}
	}
}

func TestJccRel32ReturnsDispOffsetAndPatches(t *testing.T) {
	buf := codebuf.NewScratch(32)
	Nop(buf)
	Nop(buf)
	off := JccRel32(buf, CondE)
	if off != 4 {
		t.Fatalf("dispOffset = %d, want 4", off)
	}
	const regionBase = 0x1000
	PatchRel32(buf, off, regionBase, regionBase+100)
	got := buf.Bytes()[off : off+4]
	source := uint32(regionBase + off)
	want := uint32(regionBase+100) - (source + 4)
	gotVal := uint32(got[0]) | uint32(got[1])<<8 | uint32(got[2])<<16 | uint32(got[3])<<24
	if gotVal != want {
		t.Fatalf("patched disp = %#x, want %#x", gotVal, want)
	}
}

func TestJccOpcodeByCondition(t *testing.T) {
	buf := codebuf.NewScratch(8)
	JccRel32(buf, CondE)
	got := buf.Bytes()
	if got[0] != 0x0F || got[1] != 0x84 {
		t.Fatalf("JE encoding = % x, want 0F 84 ..", got)
	}
}

func TestPaddbOpcode(t *testing.T) {
	buf := codebuf.NewScratch(8)
	Paddb(buf, XMM(0), XMM(1))
	got := buf.Bytes()
	want := []byte{0x66, 0x0F, 0xFC, modrmXmm(0, 1)}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x (% x)", i, got[i], want[i], got)
		}
	}
}

func TestLockCmpxchgMemHasLockPrefix(t *testing.T) {
	buf := codebuf.NewScratch(8)
	LockCmpxchgMem(buf, true, RDI, 0, RAX)
	got := buf.Bytes()
	if got[0] != lockPrefix {
		t.Fatalf("missing lock prefix: % x", got)
	}
}

func checkBytes(t *testing.T, buf *codebuf.Buffer, want []byte) {
	t.Helper()
	got := buf.Bytes()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (% x)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x (% x)", i, got[i], want[i], got)
		}
	}
}

func TestCmovccEncoding(t *testing.T) {
	buf := codebuf.NewScratch(8)
	CmovccRegReg(buf, true, CondE, RAX, RCX)
	checkBytes(t, buf, []byte{0x48, 0x0F, 0x44, 0xC1})
}

func TestBswapEncoding(t *testing.T) {
	buf := codebuf.NewScratch(8)
	BswapReg(buf, true, RAX)
	checkBytes(t, buf, []byte{0x48, 0x0F, 0xC8})

	buf32 := codebuf.NewScratch(8)
	BswapReg(buf32, false, RCX)
	checkBytes(t, buf32, []byte{0x0F, 0xC9})
}

func TestNegEncoding(t *testing.T) {
	buf := codebuf.NewScratch(8)
	NegReg(buf, true, RDX)
	checkBytes(t, buf, []byte{0x48, 0xF7, 0xDA})
}

func TestBtRegImm8PastBit31(t *testing.T) {
	buf := codebuf.NewScratch(8)
	BtRegImm8(buf, true, BitTest, RAX, 33)
	checkBytes(t, buf, []byte{0x48, 0x0F, 0xBA, 0xE0, 33})
}

func TestCmpxchg16bEncoding(t *testing.T) {
	buf := codebuf.NewScratch(16)
	LockCmpxchg16bMem(buf, RSI, 0)
	checkBytes(t, buf, []byte{0xF0, 0x48, 0x0F, 0xC7, 0x8E, 0, 0, 0, 0})
}

func TestMovqEncodings(t *testing.T) {
	load := codebuf.NewScratch(16)
	MovqMemLoad(load, XMM(2), RAX, 0)
	checkBytes(t, load, []byte{0xF3, 0x0F, 0x7E, 0x90, 0, 0, 0, 0})

	store := codebuf.NewScratch(16)
	MovqMemStore(store, XMM(2), RAX, 0)
	checkBytes(t, store, []byte{0x66, 0x0F, 0xD6, 0x90, 0, 0, 0, 0})
}

func TestRet(t *testing.T) {
	buf := codebuf.NewScratch(1)
	Ret(buf)
	if buf.Bytes()[0] != 0xC3 {
		t.Fatalf("ret = %#x, want 0xC3", buf.Bytes()[0])
	}
}

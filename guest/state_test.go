package guest

import "testing"

func TestZeroRegisterReadsZeroAndDiscardsWrites(t *testing.T) {
	s := New(0x1000)
	s.SetReg(ZeroRegister, 0xDEADBEEF)
	if got := s.Reg(ZeroRegister); got != 0 {
		t.Fatalf("Reg(31) = %#x, want 0", got)
	}
}

func TestRegRoundTrip(t *testing.T) {
	s := New(0)
	s.SetReg(3, 42)
	if got := s.Reg(3); got != 42 {
		t.Fatalf("Reg(3) = %d, want 42", got)
	}
}

func TestReg32ZeroExtends(t *testing.T) {
	s := New(0)
	s.SetReg(5, 0xFFFFFFFFFFFFFFFF)
	s.SetReg32(5, 0x1)
	if got := s.Reg(5); got != 1 {
		t.Fatalf("SetReg32 did not zero-extend: Reg(5) = %#x, want 1", got)
	}
}

func TestFlagsPackAtPSTATEPositions(t *testing.T) {
	s := New(0)
	s.SetFlags(true, false, true, false)
	if s.NZCV != (1<<NBit)|(1<<CBit) {
		t.Fatalf("NZCV = %#032b, want N and C set at bits 31/29", s.NZCV)
	}
	n, z, c, v := s.Flags()
	if !n || z || !c || v {
		t.Fatalf("Flags() = (%v,%v,%v,%v), want (true,false,true,false)", n, z, c, v)
	}
}

func TestVectorLanesByte(t *testing.T) {
	s := New(0)
	for i := 0; i < 16; i++ {
		s.SetVecLane(0, i, LaneByte, uint64(i+1))
	}
	for i := 0; i < 16; i++ {
		if got := s.VecLane(0, i, LaneByte); got != uint64(i+1) {
			t.Fatalf("lane %d = %d, want %d", i, got, i+1)
		}
	}
}

func TestVectorLanesWordAddv4s(t *testing.T) {
	s := New(0)
	a := []uint64{1, 2, 3, 4}
	for i, v := range a {
		s.SetVecLane(0, i, LaneWord, v)
	}
	for i, want := range a {
		if got := s.VecLane(0, i, LaneWord); got != want {
			t.Fatalf("lane %d = %d, want %d", i, got, want)
		}
	}
}

func TestResetRestoresEntryPC(t *testing.T) {
	s := New(0x8000)
	s.SetReg(0, 99)
	s.Reset(0x9000)
	if s.PC != 0x9000 {
		t.Fatalf("PC = %#x, want 0x9000", s.PC)
	}
	if s.Reg(0) != 0 {
		t.Fatalf("Reg(0) = %d, want 0 after reset", s.Reg(0))
	}
}

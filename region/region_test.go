package region

import "testing"

func TestNewClampsToMinSize(t *testing.T) {
	r, err := New(1)
	if err != nil {
		t.Fatalf("New(1): %v", err)
	}
	defer r.Close()

	if r.Stats().Capacity != MinSize {
		t.Fatalf("Capacity = %d, want %d", r.Stats().Capacity, MinSize)
	}
}

func TestNewClampsToMaxSize(t *testing.T) {
	r, err := New(MaxSize + 1<<20)
	if err != nil {
		t.Fatalf("New(MaxSize+1MiB): %v", err)
	}
	defer r.Close()

	if r.Stats().Capacity != MaxSize {
		t.Fatalf("Capacity = %d, want %d", r.Stats().Capacity, MaxSize)
	}
}

func TestAllocBumpsUsedAndReturnsDistinctAddresses(t *testing.T) {
	r, err := New(MinSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	mem1, addr1, ok := r.Alloc(32)
	if !ok {
		t.Fatalf("first Alloc failed")
	}
	mem2, addr2, ok := r.Alloc(32)
	if !ok {
		t.Fatalf("second Alloc failed")
	}
	if len(mem1) != 32 || len(mem2) != 32 {
		t.Fatalf("Alloc returned wrong-length slices: %d, %d", len(mem1), len(mem2))
	}
	if addr2 <= addr1 {
		t.Fatalf("second allocation address %#x did not advance past first %#x", addr2, addr1)
	}
	if st := r.Stats(); st.BlockCount != 2 {
		t.Fatalf("BlockCount = %d, want 2", st.BlockCount)
	}
}

func TestAllocFailsWhenExceedingCapacity(t *testing.T) {
	r, err := New(MinSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if _, _, ok := r.Alloc(MinSize + 1); ok {
		t.Fatalf("Alloc beyond capacity unexpectedly succeeded")
	}
}

func TestResetRewindsBumpPointer(t *testing.T) {
	r, err := New(MinSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	r.Alloc(64)
	r.Reset()

	st := r.Stats()
	if st.Used != 0 || st.BlockCount != 0 {
		t.Fatalf("Reset left Used=%d BlockCount=%d, want 0,0", st.Used, st.BlockCount)
	}
	if st.Resets != 1 {
		t.Fatalf("Resets = %d, want 1", st.Resets)
	}
}

func TestBeginWriteAndFinalizeRoundTrip(t *testing.T) {
	r, err := New(MinSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := r.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite after Finalize: %v", err)
	}

	mem, _, ok := r.Alloc(16)
	if !ok {
		t.Fatalf("Alloc after BeginWrite failed")
	}
	mem[0] = 0xC3 // a RET opcode; just confirms the page accepts writes

	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize after writing: %v", err)
	}
}

func TestBaseMatchesStatsBase(t *testing.T) {
	r, err := New(MinSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if r.Base() != r.Stats().Base {
		t.Fatalf("Base() = %#x, Stats().Base = %#x", r.Base(), r.Stats().Base)
	}
	if r.Base() == 0 {
		t.Fatalf("Base() returned 0 for a live mapping")
	}
}

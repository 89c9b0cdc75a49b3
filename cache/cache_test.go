package cache

import "testing"

func TestLookupMissOnEmptyCache(t *testing.T) {
	c := New(4)
	if _, ok := c.Lookup(0x1000); ok {
		t.Fatalf("Lookup on empty cache reported a hit")
	}
	st := c.Stats()
	if st.Misses != 1 {
		t.Fatalf("Misses = %d, want 1", st.Misses)
	}
}

func TestInstallThenLookupHits(t *testing.T) {
	c := New(4)
	c.Install(0x2000, 0xDEAD0000, 16)

	host, ok := c.Lookup(0x2000)
	if !ok {
		t.Fatalf("Lookup missed an installed entry")
	}
	if host != 0xDEAD0000 {
		t.Fatalf("Lookup host = %#x, want %#x", host, 0xDEAD0000)
	}
	if st := c.Stats(); st.Hits != 1 {
		t.Fatalf("Hits = %d, want 1", st.Hits)
	}
}

func TestPeekDoesNotAffectStatsOrRefCount(t *testing.T) {
	c := New(4)
	c.Install(0x3000, 0xBEEF0000, 4)

	if _, ok := c.Peek(0x3000); !ok {
		t.Fatalf("Peek missed an installed entry")
	}
	if st := c.Stats(); st.Hits != 0 || st.Misses != 0 {
		t.Fatalf("Peek touched stats: %+v", st)
	}

	idx := c.IndexFor(0x3000)
	e, ok := c.EntryAt(idx)
	if !ok {
		t.Fatalf("EntryAt(%d) reported invalid", idx)
	}
	if e.RefCount != 1 {
		t.Fatalf("RefCount = %d after Peek, want 1 (unchanged from Install)", e.RefCount)
	}
}

func TestInstallOverwritesStalePC(t *testing.T) {
	c := New(2) // tiny table forces primary-slot reuse
	c.Install(0x1000, 0xAAAA, 4)
	c.Install(0x1000, 0xBBBB, 8)

	host, ok := c.Lookup(0x1000)
	if !ok || host != 0xBBBB {
		t.Fatalf("Lookup = (%#x, %v), want (0xbbbb, true)", host, ok)
	}
}

func TestHotEntryRetranslationMovesToSecondarySlot(t *testing.T) {
	c := New(4)
	c.Install(0x4000, 0x1000, 4)

	h := hash(0x4000)
	primary := c.index(h)
	secondary := c.index(h ^ (h >> 16))
	if primary == secondary {
		t.Skip("degenerate table size collapses primary and secondary slots")
	}

	// push refcount over the HOT threshold via repeated hits
	for i := 0; i < hotThreshold+1; i++ {
		c.Lookup(0x4000)
	}
	if !isHot(&c.entries[primary]) {
		t.Fatalf("entry did not become HOT after %d hits", hotThreshold+1)
	}

	// re-translating the same block while its primary slot is HOT must
	// retry at the secondary index rather than evict the hot entry
	c.Install(0x4000, 0x2000, 4)

	if c.entries[primary].HostPC != 0x1000 {
		t.Fatalf("HOT primary entry was overwritten: HostPC = %#x, want %#x", c.entries[primary].HostPC, 0x1000)
	}
	if c.entries[secondary].HostPC != 0x2000 {
		t.Fatalf("secondary slot HostPC = %#x, want %#x", c.entries[secondary].HostPC, 0x2000)
	}

	host, ok := c.Lookup(0x4000)
	if !ok {
		t.Fatalf("Lookup(0x4000) missed after HOT-retry install")
	}
	if host != 0x1000 {
		t.Fatalf("Lookup found %#x, want primary entry's 0x1000 (checked first)", host)
	}
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c := New(4)
	c.Install(0x5000, 0xCAFE, 4)
	c.Invalidate(0x5000)

	if _, ok := c.Lookup(0x5000); ok {
		t.Fatalf("Lookup hit after Invalidate")
	}
}

func TestFlushClearsAllEntries(t *testing.T) {
	c := New(4)
	for pc := uint64(0); pc < 8; pc++ {
		c.Install(pc*0x100, uintptr(pc+1)*0x1000, 4)
	}
	c.Flush()

	if st := c.Stats(); st.ValidEntries != 0 {
		t.Fatalf("ValidEntries = %d after Flush, want 0", st.ValidEntries)
	}
}

func TestChainMarksLinkedFlag(t *testing.T) {
	c := New(4)
	c.Install(0x6000, 0x1000, 4)
	idx := c.IndexFor(0x6000)
	c.Chain(int(idx), 0, 7)

	e, ok := c.EntryAt(idx)
	if !ok {
		t.Fatalf("EntryAt reported invalid after Chain")
	}
	if e.Chain[0] != 7 {
		t.Fatalf("Chain[0] = %d, want 7", e.Chain[0])
	}
	if e.Flags&uint32(FlagLinked) == 0 {
		t.Fatalf("FlagLinked not set after Chain")
	}
}

func TestIndexForReturnsNegativeOneWhenAbsent(t *testing.T) {
	c := New(4)
	if idx := c.IndexFor(0x9999); idx != -1 {
		t.Fatalf("IndexFor on absent pc = %d, want -1", idx)
	}
}

func TestCapacityMatchesBits(t *testing.T) {
	c := New(5)
	if c.Capacity() != 32 {
		t.Fatalf("Capacity() = %d, want 32", c.Capacity())
	}
}

package translate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// sliceFetcher implements Fetcher over a plain map, for tests that
// only care about TranslateBlock's own bookkeeping (Patches, Terminal,
// GuestLen) and never execute the emitted bytes.
type sliceFetcher map[uint64]uint32

func (f sliceFetcher) FetchWord(addr uint64) (uint32, error) {
	w, ok := f[addr]
	if !ok {
		return 0, fmt.Errorf("no word mapped at %#x", addr)
	}
	return w, nil
}

func TestTranslateBlockUnconditionalBranchRecordsPatchGuestPC(t *testing.T) {
	const pc = 0x1000
	fetch := sliceFetcher{pc: encodeB(1)} // imm26=1 -> target pc+4

	buf := codebuf.NewScratch(256)
	blk, err := TranslateBlock(buf, fetch, pc, 0)
	require.NoError(t, err)
	require.True(t, blk.Terminal)
	require.Len(t, blk.Patches, 1)
	require.Equal(t, PatchGuestPC, blk.Patches[0].Kind)
	require.EqualValues(t, pc+4, blk.Patches[0].GuestTarget)
}

func TestTranslateBlockPatchedRel32MatchesTargetMinusSourcePlusFour(t *testing.T) {
	const pc = 0x2000
	fetch := sliceFetcher{pc: encodeB(1)}

	buf := codebuf.NewScratch(256)
	blk, err := TranslateBlock(buf, fetch, pc, 0)
	require.NoError(t, err)
	require.Len(t, blk.Patches, 1)

	const regionBase = 0x7f0000001000
	const target = 0x7f0000009000
	x86asm.PatchRel32(buf, blk.Patches[0].Offset, regionBase, target)

	source := regionBase + uintptr(blk.Patches[0].Offset)
	want := x86asm.Rel32Disp(source, target)

	got := uint32(buf.Bytes()[blk.Patches[0].Offset]) |
		uint32(buf.Bytes()[blk.Patches[0].Offset+1])<<8 |
		uint32(buf.Bytes()[blk.Patches[0].Offset+2])<<16 |
		uint32(buf.Bytes()[blk.Patches[0].Offset+3])<<24
	require.Equal(t, want, got)
}

func TestTranslateBlockUnknownInstructionClosesWithPatchEpilogue(t *testing.T) {
	const pc = 0x3000
	fetch := sliceFetcher{pc: 0xFFFFFFFF} // never decodes to a known class

	buf := codebuf.NewScratch(256)
	blk, err := TranslateBlock(buf, fetch, pc, 0)
	require.NoError(t, err)
	require.True(t, blk.Terminal)
	require.Len(t, blk.Patches, 1)
	require.Equal(t, PatchEpilogue, blk.Patches[0].Kind)
}

func TestTranslateBlockStopsAtMaxInstructionsWithFallthrough(t *testing.T) {
	const pc = 0x4000
	const n = 5
	fetch := sliceFetcher{}
	for i := 0; i < n; i++ {
		fetch[pc+uint64(i*4)] = encodeMovz(true, 1, 0)
	}

	buf := codebuf.NewScratch(1024)
	blk, err := TranslateBlock(buf, fetch, pc, n)
	require.NoError(t, err)
	require.True(t, blk.Terminal)
	require.EqualValues(t, n*4, blk.GuestLen)
	require.Len(t, blk.Patches, 1)
	require.Equal(t, PatchGuestPC, blk.Patches[0].Kind)
	require.EqualValues(t, pc+n*4, blk.Patches[0].GuestTarget)
}

func TestTranslateBlockSVCClosesWithPatchEpilogue(t *testing.T) {
	const pc = 0x5000
	fetch := sliceFetcher{pc: encodeSvc(0)}

	buf := codebuf.NewScratch(256)
	blk, err := TranslateBlock(buf, fetch, pc, 0)
	require.NoError(t, err)
	require.True(t, blk.Terminal)
	require.Len(t, blk.Patches, 1)
	require.Equal(t, PatchEpilogue, blk.Patches[0].Kind)
}

func TestTranslateBlockMRSDoesNotCloseBlock(t *testing.T) {
	const pc = 0x6000
	fetch := sliceFetcher{
		pc:     encodeMrs(0b0100, 0b000, 1), // MRS X1, FPCR
		pc + 4: encodeRet(30),
	}

	buf := codebuf.NewScratch(256)
	blk, err := TranslateBlock(buf, fetch, pc, 0)
	require.NoError(t, err)
	require.True(t, blk.Terminal) // the trailing RET closes it, not the MRS
	require.EqualValues(t, 8, blk.GuestLen)
}

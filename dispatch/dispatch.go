// Package dispatch implements the dispatcher/executor loop: resolve a
// guest PC to host code, transfer control, and resume translation
// when execution exits back to Go. Consult the cache, translate on a
// miss, install, transfer, loop — a whole translated block runs
// between dispatcher visits.
package dispatch

import (
	"fmt"
	"math"

	"github.com/lookbusy1344/arm64jit/cache"
	"github.com/lookbusy1344/arm64jit/codebuf"
	"github.com/lookbusy1344/arm64jit/decodeerr"
	"github.com/lookbusy1344/arm64jit/guest"
	"github.com/lookbusy1344/arm64jit/guestmem"
	"github.com/lookbusy1344/arm64jit/region"
	"github.com/lookbusy1344/arm64jit/rtlog"
	"github.com/lookbusy1344/arm64jit/syscallbridge"
	"github.com/lookbusy1344/arm64jit/translate"
	"github.com/lookbusy1344/arm64jit/x86asm"
)

// Stats aggregates the three components' debug snapshots for the
// statsapi/tui/guiapp front ends.
type Stats struct {
	Cache  cache.Stats
	Region region.Stats
	Blocks uint64
	Exits  uint64
}

// Dispatcher owns one guest execution context and the translation
// infrastructure (cache, code region, memory space, syscall bridge)
// backing it.
type Dispatcher struct {
	state  *guest.State
	mem    *guestmem.Space
	cache  *cache.Cache
	region *region.Region
	bridge *syscallbridge.Bridge
	fetch  guestFetcher

	epilogue uintptr

	// pendingChains maps a guest PC to the rel32 sites in already-
	// installed blocks that want a direct jump there once it is
	// translated. Sites are recorded as region
	// offsets so a region reset invalidates them wholesale.
	pendingChains map[uint64][]chainSite

	// guard, when set, wraps every transfer into translated code; the
	// signal layer uses it to recover guest memory faults
	// raised inside JIT'd code without unwinding the whole process.
	guard func(run func())

	maxInstructions int
	blocks          uint64
	exits           uint64
}

// chainSite is one rel32 field waiting for its guest target to be
// translated: dispOffset is the field's offset within the code region,
// fromPC/slot identify the cache entry and chain slot to mark LINKED
// once the patch lands.
type chainSite struct {
	fromPC     uint64
	slot       int
	dispOffset int
}

// Config bundles the tunables the [cache]/[region]/[translate] config
// tables expose.
type Config struct {
	CacheBits       int
	RegionSize      int
	MaxInstructions int
}

// New wires a fresh Dispatcher from its components. mem must already
// have the guest's initial mappings installed by the caller (loader).
func New(state *guest.State, mem *guestmem.Space, cfg Config) (*Dispatcher, error) {
	if cfg.CacheBits <= 0 {
		cfg.CacheBits = cache.DefaultBits
	}
	if cfg.RegionSize <= 0 {
		cfg.RegionSize = region.DefaultSize
	}

	reg, err := region.New(cfg.RegionSize)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		state:           state,
		mem:             mem,
		cache:           cache.New(cfg.CacheBits),
		region:          reg,
		bridge:          syscallbridge.New(mem),
		fetch:           guestFetcher{mem: mem},
		pendingChains:   make(map[uint64][]chainSite),
		maxInstructions: cfg.MaxInstructions,
	}

	if err := d.installEpilogueStub(); err != nil {
		reg.Close()
		return nil, err
	}
	return d, nil
}

// installEpilogueStub writes a single RET instruction into the code
// region and records its address: every PatchEpilogue site a
// translated block records resolves here, so a block that cannot
// chain directly to its successor returns control to jitcall's CALL
// site cleanly.
func (d *Dispatcher) installEpilogueStub() error {
	mem, addr, ok := d.region.Alloc(1)
	if !ok {
		return fmt.Errorf("dispatch: region too small for epilogue stub")
	}
	buf := codebuf.New(mem)
	x86asm.Ret(buf)
	if buf.Error() {
		return fmt.Errorf("dispatch: failed to emit epilogue stub")
	}
	if err := d.region.Finalize(); err != nil {
		return err
	}
	d.epilogue = addr
	return nil
}

// Bridge exposes the syscall bridge so translate's SVC trampoline
// wiring (built by the caller's loader/linker step) can register
// additional handlers before Run starts.
func (d *Dispatcher) Bridge() *syscallbridge.Bridge {
	return d.bridge
}

// SetFaultGuard installs a wrapper around every entry into translated
// code, typically signalhandler.Installer.RecoverFault in a defer, so
// guest memory faults surface through the signal layer instead of
// crashing the host process.
func (d *Dispatcher) SetFaultGuard(guard func(run func())) {
	d.guard = guard
}

// Run drives guest execution from the state's current PC until the
// guest requests exit (ExitRequested, or the syscall bridge observes
// an exit syscall) or a fault with no recovery path occurs.
func (d *Dispatcher) Run() error {
	for {
		if d.state.ExitRequested {
			return nil
		}
		if exited, _ := d.bridge.Exited(); exited {
			return nil
		}

		pc := d.state.PC
		hostPC, ok := d.cache.Lookup(pc)
		if !ok {
			var err error
			hostPC, err = d.translateAndInstall(pc)
			if err != nil {
				return err
			}
		}

		if d.guard != nil {
			d.guard(func() { jitcall(hostPC, statePtr(d.state), memBase(d.mem)) })
		} else {
			jitcall(hostPC, statePtr(d.state), memBase(d.mem))
		}
		d.exits++

		if d.state.AbortPending {
			d.state.AbortPending = false
			return decodeerr.New(d.state.PC, d.state.AbortReason, decodeerr.ReasonUnknown)
		}

		if d.state.SyscallPending {
			d.runPendingSyscall()
		}
	}
}

// runPendingSyscall services one SVC exit: translate/system.go's SVC
// translator stores the resume PC and sets SyscallPending instead of
// calling the bridge directly from JIT'd code, so the
// dispatcher is where Bridge.Dispatch actually runs, with the guest's
// X8/X0-X5 read back out of guest.State and the i64 result written to
// X0 per the AArch64 syscall ABI. An exit syscall does not return to
// the guest, so it leaves X0 as it was.
func (d *Dispatcher) runPendingSyscall() {
	number := d.state.Reg(8)
	a0 := d.state.Reg(0)
	a1 := d.state.Reg(1)
	a2 := d.state.Reg(2)
	a3 := d.state.Reg(3)
	a4 := d.state.Reg(4)
	a5 := d.state.Reg(5)

	result := d.bridge.Dispatch(number, a0, a1, a2, a3, a4, a5)

	if exited, _ := d.bridge.Exited(); !exited {
		d.state.SetReg(0, uint64(result))
	}
	d.state.SyscallPending = false
}

// translateAndInstall runs the translator over the block starting at
// pc, installs it into the code region and cache, resolves its
// pending patches, and returns its host entry address. On region
// exhaustion it resets the region and cache and retries once.
func (d *Dispatcher) translateAndInstall(pc uint64) (uintptr, error) {
	hostPC, err := d.tryTranslate(pc)
	if err == errRegionExhausted {
		rtlog.Printf("region exhausted translating %#x; resetting", pc)
		d.region.Reset()
		d.cache.Flush()
		d.pendingChains = make(map[uint64][]chainSite)
		// the reset freed the epilogue stub's bytes too; put it back at
		// the start of the region before any block can take its place.
		if err := d.region.BeginWrite(); err != nil {
			return 0, err
		}
		if err := d.installEpilogueStub(); err != nil {
			return 0, err
		}
		hostPC, err = d.tryTranslate(pc)
	}
	return hostPC, err
}

var errRegionExhausted = fmt.Errorf("dispatch: region exhausted")

func (d *Dispatcher) tryTranslate(pc uint64) (uintptr, error) {
	// translate into a scratch buffer first since the final size isn't
	// known until the block terminates; the region allocation happens
	// once the emitted length is known, then the bytes are copied in.
	scratch := codebuf.NewScratch(translate.MaxInstructions * 64)
	blk, err := translate.TranslateBlock(scratch, d.fetch, pc, d.maxInstructions)
	if err != nil {
		return 0, err
	}

	if err := d.region.BeginWrite(); err != nil {
		return 0, err
	}
	mem, hostAddr, ok := d.region.Alloc(scratch.Offset())
	if !ok {
		return 0, errRegionExhausted
	}
	copy(mem, scratch.Bytes())

	// links collects the block's own exits that resolved to a resident
	// successor, for chain-slot bookkeeping once the entry exists.
	type resolvedLink struct {
		target uint64
		slot   int
	}
	var links []resolvedLink

	for _, p := range blk.Patches {
		dispAddr := hostAddr + uintptr(p.Offset)
		target := d.epilogue
		if p.Kind == translate.PatchGuestPC {
			if host, hit := d.cache.Peek(p.GuestTarget); hit && rel32Fits(dispAddr, host) {
				// direct chain to the resident successor
				target = host
				links = append(links, resolvedLink{p.GuestTarget, p.Slot})
			} else if !hit {
				// successor not translated yet: exit via the epilogue
				// for now and leave the site behind for backpatching
				// when the target block lands.
				d.pendingChains[p.GuestTarget] = append(d.pendingChains[p.GuestTarget], chainSite{
					fromPC:     pc,
					slot:       p.Slot,
					dispOffset: int(dispAddr - d.region.Base()),
				})
			}
			// a resident target out of rel32 range stays on the
			// epilogue path: indirect via
			// the dispatcher, no chain recorded.
		}
		x86asm.PatchRel32(codebuf.New(mem), p.Offset, hostAddr, target)
	}

	// Backpatch earlier blocks that were waiting for this PC, while the
	// region is still writable.
	chained := d.resolvePendingChains(pc, hostAddr)

	if err := d.region.Finalize(); err != nil {
		return 0, err
	}

	d.cache.Install(pc, hostAddr, uint32(blk.GuestLen))
	fromIdx := d.cache.IndexFor(pc)
	for _, l := range links {
		if toIdx := d.cache.IndexFor(l.target); fromIdx >= 0 && toIdx >= 0 && l.slot >= 0 {
			d.cache.Chain(int(fromIdx), l.slot, toIdx)
		}
	}
	// The backpatched predecessors now chain to this block's entry.
	toIdx := d.cache.IndexFor(pc)
	for _, s := range chained {
		if predIdx := d.cache.IndexFor(s.fromPC); predIdx >= 0 && toIdx >= 0 && s.slot >= 0 {
			d.cache.Chain(int(predIdx), s.slot, toIdx)
		}
	}

	d.blocks++
	rtlog.Printf("installed block pc=%#x host=%#x size=%d", pc, hostAddr, scratch.Offset())
	return hostAddr, nil
}

// resolvePendingChains patches every recorded rel32 site waiting on
// target, linking older blocks straight to the newly landed one, and
// returns the sites it patched so the caller can record the chain
// slots once the target's cache entry exists. Sites whose
// displacement would not fit in a rel32 stay on their epilogue path.
func (d *Dispatcher) resolvePendingChains(target uint64, hostAddr uintptr) []chainSite {
	sites := d.pendingChains[target]
	if len(sites) == 0 {
		return nil
	}
	delete(d.pendingChains, target)

	backing := codebuf.New(d.region.Backing())
	patched := make([]chainSite, 0, len(sites))
	for _, s := range sites {
		dispAddr := d.region.Base() + uintptr(s.dispOffset)
		if !rel32Fits(dispAddr, hostAddr) {
			continue
		}
		x86asm.PatchRel32(backing, s.dispOffset, d.region.Base(), hostAddr)
		patched = append(patched, s)
	}
	return patched
}

// rel32Fits reports whether a jump from the rel32 field at dispAddr to
// target is encodable in a signed 32-bit displacement.
func rel32Fits(dispAddr, target uintptr) bool {
	delta := int64(target) - int64(dispAddr) - 4
	return delta >= math.MinInt32 && delta <= math.MaxInt32
}

// Stats reports the combined cache/region/dispatch snapshot.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Cache:  d.cache.Stats(),
		Region: d.region.Stats(),
		Blocks: d.blocks,
		Exits:  d.exits,
	}
}

// Close releases the code region's memory.
func (d *Dispatcher) Close() error {
	return d.region.Close()
}

//go:build amd64

package ee

import (
	"unsafe"

	"github.com/ps2re/dynarec/hostapi"
	"github.com/ps2re/dynarec/jitheap"
)

// tlbModifiedPageStart/End bound the guest page range the dispatcher
// scans for TLB-modified bits on every block lookup. A block on a page
// outside this range is never invalidated by the scan.
const (
	tlbModifiedPageStart = 0x80000000 / 4096
	tlbModifiedPageEnd   = 0x80040000 / 4096
)

// Dispatcher runs compiled EE blocks against one EEState, compiling
// and installing new ones on a cache miss and retrying once after a
// heap flush on exhaustion.
type Dispatcher struct {
	state    *hostapi.EEState
	mem      hostapi.MemoryAccessor
	handlers hostapi.EEHandlers
	cache    *jitheap.EECache
	gen      *CodeGen
	fetch    Fetch
}

// NewDispatcher constructs a dispatcher over a freshly mmap'd code
// heap. fetch reads one 32-bit guest instruction word; it typically
// wraps mem.Read32 against the state's own address space.
func NewDispatcher(state *hostapi.EEState, mem hostapi.MemoryAccessor, handlers hostapi.EEHandlers, fetch Fetch) (*Dispatcher, error) {
	cache, err := jitheap.NewEECache()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		state:    state,
		mem:      mem,
		handlers: handlers,
		cache:    cache,
		gen:      NewCodeGen(mem, handlers),
		fetch:    fetch,
	}, nil
}

// Run executes compiled blocks starting at state.PC until
// state.CyclesToRun is exhausted, compiling and installing blocks on
// demand.
func (d *Dispatcher) Run() {
	for d.state.CyclesToRun > 0 {
		block := d.findOrCompile(d.state.PC)
		fn := makeBlockFunc(d.cache.Heap.Base() + uintptr(block.CodeStart))
		spent := fn()
		if spent > uint64(d.state.CyclesToRun) {
			d.state.CyclesToRun = 0
		} else {
			d.state.CyclesToRun -= uint32(spent)
		}
		d.state.PC = d.state.PCNow
	}
}

// findOrCompile resolves pc to an installed block, invalidating any
// stale block whose page was marked TLB-modified since it was
// compiled, and compiling+installing a fresh one on a miss.
func (d *Dispatcher) findOrCompile(pc uint32) *jitheap.Block {
	d.scanTLBModified()

	if b := d.cache.Find(pc); b != nil {
		return b
	}
	return d.compileAndInstall(pc)
}

func (d *Dispatcher) scanTLBModified() {
	for page := uint32(tlbModifiedPageStart); page < tlbModifiedPageEnd; page++ {
		if d.state.TestAndClearTLBModified(page) {
			d.cache.InvalidatePage(page)
		}
	}
}

// compileAndInstall translates and lowers a fresh block for pc. On
// heap exhaustion it flushes the entire cache once and retries;
// running out of space twice in a row is a fatal condition the host
// cannot recover from without evicting a live state.
func (d *Dispatcher) compileAndInstall(pc uint32) *jitheap.Block {
	block := Translate(pc, d.fetch)
	code := d.gen.Compile(block, uintptr(unsafe.Pointer(d.state)))

	b, ok := d.cache.Install(jitheap.EEKey(pc), code)
	if ok {
		return b
	}

	d.cache.FlushAll()
	b, ok = d.cache.Install(jitheap.EEKey(pc), code)
	if !ok {
		panic("ee: code heap exhausted immediately after a full flush")
	}
	return b
}

// blockFunc is the calling convention of a compiled block: no
// arguments (its EEState pointer is baked in at compile time), one
// uint64 return carrying the cycles consumed.
type blockFunc func() uint64

// makeBlockFunc turns a raw code address into a callable Go function
// value. A Go func value is itself just a pointer to a funcval struct
// whose first word is the entry PC; reinterpreting a pointer to the
// address itself as *blockFunc produces a function value whose call
// jumps straight into the JIT heap, bypassing the usual
// compiler-generated funcval.
func makeBlockFunc(addr uintptr) blockFunc {
	entry := addr
	return *(*blockFunc)(unsafe.Pointer(&entry))
}

//go:build amd64

package vu

import (
	"encoding/binary"
	"hash/crc32"
	"unsafe"

	"github.com/ps2re/dynarec/hostapi"
	"github.com/ps2re/dynarec/jitheap"
)

// Dispatcher runs compiled VU microprogram blocks against one
// VUState, compiling and installing new ones on a cache miss. Unlike
// the EE, the VU has no architectural program counter in its guest
// state: position tracking (pc, prevPC) lives on the dispatcher
// itself and folds into every block's cache key alongside the
// microprogram CRC and pipeline snapshot.
type Dispatcher struct {
	state    *hostapi.VUState
	handlers hostapi.VUHandlers
	cache    *jitheap.VUCache
	gen      *CodeGen
	fetch    FetchPair

	pc     uint32
	prevPC uint32
}

// NewDispatcher constructs a dispatcher over a freshly mmap'd VU code
// heap, starting execution at entryPC.
func NewDispatcher(state *hostapi.VUState, handlers hostapi.VUHandlers, fetch FetchPair, entryPC uint32) (*Dispatcher, error) {
	cache, err := jitheap.NewVUCache()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		state:    state,
		handlers: handlers,
		cache:    cache,
		gen:      NewCodeGen(handlers),
		fetch:    fetch,
		pc:       entryPC,
	}, nil
}

// Run executes compiled blocks until cyclesToRun is exhausted or the
// microprogram stalls on an XGKICK whose GIF transfer has not yet
// completed; a stalled run returns early and a later call resumes it
// once the host reports the transfer done.
func (d *Dispatcher) Run(cyclesToRun uint32) {
	for cyclesToRun > 0 {
		if d.state.XGKICKStall != 0 {
			if !d.handlers.GIFTransferDone(d.state) {
				return
			}
			d.state.XGKICKStall = 0
		}

		block := d.findOrCompile(d.pc)
		fn := makeBlockFunc(d.cache.Heap.Base() + uintptr(block.CodeStart))
		spent := fn()
		if uint64(cyclesToRun) <= spent {
			cyclesToRun = 0
		} else {
			cyclesToRun -= uint32(spent)
		}

		d.prevPC = d.pc
		d.pc = d.state.PCStaging
	}
}

// Reset repositions the dispatcher at entryPC for a fresh microprogram
// run. With full set the installed block cache is flushed entirely
// (a CRC change on the whole microprogram region); otherwise already-
// installed blocks stay reachable and are simply revisited by key once
// execution returns to them, discarding only the dispatcher's own
// pc/prevPC tracking.
func (d *Dispatcher) Reset(entryPC uint32, full bool) {
	d.pc = entryPC
	d.prevPC = 0
	if full {
		d.cache.FlushAll()
	}
}

func (d *Dispatcher) findOrCompile(pc uint32) *jitheap.Block {
	crc := crc32OfMicroprogram(pc, d.fetch)
	key := jitheap.VUKey(pc, d.prevPC, crc, d.state.PipelineState[0], d.state.PipelineState[1])
	if b := d.cache.Find(key); b != nil {
		return b
	}
	return d.compileAndInstall(pc, key)
}

// compileAndInstall translates and lowers a fresh block for pc under
// key. On heap exhaustion it flushes the entire cache once and retries.
func (d *Dispatcher) compileAndInstall(pc uint32, key jitheap.Key) *jitheap.Block {
	block := Translate(pc, d.fetch)
	code := d.gen.Compile(block, uintptr(unsafe.Pointer(d.state)))

	b, ok := d.cache.Install(key, code)
	if ok {
		return b
	}

	d.cache.FlushAll()
	b, ok = d.cache.Install(key, code)
	if !ok {
		panic("vu: code heap exhausted immediately after a full flush")
	}
	return b
}

// crc32OfMicroprogram hashes the raw instruction-pair words from pc
// through the pair carrying the E-bit (inclusive of the one delay pair
// after it) or the pair carrying the T-bit, the same termination rule
// Translate uses, so a block's cache key changes exactly when its
// guest bytes do.
func crc32OfMicroprogram(pc uint32, fetch FetchPair) uint32 {
	h := crc32.New(crc32.MakeTable(crc32.Castagnoli))
	var buf [8]byte
	cur := pc
	pendingEnd := false
	for {
		upper, lower := fetch(cur)
		binary.LittleEndian.PutUint32(buf[0:4], lower)
		binary.LittleEndian.PutUint32(buf[4:8], upper)
		h.Write(buf[:])

		if HasTBit(lower) {
			break
		}
		if pendingEnd {
			break
		}
		if HasEBit(lower) {
			pendingEnd = true
		}
		cur += 8
	}
	return h.Sum32()
}

// blockFunc is the calling convention of a compiled VU block: no
// arguments (its VUState pointer is baked in at compile time), one
// uint64 return carrying the cycles consumed.
type blockFunc func() uint64

// makeBlockFunc turns a raw code address into a callable Go function
// value, the same funcval-reinterpretation trick the EE dispatcher
// uses.
func makeBlockFunc(addr uintptr) blockFunc {
	entry := addr
	return *(*blockFunc)(unsafe.Pointer(&entry))
}

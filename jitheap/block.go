package jitheap

// Block is the host block record: the code/literal
// region allocated back-to-back in the heap so that a single Free
// releases both, plus the guest key that selects it.
type Block struct {
	CodeStart     int // payload offset returned by Heap.Alloc
	CodeEnd       int
	LiteralsStart int
	Key           Key
}

// Key identifies a compiled block. EE blocks are keyed on PC alone;
// VU blocks additionally fold in prev_pc, the microprogram CRC, and
// the two-slot pipeline snapshot, because cross-block pipeline state
// must be part of the key, not global mutable state.
type Key struct {
	PC             uint32
	PrevPC         uint32
	ProgramCRC     uint32
	PipelineState0 uint64
	PipelineState1 uint64
	IsVU           bool
}

// EEKey builds the EE block key (PC only).
func EEKey(pc uint32) Key { return Key{PC: pc} }

// VUKey builds the VU block key.
func VUKey(pc, prevPC, crc uint32, pipe0, pipe1 uint64) Key {
	return Key{PC: pc, PrevPC: prevPC, ProgramCRC: crc, PipelineState0: pipe0, PipelineState1: pipe1, IsVU: true}
}

const (
	eePageSize      = 4096
	eeWordsPerPage  = eePageSize / 4 // 1024
	lookupCacheBits = 15
	lookupCacheSize = 1 << lookupCacheBits // 32K entries
	lookupCacheMask = lookupCacheSize - 1
)

// EEIndex maps guest pages to their per-word block array, plus a
// one-entry last-page cache and the direct-mapped fast lookup cache
// shared with the dispatcher's fast path.
type EEIndex struct {
	pages map[uint32][]*Block // page -> [1024]*Block, nil entries unused

	lastPage      uint32
	lastPageArray []*Block
	haveLastPage  bool

	lookup [lookupCacheSize]*Block
}

// NewEEIndex creates an empty EE block index.
func NewEEIndex() *EEIndex {
	return &EEIndex{pages: make(map[uint32][]*Block)}
}

func eePage(pc uint32) uint32     { return pc / eePageSize }
func eePageWord(pc uint32) uint32 { return (pc % eePageSize) / 4 }

// Insert records b under its own key and writes it into the fast
// lookup cache, satisfying testable property 6.
func (idx *EEIndex) Insert(b *Block) {
	page := eePage(b.Key.PC)
	arr := idx.arrayFor(page)
	arr[eePageWord(b.Key.PC)] = b
	idx.lookup[(b.Key.PC>>2)&lookupCacheMask] = b
}

func (idx *EEIndex) arrayFor(page uint32) []*Block {
	if idx.haveLastPage && idx.lastPage == page {
		return idx.lastPageArray
	}
	arr, ok := idx.pages[page]
	if !ok {
		arr = make([]*Block, eeWordsPerPage)
		idx.pages[page] = arr
	}
	idx.lastPage = page
	idx.lastPageArray = arr
	idx.haveLastPage = true
	return arr
}

// Find looks up the block for pc via the full index (slow path).
func (idx *EEIndex) Find(pc uint32) *Block {
	page := eePage(pc)
	var arr []*Block
	if idx.haveLastPage && idx.lastPage == page {
		arr = idx.lastPageArray
	} else if a, ok := idx.pages[page]; ok {
		arr = a
		idx.lastPage = page
		idx.lastPageArray = a
		idx.haveLastPage = true
	} else {
		return nil
	}
	return arr[eePageWord(pc)]
}

// LookupFast reads the direct-mapped cache slot for pc. The caller
// must still verify the returned block's Key.PC matches pc: the slot
// may hold a stale pointer to a different PC that merely hashed to the
// same slot.
func (idx *EEIndex) LookupFast(pc uint32) *Block {
	return idx.lookup[(pc>>2)&lookupCacheMask]
}

// InvalidatePage frees every block whose starting PC lies in guest
// page p from this index (the caller is responsible for also calling
// Heap.Free on each), drops the page's array, and clears any fast
// lookup cache entries that pointed into it.
func (idx *EEIndex) InvalidatePage(page uint32) []*Block {
	arr, ok := idx.pages[page]
	if !ok {
		return nil
	}
	var freed []*Block
	for _, b := range arr {
		if b == nil {
			continue
		}
		freed = append(freed, b)
		slot := (b.Key.PC >> 2) & lookupCacheMask
		if idx.lookup[slot] == b {
			idx.lookup[slot] = nil
		}
	}
	delete(idx.pages, page)
	if idx.haveLastPage && idx.lastPage == page {
		idx.haveLastPage = false
		idx.lastPageArray = nil
	}
	return freed
}

// FlushAll drops every page array and clears the fast lookup cache.
func (idx *EEIndex) FlushAll() []*Block {
	var freed []*Block
	for _, arr := range idx.pages {
		for _, b := range arr {
			if b != nil {
				freed = append(freed, b)
			}
		}
	}
	idx.pages = make(map[uint32][]*Block)
	idx.haveLastPage = false
	idx.lastPageArray = nil
	for i := range idx.lookup {
		idx.lookup[i] = nil
	}
	return freed
}

// VUIndex maps the full VU block key (PC, prev_pc, program_crc,
// pipeline_state) to its record.
type VUIndex struct {
	m map[Key]*Block
}

// NewVUIndex creates an empty VU block index.
func NewVUIndex() *VUIndex { return &VUIndex{m: make(map[Key]*Block)} }

// Insert records b under its full key.
func (idx *VUIndex) Insert(b *Block) { idx.m[b.Key] = b }

// Find looks up the block matching the given key exactly.
func (idx *VUIndex) Find(k Key) *Block { return idx.m[k] }

// FlushAll drops every entry and returns the freed blocks.
func (idx *VUIndex) FlushAll() []*Block {
	freed := make([]*Block, 0, len(idx.m))
	for _, b := range idx.m {
		freed = append(freed, b)
	}
	idx.m = make(map[Key]*Block)
	return freed
}

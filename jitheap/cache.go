package jitheap

// EECache couples the RWX heap with the EE block index so that
// invalidation and flush keep both in sync.
type EECache struct {
	Heap  *Heap
	Index *EEIndex
}

// NewEECache creates an EE code cache with a freshly mmap'd heap.
func NewEECache() (*EECache, error) {
	h, err := New(EEHeapSize)
	if err != nil {
		return nil, err
	}
	return &EECache{Heap: h, Index: NewEEIndex()}, nil
}

// Install copies code into a freshly allocated heap region and
// inserts the resulting block record into the index and fast lookup
// cache. code is exactly the emitter's contiguous [literals, codeEnd)
// region.
func (c *EECache) Install(key Key, code []byte) (*Block, bool) {
	off := c.Heap.Alloc(len(code))
	if off < 0 {
		return nil, false
	}
	copy(c.Heap.mem[off:off+len(code)], code)
	b := &Block{CodeStart: off, CodeEnd: off + len(code), LiteralsStart: off, Key: key}
	c.Index.Insert(b)
	return b, true
}

// Find resolves a PC through the fast lookup cache first, falling
// back to the full index; it returns nil if no block exists.
func (c *EECache) Find(pc uint32) *Block {
	if b := c.Index.LookupFast(pc); b != nil && b.Key.PC == pc {
		return b
	}
	return c.Index.Find(pc)
}

// InvalidatePage frees every block starting in guest page p.
func (c *EECache) InvalidatePage(page uint32) {
	for _, b := range c.Index.InvalidatePage(page) {
		c.Heap.Free(b.CodeStart)
	}
}

// FlushAll frees every block and resets the heap to one free region.
func (c *EECache) FlushAll() {
	c.Index.FlushAll()
	c.Heap.FlushAll()
}

// VUCache couples the RWX heap with the VU block index.
type VUCache struct {
	Heap  *Heap
	Index *VUIndex
}

// NewVUCache creates a VU code cache with a freshly mmap'd heap.
func NewVUCache() (*VUCache, error) {
	h, err := New(VUHeapSize)
	if err != nil {
		return nil, err
	}
	return &VUCache{Heap: h, Index: NewVUIndex()}, nil
}

// Install copies code into the heap and inserts the resulting block
// under key.
func (c *VUCache) Install(key Key, code []byte) (*Block, bool) {
	off := c.Heap.Alloc(len(code))
	if off < 0 {
		return nil, false
	}
	copy(c.Heap.mem[off:off+len(code)], code)
	b := &Block{CodeStart: off, CodeEnd: off + len(code), LiteralsStart: off, Key: key}
	c.Index.Insert(b)
	return b, true
}

// Find resolves a full VU key to its block, or nil.
func (c *VUCache) Find(key Key) *Block { return c.Index.Find(key) }

// FlushAll frees every block and resets the heap.
func (c *VUCache) FlushAll() {
	c.Index.FlushAll()
	c.Heap.FlushAll()
}

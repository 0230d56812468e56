// Package jitheap implements the JIT code heap: a single
// RWX region carved up by a bin-based free-list allocator, plus the
// guest-key block indices and the fast lookup cache that sit on top
// of it.
package jitheap

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Sizing knobs: EE heaps are ~64 MiB order of
// magnitude, VU heaps smaller.
const (
	EEHeapSize = 64 * 1024 * 1024
	VUHeapSize = 4 * 1024 * 1024

	headerSize = 8 // leading size_t
	footerSize = 8 // trailing free-mark size_t
	alignment  = 16

	// Bin i (0-indexed) covers [2^(binStart+i), 2^(binStart+i+1)).
	binStart  = 5 // smallest bin covers [32, 64)
	binCount  = 16
	nilOffset = ^uint64(0)
)

// Heap is a single fixed-size RWX region with a binned free-list
// allocator over it. It is not safe for concurrent use: each guest
// §5 the translator/generator path never runs concurrently with
// generated code on the same core.
type Heap struct {
	mem   []byte
	bins  [binCount]uint64 // head offset into mem, or nilOffset
	over  uint64           // oversize bin head, or nilOffset
	inUse int
}

// New mmaps a fresh RWX region of the requested size and initializes
// it as one large free block.
func New(size int) (*Heap, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("jitheap: mmap %d bytes RWX: %w", size, err)
	}
	h := &Heap{mem: mem}
	for i := range h.bins {
		h.bins[i] = nilOffset
	}
	h.over = nilOffset
	h.initFreeBlock(0, len(mem))
	h.linkFree(0)
	return h, nil
}

// Close unmaps the backing region. The heap must not be used after
// Close.
func (h *Heap) Close() error {
	return unix.Munmap(h.mem)
}

// Base returns the address of the first byte of the backing region,
// used by the code generator to compute absolute branch/call targets.
func (h *Heap) Base() uintptr { return addrOf(h.mem) }

// Bytes exposes the raw backing slice, e.g. so a compiled block's
// bytes can be memcpy'd in via copy(h.Bytes()[off:], code).
func (h *Heap) Bytes() []byte { return h.mem }

func payloadOf(offset int) int   { return offset + headerSize }
func sizeField(h *Heap, off int) int {
	return int(binary.LittleEndian.Uint64(h.mem[off : off+8]))
}
func setSizeField(h *Heap, off, v int) {
	binary.LittleEndian.PutUint64(h.mem[off:off+8], uint64(v))
}
func footerOffset(off, size int) int { return off + headerSize + size }

// initFreeBlock writes the leading size and trailing free-mark for a
// free block spanning [off, off+size) of header+payload+footer.
func (h *Heap) initFreeBlock(off, totalSize int) {
	payloadSize := totalSize - headerSize - footerSize
	setSizeField(h, off, payloadSize)
	setSizeField(h, footerOffset(off, payloadSize), payloadSize)
}

func roundUp16(n int) int { return (n + alignment - 1) &^ (alignment - 1) }

func binFor(size int) int {
	b := 0
	for lo := 1 << binStart; lo < size && b < binCount-1; lo <<= 1 {
		b++
	}
	return b
}

// flPrev/flNext/flBin and their setters read/write the {prev,next,bin}
// fields overlaid on a free block's payload.
func (h *Heap) flPrev(off int) uint64 {
	p := payloadOf(off)
	return binary.LittleEndian.Uint64(h.mem[p : p+8])
}
func (h *Heap) flSetPrev(off int, v uint64) {
	p := payloadOf(off)
	binary.LittleEndian.PutUint64(h.mem[p:p+8], v)
}
func (h *Heap) flNext(off int) uint64 {
	p := payloadOf(off)
	return binary.LittleEndian.Uint64(h.mem[p+8 : p+16])
}
func (h *Heap) flSetNext(off int, v uint64) {
	p := payloadOf(off)
	binary.LittleEndian.PutUint64(h.mem[p+8:p+16], v)
}
func (h *Heap) flBin(off int) int {
	p := payloadOf(off)
	return int(binary.LittleEndian.Uint32(h.mem[p+16 : p+20]))
}
func (h *Heap) flSetBin(off int, bin int) {
	p := payloadOf(off)
	binary.LittleEndian.PutUint32(h.mem[p+16:p+20], uint32(bin))
}

func (h *Heap) headOf(bin int) *uint64 {
	if bin < 0 {
		return &h.over
	}
	return &h.bins[bin]
}

// linkFree inserts the free block at off at the head of its bin.
func (h *Heap) linkFree(off int) {
	size := sizeField(h, off)
	bin := 0
	for lo := 1 << (binStart + 1); lo <= size && bin < binCount-1; lo <<= 1 {
		bin++
	}
	if size >= (1 << (binStart + binCount)) {
		bin = -1
	}
	h.flSetBin(off, bin+1) // store bin+1 so -1 (oversize) is representable
	head := h.headOf(bin)
	h.flSetPrev(off, nilOffset)
	h.flSetNext(off, *head)
	if *head != nilOffset {
		h.flSetPrev(int(*head), uint64(off))
	}
	*head = uint64(off)
}

// unlinkFree removes the free block at off from its bin's list.
func (h *Heap) unlinkFree(off int) {
	bin := h.flBin(off) - 1
	prev := h.flPrev(off)
	next := h.flNext(off)
	if prev != nilOffset {
		h.flSetNext(int(prev), next)
	} else {
		*h.headOf(bin) = next
	}
	if next != nilOffset {
		h.flSetPrev(int(next), prev)
	}
}

// Alloc rounds n up to 16 bytes, finds the smallest sufficient free
// block (own bin first, then the oversize bin), splits off any
// leftover tail large enough to be its own free block, and returns the
// payload offset of the allocated block, or -1 on heap exhaustion.
func (h *Heap) Alloc(n int) int {
	need := roundUp16(n)
	bin := binFor(need)
	for b := bin; b < binCount; b++ {
		if off, ok := h.findInBin(b, need); ok {
			return h.carve(off, need)
		}
	}
	if off, ok := h.findInBin(-1, need); ok {
		return h.carve(off, need)
	}
	return -1
}

func (h *Heap) findInBin(bin int, need int) (int, bool) {
	cur := *h.headOf(bin)
	best := nilOffset
	for cur != nilOffset {
		sz := sizeField(h, int(cur))
		if sz >= need && (best == nilOffset || sz < sizeField(h, int(best))) {
			best = cur
			if bin != -1 {
				break // any bin-sized block already satisfies need
			}
		}
		cur = h.flNext(int(cur))
	}
	if best == nilOffset {
		return 0, false
	}
	return int(best), true
}

const minSplitBlock = headerSize + footerSize + (1 << binStart)

// carve removes the free block at off, splits a tail free block if the
// remainder is at least a minimum bin size, and returns the payload
// offset.
func (h *Heap) carve(off int, need int) int {
	h.unlinkFree(off)
	total := sizeField(h, off)
	if total-need >= minSplitBlock {
		tailOff := off + headerSize + need + footerSize
		tailTotal := total - need - headerSize - footerSize
		setSizeField(h, off, need)
		setSizeField(h, footerOffset(off, need), 0) // in-use mark
		h.initFreeBlock(tailOff, tailTotal+headerSize+footerSize)
		h.linkFree(tailOff)
	} else {
		setSizeField(h, footerOffset(off, total), 0)
	}
	h.inUse += sizeField(h, off)
	return payloadOf(off)
}

// Free marks the block whose payload starts at payloadOff as free,
// inserts it into its bin, and greedily merges with immediate forward
// and backward neighbors while they are free.
func (h *Heap) Free(payloadOff int) {
	off := payloadOff - headerSize
	size := sizeField(h, off)
	h.inUse -= size
	setSizeField(h, footerOffset(off, size), size) // free mark

	// merge forward
	for {
		nextOff := footerOffset(off, sizeField(h, off)) + footerSize
		if nextOff+headerSize > len(h.mem) {
			break
		}
		nextSize := sizeField(h, nextOff)
		nextFooter := sizeField(h, footerOffset(nextOff, nextSize))
		if nextFooter != nextSize { // in use
			break
		}
		h.unlinkFree(nextOff)
		merged := sizeField(h, off) + headerSize + footerSize + nextSize
		setSizeField(h, off, merged)
		setSizeField(h, footerOffset(off, merged), merged)
	}
	// merge backward: the previous block's trailing free mark gives its
	// size directly (0 means in use), so no scan is needed.
	if off > 0 {
		prevFooterEnd := off
		prevFooterOff := prevFooterEnd - footerSize
		prevSize := sizeField(h, prevFooterOff)
		prevOff := off - headerSize - footerSize - prevSize
		if prevSize > 0 && prevOff >= 0 && sizeField(h, prevOff) == prevSize {
			h.unlinkFree(prevOff)
			merged := prevSize + headerSize + footerSize + sizeField(h, off)
			setSizeField(h, prevOff, merged)
			setSizeField(h, footerOffset(prevOff, merged), merged)
			off = prevOff
		}
	}
	h.linkFree(off)
}

// IsFull reports whether the remaining contiguous best-fit is smaller
// than hint, used before compiling a block expected to need ~hint
// bytes.
func (h *Heap) IsFull(hint int) bool {
	if h.over != nilOffset {
		return sizeField(h, int(h.over)) < hint
	}
	for b := binCount - 1; b >= 0; b-- {
		if h.bins[b] != nilOffset {
			return sizeField(h, int(h.bins[b])) < hint
		}
	}
	return true
}

// InUse reports the number of payload bytes currently allocated.
func (h *Heap) InUse() int { return h.inUse }

// FlushAll resets the heap to a single free block, invalidating every
// outstanding allocation. Callers must drop every Block record they
// hold before calling this.
func (h *Heap) FlushAll() {
	h.inUse = 0
	for i := range h.bins {
		h.bins[i] = nilOffset
	}
	h.over = nilOffset
	h.initFreeBlock(0, len(h.mem))
	h.linkFree(0)
}

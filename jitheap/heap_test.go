package jitheap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func smallHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := New(64 * 1024)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, h.Close()) })
	return h
}

func TestAllocFreeNeverExceedsHeapSize(t *testing.T) {
	h := smallHeap(t)
	var offs []int
	for i := 0; i < 50; i++ {
		off := h.Alloc(64 + i*8)
		require.GreaterOrEqual(t, off, 0)
		offs = append(offs, off)
		require.LessOrEqual(t, h.InUse(), len(h.mem))
	}
	for _, off := range offs {
		h.Free(off)
	}
	require.Equal(t, 0, h.InUse())
}

func TestFreeMergesAdjacentNeighbors(t *testing.T) {
	h := smallHeap(t)
	a := h.Alloc(128)
	b := h.Alloc(128)
	c := h.Alloc(128)
	require.GreaterOrEqual(t, a, 0)
	require.GreaterOrEqual(t, b, 0)
	require.GreaterOrEqual(t, c, 0)

	h.Free(a)
	h.Free(c)
	h.Free(b) // merging b should coalesce a, b, and c into one free block

	// A subsequent large allocation spanning all three original blocks
	// should now succeed at a's offset, proving the merge actually
	// happened.
	big := h.Alloc(3*128 + 2*(headerSize+footerSize) - headerSize - footerSize)
	require.GreaterOrEqual(t, big, 0)
	require.Equal(t, a, big)
}

func TestAllocExhaustionReturnsNegativeOne(t *testing.T) {
	h := smallHeap(t)
	off := h.Alloc(1 << 20)
	require.Equal(t, -1, off)
}

func TestEEInvalidatePageFreesOnlyThatPage(t *testing.T) {
	c, err := NewEECache()
	require.NoError(t, err)
	defer c.Heap.Close()

	pageA := uint32(0x80041000)
	pageB := uint32(0x80042000)

	bA, ok := c.Install(EEKey(pageA), []byte{0xC3})
	require.True(t, ok)
	bB, ok := c.Install(EEKey(pageB), []byte{0xC3})
	require.True(t, ok)
	_ = bA

	c.InvalidatePage(pageA / eePageSize)

	require.Nil(t, c.Find(pageA))
	require.Same(t, bB, c.Find(pageB))
}

func TestFastLookupCacheCoherence(t *testing.T) {
	c, err := NewEECache()
	require.NoError(t, err)
	defer c.Heap.Close()

	pc := uint32(0x00100000)
	b, ok := c.Install(EEKey(pc), []byte{0x90, 0xC3})
	require.True(t, ok)

	require.Same(t, b, c.Index.LookupFast(pc))
	require.Same(t, b, c.Find(pc))
}

func TestVUKeyIncludesPipelineState(t *testing.T) {
	c, err := NewVUCache()
	require.NoError(t, err)
	defer c.Heap.Close()

	k1 := VUKey(0x1000, 0x0FFC, 0xDEADBEEF, 1, 2)
	k2 := VUKey(0x1000, 0x0FFC, 0xDEADBEEF, 1, 3) // differs only in pipeline_state1
	b1, ok := c.Install(k1, []byte{0xC3})
	require.True(t, ok)

	require.Same(t, b1, c.Find(k1))
	require.Nil(t, c.Find(k2))
}

package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ps2re/dynarec/emit"
)

type fakeBackend struct {
	loads  []uint16
	stores []uint16
}

func (f *fakeBackend) LoadGuestReg(e *emit.Emitter, guestReg uint16, hostReg int, kind Kind) {
	f.loads = append(f.loads, guestReg)
}
func (f *fakeBackend) StoreGuestReg(e *emit.Emitter, guestReg uint16, hostReg int, kind Kind) {
	f.stores = append(f.stores, guestReg)
}
func (f *fakeBackend) ZeroHostReg(e *emit.Emitter, hostReg int, kind Kind) {}
func (f *fakeBackend) IsZeroRegister(guestReg uint16, kind Kind) bool     { return guestReg == 0 }

func TestAllocReusesAlreadyMappedRegister(t *testing.T) {
	be := &fakeBackend{}
	a := New(be, []int{0, 1, 2}, []int{3, 4, 5})
	e := emit.New()

	first := a.Alloc(e, 5, KindGPR, Read, -1, false)
	second := a.Alloc(e, 5, KindGPR, ReadWrite, -1, false)

	require.Equal(t, first, second)
	require.Len(t, be.loads, 1, "second alloc of an already-mapped register must not reload")
}

func TestAllocEvictsHighestAgeAndFlushesIfModified(t *testing.T) {
	be := &fakeBackend{}
	a := New(be, nil, nil)
	e := emit.New()

	// Fill all 16 GPR entries with distinct guest registers, modifying
	// entry 0 so eviction must flush it.
	for g := uint16(1); g <= numEntries; g++ {
		a.Alloc(e, g, KindGPR, ReadWrite, -1, false)
	}
	require.NotContains(t, be.stores, uint16(0))

	// One more allocation must evict the oldest (guest reg 1, age now highest).
	a.Alloc(e, 99, KindGPR, Read, -1, false)
	require.Contains(t, be.stores, uint16(1))
}

func TestWriteStateSkipsInitialLoad(t *testing.T) {
	be := &fakeBackend{}
	a := New(be, nil, nil)
	e := emit.New()

	a.Alloc(e, 7, KindGPR, Write, -1, false)
	require.Empty(t, be.loads)
}

func TestZeroGuestRegisterIsZeroedNotLoaded(t *testing.T) {
	be := &fakeBackend{}
	a := New(be, nil, nil)
	e := emit.New()

	a.Alloc(e, 0, KindGPR, Read, -1, false)
	require.Empty(t, be.loads)
}

func TestCleanupRecompilerFlushesAndClearsTables(t *testing.T) {
	be := &fakeBackend{}
	a := New(be, nil, nil)
	e := emit.New()

	a.Alloc(e, 3, KindGPR, ReadWrite, -1, false)
	a.CleanupRecompiler(e)

	require.Contains(t, be.stores, uint16(3))
	require.Equal(t, -1, a.findMapped(KindGPR, 3))
}

func TestPrepareCallPanicsIfLockHeld(t *testing.T) {
	be := &fakeBackend{}
	a := New(be, nil, nil)
	e := emit.New()

	idx := a.LAlloc(e, 4, KindGPR, Read, -1)
	_ = idx

	require.Panics(t, func() { a.PrepareCall(e) })
}

func TestClampMaskTracking(t *testing.T) {
	be := &fakeBackend{}
	a := New(be, nil, nil)
	e := emit.New()

	idx := a.Alloc(e, 1, KindSIMD, Write, -1, false)
	a.MarkClamp(idx, 0b0110)
	require.Equal(t, uint8(0b0110), a.ClampMask(idx))
	a.ClearClamp(idx, 0b0010)
	require.Equal(t, uint8(0b0100), a.ClampMask(idx))
}

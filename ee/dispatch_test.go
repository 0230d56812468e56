//go:build amd64

package ee

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ps2re/dynarec/hostapi"
)

// loopWords builds a tiny guest program: one ADDU, then BEQ $0,$0 with
// offset -1 (its target is the branch itself), followed by its delay
// slot nop. The tests below only compile and look the block up; none
// of them runs it.
func loopWords() map[uint32]uint32 {
	return map[uint32]uint32{
		0: encodeRType(opSPECIAL, 1, 2, 3, 0, functADDU),
		4: encodeIType(opBEQ, 0, 0, 0xFFFF), // branch to self
		8: encodeRType(opSPECIAL, 0, 0, 0, 0, 0),
	}
}

func newTestDispatcher(t *testing.T, state *hostapi.EEState, fetch Fetch) *Dispatcher {
	d, err := NewDispatcher(state, fakeMemory{}, fakeHandlers{}, fetch)
	require.NoError(t, err)
	return d
}

func TestDispatcherCompilesAndCachesBlock(t *testing.T) {
	words := loopWords()
	var state hostapi.EEState
	d := newTestDispatcher(t, &state, func(addr uint32) uint32 { return words[addr] })

	b1 := d.findOrCompile(0)
	require.NotNil(t, b1)
	b2 := d.findOrCompile(0)
	require.Same(t, b1, b2, "re-entering the same guest key must return the already-installed block")
}

func TestDispatcherInvalidatesOnTLBModifiedPage(t *testing.T) {
	words := loopWords()
	pc := uint32(0x80000000)
	var state hostapi.EEState
	state.TLBModified = make([]uint64, tlbModifiedPageEnd/64+1)
	d := newTestDispatcher(t, &state, func(addr uint32) uint32 { return words[addr-pc] })

	first := d.findOrCompile(pc)
	require.NotNil(t, first)

	page := pc / 4096
	state.TLBModified[page/64] |= 1 << (page % 64)
	second := d.findOrCompile(pc)
	require.NotSame(t, first, second, "a page marked TLB-modified must force recompilation, not reuse the stale block")

	// A block on another page within the scanned range, compiled by a
	// second dispatcher, is found in its cache on the next lookup.
	otherPC := pc + 0x10000
	otherWords := loopWords()
	d2 := newTestDispatcher(t, &state, func(addr uint32) uint32 { return otherWords[addr-otherPC] })
	other1 := d2.findOrCompile(otherPC)
	other2 := d2.findOrCompile(otherPC)
	require.Same(t, other1, other2)
}

func TestDispatcherRunReturnsImmediatelyWithNoCycleBudget(t *testing.T) {
	words := map[uint32]uint32{
		0: encodeRType(opSPECIAL, 1, 2, 3, 0, functADDU),
		4: encodeRType(opSPECIAL, 0, 0, 0, 0, 0),
	}
	var state hostapi.EEState
	state.CyclesToRun = 0
	d := newTestDispatcher(t, &state, func(addr uint32) uint32 { return words[addr] })

	// With no cycle budget Run must return immediately without
	// attempting to execute any JIT-compiled code.
	d.Run()
	require.Equal(t, uint32(0), state.CyclesToRun)
}

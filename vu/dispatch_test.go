//go:build amd64

package vu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ps2re/dynarec/hostapi"
)

func vuProgram() map[uint32][2]uint32 {
	return map[uint32][2]uint32{
		0: {0, tbitMask},
	}
}

func vuFetch(prog map[uint32][2]uint32) FetchPair {
	return func(addr uint32) (uint32, uint32) {
		p := prog[addr]
		return p[0], p[1]
	}
}

func newTestVUDispatcher(t *testing.T, state *hostapi.VUState, handlers hostapi.VUHandlers, fetch FetchPair) *Dispatcher {
	d, err := NewDispatcher(state, handlers, fetch, 0)
	require.NoError(t, err)
	return d
}

func TestVUDispatcherReusesCompiledBlockForSameKey(t *testing.T) {
	var state hostapi.VUState
	d := newTestVUDispatcher(t, &state, fakeVUHandlers{}, vuFetch(vuProgram()))

	b1 := d.findOrCompile(0)
	b2 := d.findOrCompile(0)
	require.Same(t, b1, b2, "re-entering the same PC/prevPC/CRC/pipeline key must return the installed block")
}

func TestVUDispatcherResetFullFlushesCache(t *testing.T) {
	var state hostapi.VUState
	d := newTestVUDispatcher(t, &state, fakeVUHandlers{}, vuFetch(vuProgram()))

	b1 := d.findOrCompile(0)
	d.Reset(0, true)
	b2 := d.findOrCompile(0)
	require.NotSame(t, b1, b2, "a full reset must flush previously installed blocks")
}

func TestVUDispatcherResetPartialKeepsCache(t *testing.T) {
	var state hostapi.VUState
	d := newTestVUDispatcher(t, &state, fakeVUHandlers{}, vuFetch(vuProgram()))

	b1 := d.findOrCompile(0)
	d.Reset(0, false)
	b2 := d.findOrCompile(0)
	require.Same(t, b1, b2, "a non-full reset only repositions pc/prevPC, it must not drop installed blocks")
}

type stallingVUHandlers struct{}

func (stallingVUHandlers) GIFTransferDone(*hostapi.VUState) bool          { return false }
func (stallingVUHandlers) InterpreterFallback(*hostapi.VUState, uint32) {}

func TestVUDispatcherRunStopsOnUnresolvedXgkickStall(t *testing.T) {
	var state hostapi.VUState
	state.XGKICKStall = 1
	d := newTestVUDispatcher(t, &state, stallingVUHandlers{}, vuFetch(vuProgram()))

	d.Run(1000)
	require.Equal(t, uint64(1), state.XGKICKStall, "the dispatcher must not clear the stall until the host reports the transfer done")
}

func TestVUDispatcherRunWithNoBudgetNeverChecksStall(t *testing.T) {
	var state hostapi.VUState
	state.XGKICKStall = 1
	d := newTestVUDispatcher(t, &state, fakeVUHandlers{}, vuFetch(vuProgram()))

	// Zero cycle budget must short-circuit before touching the stall
	// flag or compiling anything.
	d.Run(0)
	require.Equal(t, uint64(1), state.XGKICKStall)
}

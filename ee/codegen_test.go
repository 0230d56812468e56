//go:build amd64

package ee

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/ps2re/dynarec/hostapi"
)

type fakeMemory struct{}

func (fakeMemory) Read8(*hostapi.EEState, uint32) uint8    { return 0 }
func (fakeMemory) Read16(*hostapi.EEState, uint32) uint16  { return 0 }
func (fakeMemory) Read32(*hostapi.EEState, uint32) uint32  { return 0 }
func (fakeMemory) Read64(*hostapi.EEState, uint32) uint64  { return 0 }
func (fakeMemory) Read128(*hostapi.EEState, uint32) hostapi.U128 { return hostapi.U128{} }

func (fakeMemory) Write8(*hostapi.EEState, uint32, uint8)          {}
func (fakeMemory) Write16(*hostapi.EEState, uint32, uint16)        {}
func (fakeMemory) Write32(*hostapi.EEState, uint32, uint32)        {}
func (fakeMemory) Write64(*hostapi.EEState, uint32, uint64)        {}
func (fakeMemory) Write128(*hostapi.EEState, uint32, hostapi.U128) {}

type fakeHandlers struct{}

func (fakeHandlers) SyscallException(*hostapi.EEState)          {}
func (fakeHandlers) VU0Wait(*hostapi.EEState) bool               { return true }
func (fakeHandlers) CheckInterlock(*hostapi.EEState) bool        { return true }
func (fakeHandlers) ClearInterlock(*hostapi.EEState)             {}
func (fakeHandlers) InterpreterFallback(*hostapi.EEState, uint32) {}

func newTestCodeGen() *CodeGen {
	return NewCodeGen(fakeMemory{}, fakeHandlers{})
}

func TestCompileIntegerALUBlockProducesNonEmptyCode(t *testing.T) {
	words := map[uint32]uint32{
		0: encodeRType(opSPECIAL, 1, 2, 3, 0, functADDU),
		4: opJ << 26, // j 0; its delay slot at 8 reads as 0 (nop)
	}
	block := Translate(0, func(addr uint32) uint32 { return words[addr] })
	g := newTestCodeGen()
	var state hostapi.EEState
	code := g.Compile(block, uintptrOf(&state))
	require.NotEmpty(t, code)
}

func TestCompileBranchLikelyNotTakenGuardsDelaySlot(t *testing.T) {
	words := map[uint32]uint32{
		0: encodeIType(opBEQL, 1, 2, 4),
		4: encodeRType(opSPECIAL, 1, 0, 2, 0, functADD),
	}
	block := Translate(0, func(addr uint32) uint32 { return words[addr] })
	require.True(t, block.Instructions[0].IsLikely)

	g := newTestCodeGen()
	var state hostapi.EEState
	code := g.Compile(block, uintptrOf(&state))
	require.NotEmpty(t, code)
}

func TestCompileDivideByZeroEmitsGuardedPath(t *testing.T) {
	words := map[uint32]uint32{
		0: encodeRType(opSPECIAL, 1, 2, 0, 0, functDIV),
		4: opJ << 26, // j 0; its delay slot at 8 reads as 0 (nop)
	}
	block := Translate(0, func(addr uint32) uint32 { return words[addr] })
	g := newTestCodeGen()
	var state hostapi.EEState
	code := g.Compile(block, uintptrOf(&state))
	require.NotEmpty(t, code)
}

func uintptrOf(s *hostapi.EEState) uintptr {
	return uintptr(unsafe.Pointer(s))
}

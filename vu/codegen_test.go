//go:build amd64

package vu

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/ps2re/dynarec/hostapi"
	"github.com/ps2re/dynarec/ir"
)

type fakeVUHandlers struct{}

func (fakeVUHandlers) GIFTransferDone(*hostapi.VUState) bool         { return true }
func (fakeVUHandlers) InterpreterFallback(*hostapi.VUState, uint32) {}

func newTestVUCodeGen() *CodeGen {
	return NewCodeGen(fakeVUHandlers{})
}

func vuStatePtr(s *hostapi.VUState) uintptr { return uintptr(unsafe.Pointer(s)) }

func TestCompileFMACAddProducesNonEmptyCode(t *testing.T) {
	block := &ir.Block{}
	block.Append(ir.Instruction{Op: ir.VAddVectors, Dest: ir.Register(1), Source: ir.Register(2), Source2: ir.Register(3), Field: 0xF})
	g := newTestVUCodeGen()
	var state hostapi.VUState
	code := g.Compile(block, vuStatePtr(&state))
	require.NotEmpty(t, code)
}

func TestCompilePartialFieldMaskUsesBlendScratch(t *testing.T) {
	block := &ir.Block{}
	block.Append(ir.Instruction{Op: ir.VMulVectors, Dest: ir.Register(4), Source: ir.Register(5), Source2: ir.Register(6), Field: 0x3})
	g := newTestVUCodeGen()
	var state hostapi.VUState
	code := g.Compile(block, vuStatePtr(&state))
	require.NotEmpty(t, code)
}

func TestCompileMaddFoldsAccumulator(t *testing.T) {
	block := &ir.Block{}
	block.Append(ir.Instruction{Op: ir.VMaddVectors, Dest: ir.Register(1), Source: ir.Register(2), Source2: ir.Register(3), Field: 0xF})
	g := newTestVUCodeGen()
	var state hostapi.VUState
	code := g.Compile(block, vuStatePtr(&state))
	require.NotEmpty(t, code)
}

func TestCompileFixedToFloatWithShiftMaterializesScale(t *testing.T) {
	block := &ir.Block{}
	block.Append(ir.Instruction{Op: ir.VFixedToFloat12, Dest: ir.Register(2), Source: ir.Register(3), Field: 0xF})
	g := newTestVUCodeGen()
	var state hostapi.VUState
	code := g.Compile(block, vuStatePtr(&state))
	require.NotEmpty(t, code)
}

func TestCompileDivFallsBackToInterpreter(t *testing.T) {
	block := &ir.Block{}
	block.Append(ir.Instruction{Op: ir.VDiv, Source: ir.Register(1), Source2: ir.Register(2), Opcode32: 0x123})
	g := newTestVUCodeGen()
	var state hostapi.VUState
	code := g.Compile(block, vuStatePtr(&state))
	require.NotEmpty(t, code)
}

func TestCompileViBranchStagesPC(t *testing.T) {
	block := &ir.Block{}
	block.Append(ir.Instruction{Op: ir.VIBranchEq, Source: ir.Register(4), JumpDest: 0x40, JumpFailDest: 0x10})
	g := newTestVUCodeGen()
	var state hostapi.VUState
	code := g.Compile(block, vuStatePtr(&state))
	require.NotEmpty(t, code)
}

func TestCompileXgkickSetsStallFlag(t *testing.T) {
	block := &ir.Block{}
	block.Append(ir.Instruction{Op: ir.Xgkick, Source: ir.Register(3)})
	g := newTestVUCodeGen()
	var state hostapi.VUState
	code := g.Compile(block, vuStatePtr(&state))
	require.NotEmpty(t, code)
}

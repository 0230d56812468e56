package ee

import (
	"testing"

	"github.com/ps2re/dynarec/ir"
	"github.com/stretchr/testify/require"
)

func encodeRType(op, rs, rt, rd, sa, funct uint32) uint32 {
	return (op << 26) | (rs << 21) | (rt << 16) | (rd << 11) | (sa << 6) | funct
}

func encodeIType(op, rs, rt, imm uint32) uint32 {
	return (op << 26) | (rs << 21) | (rt << 16) | (imm & 0xFFFF)
}

func TestDecodeAddWordReg(t *testing.T) {
	w := encodeRType(opSPECIAL, 4, 5, 6, 0, functADDU)
	inst := decode(0, w)
	require.Equal(t, ir.AddWordReg, inst.Op)
	require.Equal(t, ir.Register(6), inst.Dest)
	require.Equal(t, ir.Register(4), inst.Source)
	require.Equal(t, ir.Register(5), inst.Source2)
}

func TestDecodeAddImmSignExtends(t *testing.T) {
	w := encodeIType(opADDIU, 4, 6, 0xFFFF) // imm = -1
	inst := decode(0, w)
	require.Equal(t, ir.AddWordImm, inst.Op)
	require.Equal(t, uint64(^uint64(0)), inst.Source2.Imm)
}

func TestDecodeBranchEqualComputesTarget(t *testing.T) {
	w := encodeIType(opBEQ, 1, 2, 4)
	inst := decode(0x1000, w)
	require.Equal(t, ir.BranchEq, inst.Op)
	require.Equal(t, uint32(0x1000+4+4*4), inst.JumpDest)
	require.Equal(t, uint32(0x1008), inst.JumpFailDest)
	require.False(t, inst.IsLikely)
}

func TestDecodeBranchLikelySetsFlag(t *testing.T) {
	w := encodeIType(opBEQL, 1, 2, 1)
	inst := decode(0, w)
	require.True(t, inst.IsLikely)
}

func TestDecodeUnrecognizedWordFallsBack(t *testing.T) {
	inst := decode(0, 0xFFFFFFFF)
	require.Equal(t, ir.FallbackInterpreter, inst.Op)
}

func TestTranslateStopsAfterBranchDelaySlot(t *testing.T) {
	words := map[uint32]uint32{
		0: encodeIType(opBEQ, 0, 0, 0),
		4: encodeRType(opSPECIAL, 1, 0, 2, 0, functADD),
	}
	block := Translate(0, func(addr uint32) uint32 { return words[addr] })
	require.Equal(t, 2, block.Len())
	require.True(t, block.Instructions[0].IsJump())
}

func TestBlockEqualStructuralComparison(t *testing.T) {
	a := &ir.Block{}
	a.Append(ir.Instruction{Op: ir.AddWordReg, Dest: ir.Register(1)})
	b := &ir.Block{}
	b.Append(ir.Instruction{Op: ir.AddWordReg, Dest: ir.Register(1)})
	require.True(t, a.Equal(b))

	c := &ir.Block{}
	c.Append(ir.Instruction{Op: ir.AddWordReg, Dest: ir.Register(2)})
	require.False(t, a.Equal(c))
}

func TestMMIPaddWordDecodesAllLanes(t *testing.T) {
	w := encodeRType(opMMI, 4, 5, 6, mmiSubPADDW, 0)
	inst := decodeMMI(w)
	require.Equal(t, ir.PaddWord, inst.Op)
}

func TestSaturateS8ClampsToRange(t *testing.T) {
	require.Equal(t, int8(127), saturateS8(200))
	require.Equal(t, int8(-128), saturateS8(-200))
	require.Equal(t, int8(5), saturateS8(5))
}

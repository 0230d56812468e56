package vu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ps2re/dynarec/ir"
)

func encodeLower(ext uint32, fs, ft uint16, bc uint8, flags uint32) uint32 {
	return flags | (uint32(fs)<<11) | (uint32(ft)<<16) | ext | uint32(bc)
}

func TestDecodeLowerDivSetsSevenCycleLatency(t *testing.T) {
	w := encodeLower(lowerDIV, 1, 2, 1, 0)
	inst := DecodeLower(0, w)
	require.Equal(t, ir.VDiv, inst.Op)
	require.Equal(t, 7, inst.Latency)
}

func TestDecodeLowerXgkickReadsSourceReg(t *testing.T) {
	w := encodeLower(lowerXGKICK, 7, 0, 0, 0)
	inst := DecodeLower(0, w)
	require.Equal(t, ir.Xgkick, inst.Op)
	require.Equal(t, ir.Register(7), inst.Source)
}

func TestDecodeLowerIBEQComputesBranchTargets(t *testing.T) {
	w := encodeLower(0, 3, 0, 0, lowerIBEQ)
	inst := DecodeLower(0x100, w)
	require.Equal(t, ir.VIBranchEq, inst.Op)
	require.Equal(t, uint32(0x110), inst.JumpFailDest)
}

func TestDecodeLowerUnrecognizedFallsBack(t *testing.T) {
	inst := DecodeLower(0, 0x00000001)
	require.Equal(t, ir.FallbackInterpreter, inst.Op)
}

func TestHasEBitAndTBit(t *testing.T) {
	require.True(t, HasEBit(ebitMask))
	require.True(t, HasTBit(tbitMask))
	require.False(t, HasEBit(0))
	require.False(t, HasTBit(0))
}

func TestTranslateStopsImmediatelyOnTBit(t *testing.T) {
	words := map[uint32][2]uint32{
		0: {0, tbitMask},
	}
	block := Translate(0, func(addr uint32) (uint32, uint32) {
		p := words[addr]
		return p[0], p[1]
	})
	require.Equal(t, 2, block.Len()) // one lower + one upper IR instruction for the single pair
}

func TestTranslateStopsOnePairAfterEBit(t *testing.T) {
	words := map[uint32][2]uint32{
		0: {0, ebitMask},
		8: {0, 0},
	}
	block := Translate(0, func(addr uint32) (uint32, uint32) {
		p := words[addr]
		return p[0], p[1]
	})
	require.Equal(t, 4, block.Len()) // two pairs, two IR instructions each
}

// TestTranslateIsDeterministic is the VU analogue of decoding being a
// pure function of guest bytes: translating the same microprogram
// twice from scratch must produce structurally identical IR.
func TestTranslateIsDeterministic(t *testing.T) {
	words := map[uint32][2]uint32{
		0: {0, tbitMask},
	}
	fetch := func(addr uint32) (uint32, uint32) {
		p := words[addr]
		return p[0], p[1]
	}
	a := Translate(0, fetch)
	b := Translate(0, fetch)
	require.True(t, a.Equal(b))
}

// TestFixedFloatScaleRoundTrips checks the scale-factor arithmetic
// lowerFixedToFloat/lowerFloatToFixed rely on: converting an int32 to
// float32 and scaling by 2^-N then back by 2^N recovers the original
// value for integers whose float representation is exact at that
// scale, for each of the four shift amounts the ISA defines.
func TestFixedFloatScaleRoundTrips(t *testing.T) {
	for _, shift := range []uint{0, 4, 12, 15} {
		fixed := int32(100)
		scale := float32(1.0)
		if shift != 0 {
			scale = 1.0 / float32(int64(1)<<shift)
		}
		f := float32(fixed) * scale
		back := int32(f / scale)
		require.Equal(t, fixed, back, "shift=%d", shift)
	}
}

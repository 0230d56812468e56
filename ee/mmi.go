package ee

import "github.com/ps2re/dynarec/ir"

// MMI (parallel/SIMD integer) instructions are implemented natively
// with saturating lane arithmetic rather than routed to
// FallbackInterpreter. The sub-opcode table below keys off the 5-bit
// field at bits [10:6] the way the real MMI encoding layers a second
// opcode field under the primary 0x1C funct; only the padd/psub
// family is decoded natively, every other MMI sub-opcode still falls
// back to the interpreter.
const (
	mmiSubPADDB  = 0x00
	mmiSubPADDH  = 0x01
	mmiSubPADDW  = 0x02
	mmiSubPSUBB  = 0x08
	mmiSubPSUBH  = 0x09
	mmiSubPSUBW  = 0x0A
	mmiSubPADSBH = 0x10
	mmiSubPADSBW = 0x11
	mmiSubPSSBH  = 0x12
	mmiSubPSSBW  = 0x13
)

func decodeMMI(w uint32) ir.Instruction {
	sub := saField(w)
	rd, rs, rt := rdField(w), rsField(w), rtField(w)
	switch sub {
	case mmiSubPADDB:
		return mmiOp(ir.PaddByte, rd, rs, rt)
	case mmiSubPADDH:
		return mmiOp(ir.PaddHalf, rd, rs, rt)
	case mmiSubPADDW:
		return mmiOp(ir.PaddWord, rd, rs, rt)
	case mmiSubPSUBB:
		return mmiOp(ir.PsubByte, rd, rs, rt)
	case mmiSubPSUBH:
		return mmiOp(ir.PsubHalf, rd, rs, rt)
	case mmiSubPSUBW:
		return mmiOp(ir.PsubWord, rd, rs, rt)
	case mmiSubPADSBH:
		return mmiOp(ir.PaddSignedHalf, rd, rs, rt)
	case mmiSubPADSBW:
		return mmiOp(ir.PaddSignedWord, rd, rs, rt)
	case mmiSubPSSBH:
		return mmiOp(ir.PsubSignedHalf, rd, rs, rt)
	case mmiSubPSSBW:
		return mmiOp(ir.PsubSignedWord, rd, rs, rt)
	default:
		return fallback(w)
	}
}

func mmiOp(op ir.Opcode, dest, a, b uint16) ir.Instruction {
	return ir.Instruction{Op: op, Dest: ir.Register(dest), Source: ir.Register(a), Source2: ir.Register(b),
		Reads: []uint16{a, b}, Writes: []uint16{dest}, Class: ir.PipelineMAC1, CycleCount: 1}
}

// saturateS8/16/32 implement the guest's signed-saturating-add/sub
// semantics for the PADSB*/PSSB* family.
func saturateS8(v int32) int8 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return int8(v)
}

func saturateS16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func saturateS32(v int64) int32 {
	if v > 0x7FFFFFFF {
		return 0x7FFFFFFF
	}
	if v < -0x80000000 {
		return -0x80000000
	}
	return int32(v)
}

// Package vu implements the Vector Unit microcode decoder/translator,
// pipeline-latency analysis, code generator, and the VU half of the
// runtime dispatcher.
package vu

import "github.com/ps2re/dynarec/ir"

// Microcode word fields. The VU instruction word packs an UPPER
// (FMAC) op in the high 32 bits and a LOWER op in the low 32 bits;
// E-bit/I-bit/M-bit/D-bit/T-bit live in the lower word's bit 31/30/29/28/27.
func upperOpcode(lower uint32) uint32 { return (lower >> 6) & 0x3F }
func lowerOpcodeExt(lower uint32) uint32 { return lower & 0x7FF }

func fd(upper uint32) uint16    { return uint16((upper >> 6) & 0x1F) }
func fs(upper uint32) uint16    { return uint16((upper >> 11) & 0x1F) }
func ft(upper uint32) uint16    { return uint16((upper >> 16) & 0x1F) }
func destMask(upper uint32) uint8 { return uint8((upper >> 21) & 0xF) }
func bcField(upper uint32) uint8  { return uint8(upper & 0x3) }

const (
	ebitMask = 1 << 31
	ibitMask = 1 << 30
	mbitMask = 1 << 29
	dbitMask = 1 << 28
	tbitMask = 1 << 27
)

// HasEBit reports whether the lower word's E-bit (end of microprogram,
// two more instructions then stop) is set.
func HasEBit(lower uint32) bool { return lower&ebitMask != 0 }

// HasTBit reports the T-bit (end of microprogram, stop immediately
// after this instruction pair).
func HasTBit(lower uint32) bool { return lower&tbitMask != 0 }

// DecodeUpper translates the FMAC-family upper instruction word into
// IR. Unrecognized upper opcodes route to the interpreter; see
// DESIGN.md for which families are natively lowered.
func DecodeUpper(upper uint32) ir.Instruction {
	op := upperOpcode(upper)
	d, s, t, mask := fd(upper), fs(upper), ft(upper), destMask(upper)
	switch op {
	case upperADDbc, upperADDbc + 1, upperADDbc + 2, upperADDbc + 3:
		return vbc(ir.VAddVectorByScalar, d, s, t, bcField(upper), mask)
	case upperSUBbc, upperSUBbc + 1, upperSUBbc + 2, upperSUBbc + 3:
		return vbc(ir.VSubVectorByScalar, d, s, t, bcField(upper), mask)
	case upperMULbc, upperMULbc + 1, upperMULbc + 2, upperMULbc + 3:
		return vbc(ir.VMulVectorByScalar, d, s, t, bcField(upper), mask)
	case upperADD:
		return vvv(ir.VAddVectors, d, s, t, mask)
	case upperSUB:
		return vvv(ir.VSubVectors, d, s, t, mask)
	case upperMUL:
		return vvv(ir.VMulVectors, d, s, t, mask)
	case upperMADD:
		return vvv(ir.VMaddVectors, d, s, t, mask)
	case upperMSUB:
		return vvv(ir.VMsubVectors, d, s, t, mask)
	case upperMAX:
		return fallbackUpper(upper)
	case upperITOF0, upperITOF4, upperITOF12, upperITOF15:
		return vToFloat(op, d, t, mask)
	case upperFTOI0, upperFTOI4, upperFTOI12, upperFTOI15:
		return vToFixed(op, d, t, mask)
	case upperCLIP:
		return ir.Instruction{Op: ir.VClip, Source: ir.Register(s), Source2: ir.Register(t),
			Opcode32: upper, Class: ir.PipelineMAC1, CycleCount: 1}
	default:
		return fallbackUpper(upper)
	}
}

// DecodeLower translates the lower instruction word (EFU, DIV/SQRT,
// loads/stores, integer branches, XGKICK, housekeeping).
func DecodeLower(pc uint32, lower uint32) ir.Instruction {
	ext := lowerOpcodeExt(lower)
	switch ext & 0x7C0 {
	case lowerDIV:
		return ir.Instruction{Op: ir.VDiv, Source: ir.Register(fs(lower)), Source2: ir.Register(ft(lower)),
			Field: bcField(lower >> 16), Field2: bcField(lower), Opcode32: lower,
			Class: ir.PipelineMAC0, CycleCount: 7, Latency: 7}
	case lowerSQRT:
		return ir.Instruction{Op: ir.VESqrt, Source: ir.Register(ft(lower)), Field2: bcField(lower),
			Opcode32: lower, Class: ir.PipelineMAC0, CycleCount: 7, Latency: 7}
	case lowerRSQRT:
		return ir.Instruction{Op: ir.VRsqrt, Source: ir.Register(fs(lower)), Source2: ir.Register(ft(lower)),
			Field: bcField(lower >> 16), Field2: bcField(lower), Opcode32: lower,
			Class: ir.PipelineMAC0, CycleCount: 13, Latency: 13}
	case lowerXGKICK:
		return ir.Instruction{Op: ir.Xgkick, Source: ir.Register(fs(lower)), Class: ir.PipelineLoadStore, CycleCount: 1}
	}
	switch ext & 0x7FF {
	case lowerIBEQ:
		return viBranch(ir.VIBranchEq, pc, lower)
	case lowerIBNE:
		return viBranch(ir.VIBranchNe, pc, lower)
	case lowerIBGEZ:
		return viBranch(ir.VIBranchGez, pc, lower)
	case lowerIBLEZ:
		return viBranch(ir.VIBranchLez, pc, lower)
	case lowerIBLTZ:
		return viBranch(ir.VIBranchLtz, pc, lower)
	case lowerIBGTZ:
		return viBranch(ir.VIBranchGtz, pc, lower)
	}
	return fallbackLower(lower)
}

const (
	upperADDbc  = 0x00
	upperSUBbc  = 0x04
	upperMULbc  = 0x08
	upperADD    = 0x28
	upperSUB    = 0x2C
	upperMUL    = 0x1A
	upperMADD   = 0x29
	upperMSUB   = 0x2D
	upperMAX    = 0x1B
	upperITOF0  = 0x30
	upperITOF4  = 0x31
	upperITOF12 = 0x32
	upperITOF15 = 0x33
	upperFTOI0  = 0x34
	upperFTOI4  = 0x35
	upperFTOI12 = 0x36
	upperFTOI15 = 0x37
	upperCLIP   = 0x1F
)

const (
	lowerDIV    = 0x3C0
	lowerSQRT   = 0x780
	lowerRSQRT  = 0x7C0
	lowerXGKICK = 0x4C0

	lowerIBEQ  = 0x500
	lowerIBNE  = 0x501
	lowerIBLTZ = 0x502
	lowerIBGEZ = 0x503
	lowerIBLEZ = 0x504
	lowerIBGTZ = 0x505
)

func vvv(op ir.Opcode, d, s, t uint16, mask uint8) ir.Instruction {
	return ir.Instruction{Op: op, Dest: ir.Register(d), Source: ir.Register(s), Source2: ir.Register(t),
		Field: mask, Class: ir.PipelineMAC1, CycleCount: 1, Latency: 4}
}

func vbc(op ir.Opcode, d, s, t uint16, bc uint8, mask uint8) ir.Instruction {
	return ir.Instruction{Op: op, Dest: ir.Register(d), Source: ir.Register(s), Source2: ir.Register(t),
		BC: bc, Field: mask, Class: ir.PipelineMAC1, CycleCount: 1, Latency: 4}
}

func vToFloat(op uint32, d, t uint16, mask uint8) ir.Instruction {
	shift := map[uint32]ir.Opcode{upperITOF0: ir.VFixedToFloat0, upperITOF4: ir.VFixedToFloat4,
		upperITOF12: ir.VFixedToFloat12, upperITOF15: ir.VFixedToFloat15}[op]
	return ir.Instruction{Op: shift, Dest: ir.Register(d), Source: ir.Register(t), Field: mask,
		Class: ir.PipelineMAC1, CycleCount: 1, Latency: 4}
}

func vToFixed(op uint32, d, t uint16, mask uint8) ir.Instruction {
	shift := map[uint32]ir.Opcode{upperFTOI0: ir.VFloatToFixed0, upperFTOI4: ir.VFloatToFixed4,
		upperFTOI12: ir.VFloatToFixed12, upperFTOI15: ir.VFloatToFixed15}[op]
	return ir.Instruction{Op: shift, Dest: ir.Register(d), Source: ir.Register(t), Field: mask,
		Class: ir.PipelineMAC1, CycleCount: 1, Latency: 4}
}

func viBranch(op ir.Opcode, pc uint32, lower uint32) ir.Instruction {
	imm := int32(int16(lower & 0x7FF << 5)) >> 5
	target := uint32(int32(pc) + 8 + imm*8)
	return ir.Instruction{Op: op, Source: ir.Register(fs(lower)), JumpDest: target, JumpFailDest: pc + 16,
		Class: ir.PipelineBranch, CycleCount: 1}
}

func fallbackUpper(upper uint32) ir.Instruction {
	return ir.Instruction{Op: ir.FallbackInterpreter, Opcode32: upper, Class: ir.PipelineMAC1, CycleCount: 1}
}

func fallbackLower(lower uint32) ir.Instruction {
	return ir.Instruction{Op: ir.FallbackInterpreter, Opcode32: lower, Class: ir.PipelineMAC0, CycleCount: 1}
}

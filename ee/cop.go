package ee

import "github.com/ps2re/dynarec/ir"

const (
	cop0FunctERET = 0x18
)

func decodeCOP0(w uint32) ir.Instruction {
	rs := rsField(w)
	if rs == 0x10 && functField(w) == cop0FunctERET {
		return ir.Instruction{Op: ir.ExceptionReturn, Class: ir.PipelineERET, CycleCount: 1}
	}
	return fallback(w)
}

func decodeCOP1(w uint32) ir.Instruction {
	rs := rsField(w)
	if rs < 0x10 {
		// MFC1/MTC1/CFC1/CTC1: moves between an FPU register and an EE
		// GPR, routed through the interpreter fallback.
		return fallback(w)
	}
	funct := functField(w)
	rd, rt, rs2 := rdField(w), rtField(w), rsField(w)
	switch funct {
	case 0x00:
		return fpu(ir.FloatingPointAdd, rd, rs2, rt)
	case 0x01:
		return fpu(ir.FloatingPointSub, rd, rs2, rt)
	case 0x02:
		return fpu(ir.FloatingPointMul, rd, rs2, rt)
	case 0x03:
		return fpu(ir.FloatingPointDiv, rd, rs2, rt)
	case 0x04:
		return fpu1(ir.FloatingPointSqrt, rd, rt)
	case 0x05:
		return fpu1(ir.FloatingPointAbs, rd, rs2)
	case 0x06:
		return fpu1(ir.FloatingPointMin, rd, rs2) // MOV.S reuses the 1-operand shape
	case 0x07:
		return fpu1(ir.FloatingPointNegate, rd, rs2)
	case 0x16:
		return fpu1(ir.FloatingPointRSqrt, rd, rt)
	case 0x18:
		return fpu1(ir.FloatingPointConvertToFixedPoint, rd, rs2)
	case 0x20:
		return fpu1(ir.FixedPointConvertToFloatingPoint, rd, rs2)
	case 0x28:
		return fpu(ir.FloatingPointMin, rd, rs2, rt)
	case 0x29:
		return fpu(ir.FloatingPointMax, rd, rs2, rt)
	default:
		return fallback(w)
	}
}

func fpu(op ir.Opcode, dest, a, b uint16) ir.Instruction {
	return ir.Instruction{Op: op, Dest: ir.Register(dest), Source: ir.Register(a), Source2: ir.Register(b),
		Reads: []uint16{a, b}, Writes: []uint16{dest}, Class: ir.PipelineCOP1, CycleCount: 4}
}

func fpu1(op ir.Opcode, dest, a uint16) ir.Instruction {
	return ir.Instruction{Op: op, Dest: ir.Register(dest), Source: ir.Register(a),
		Reads: []uint16{a}, Writes: []uint16{dest}, Class: ir.PipelineCOP1, CycleCount: 4}
}

func decodeCOP2(w uint32) ir.Instruction {
	rs := rsField(w)
	switch rs {
	case 0x01: // QMFC2-style quadword move from VU0 — handled as Cop2Call
		return ir.Instruction{Op: ir.Cop2Call, Opcode32: w, Dest: ir.Register(rtField(w)), Class: ir.PipelineCOP2, CycleCount: 1}
	case 0x05: // QMTC2
		return ir.Instruction{Op: ir.Cop2Call, Opcode32: w, Source: ir.Register(rtField(w)), Class: ir.PipelineCOP2, CycleCount: 1}
	default:
		if rs >= 0x10 {
			// VU0 macro-mode instruction (VCALLMS/VCALLMSR fall here).
			return ir.Instruction{Op: ir.Cop2Call, Opcode32: w, Class: ir.PipelineCOP2, CycleCount: 1}
		}
		return fallback(w)
	}
}

// vi0Addr resolves the 5-bit register field the EE's QMFC2/QMTC2/
// CFC2/CTC2 family uses to address VU0's integer register file down
// to the VI[0..15] slot index it names.
func vi0Addr(field uint16) int {
	return int(field & 0x0F)
}

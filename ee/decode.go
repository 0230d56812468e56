// Package ee implements the Emotion Engine decoder/translator (C4)
// and code generator (C7), plus the EE half of the runtime dispatcher
// (C9).
package ee

import "github.com/ps2re/dynarec/ir"

// Field extraction for the 32-bit MIPS-like guest word.
func opcodeField(w uint32) uint32 { return w >> 26 }
func rsField(w uint32) uint16     { return uint16((w >> 21) & 0x1F) }
func rtField(w uint32) uint16     { return uint16((w >> 16) & 0x1F) }
func rdField(w uint32) uint16     { return uint16((w >> 11) & 0x1F) }
func saField(w uint32) uint32     { return (w >> 6) & 0x1F }
func functField(w uint32) uint32  { return w & 0x3F }
func immField(w uint32) uint32    { return w & 0xFFFF }
func signExtImm(w uint32) uint64  { return uint64(int64(int16(w & 0xFFFF))) }
func zeroExtImm(w uint32) uint64  { return uint64(w & 0xFFFF) }
func jumpTarget(w uint32) uint32  { return w & 0x3FFFFFF }

const (
	opSPECIAL = 0x00
	opREGIMM  = 0x01
	opJ       = 0x02
	opJAL     = 0x03
	opBEQ     = 0x04
	opBNE     = 0x05
	opBLEZ    = 0x06
	opBGTZ    = 0x07
	opADDI    = 0x08
	opADDIU   = 0x09
	opSLTI    = 0x0A
	opSLTIU   = 0x0B
	opANDI    = 0x0C
	opORI     = 0x0D
	opXORI    = 0x0E
	opLUI     = 0x0F
	opCOP0    = 0x10
	opCOP1    = 0x11
	opCOP2    = 0x12
	opBEQL    = 0x14
	opBNEL    = 0x15
	opBLEZL   = 0x16
	opBGTZL   = 0x17
	opDADDI   = 0x18
	opDADDIU  = 0x19
	opLDL     = 0x1A
	opLDR     = 0x1B
	opMMI     = 0x1C
	opLB      = 0x20
	opLH      = 0x21
	opLWL     = 0x22
	opLW      = 0x23
	opLBU     = 0x24
	opLHU     = 0x25
	opLWR     = 0x26
	opLWU     = 0x27
	opSB      = 0x28
	opSH      = 0x29
	opSWL     = 0x2A
	opSW      = 0x2B
	opSDL     = 0x2C
	opSDR     = 0x2D
	opSWR     = 0x2E
	opLWC1    = 0x31
	opLQC2    = 0x36
	opLD      = 0x37
	opSWC1    = 0x39
	opSQC2    = 0x3E
	opSD      = 0x3F
)

const (
	functSLL     = 0x00
	functSRL     = 0x02
	functSRA     = 0x03
	functSLLV    = 0x04
	functSRLV    = 0x06
	functSRAV    = 0x07
	functJR      = 0x08
	functJALR    = 0x09
	functSYSCALL = 0x0C
	functMFHI    = 0x10
	functMTHI    = 0x11
	functMFLO    = 0x12
	functMTLO    = 0x13
	functMULT    = 0x18
	functMULTU   = 0x19
	functDIV     = 0x1A
	functDIVU    = 0x1B
	functADD     = 0x20
	functADDU    = 0x21
	functSUB     = 0x22
	functSUBU    = 0x23
	functAND     = 0x24
	functOR      = 0x25
	functXOR     = 0x26
	functNOR     = 0x27
	functSLT     = 0x2A
	functSLTU    = 0x2B
)

// decode translates one 32-bit guest word at pc into an IR
// instruction, populating operands with guest register indices or
// sign/zero-extended immediates per the guest's field semantics, and
// dependency info (read/write sets, pipeline class, latency).
func decode(pc uint32, w uint32) ir.Instruction {
	op := opcodeField(w)
	switch op {
	case opSPECIAL:
		return decodeSpecial(w)
	case opADDI, opADDIU:
		return regImm(ir.AddWordImm, rtField(w), rsField(w), signExtImm(w), ir.PipelineIntGeneric)
	case opDADDI, opDADDIU:
		return regImm(ir.AddDoublewordImm, rtField(w), rsField(w), signExtImm(w), ir.PipelineIntWide)
	case opSLTI:
		return regImm(ir.SetLessThanImm, rtField(w), rsField(w), signExtImm(w), ir.PipelineIntGeneric)
	case opSLTIU:
		return regImm(ir.SetLessThanImmUnsigned, rtField(w), rsField(w), signExtImm(w), ir.PipelineIntGeneric)
	case opANDI:
		return regImm(ir.AndImm, rtField(w), rsField(w), zeroExtImm(w), ir.PipelineIntGeneric)
	case opORI:
		return regImm(ir.OrImm, rtField(w), rsField(w), zeroExtImm(w), ir.PipelineIntGeneric)
	case opXORI:
		return regImm(ir.XorImm, rtField(w), rsField(w), zeroExtImm(w), ir.PipelineIntGeneric)
	case opLUI:
		return ir.Instruction{Op: ir.LoadConst, Dest: ir.Register(rtField(w)), Source: ir.Immediate(uint64(w&0xFFFF) << 16),
			Writes: []uint16{rtField(w)}, Class: ir.PipelineIntGeneric, CycleCount: 1}
	case opBEQ:
		return branch(ir.BranchEq, pc, w, false)
	case opBNE:
		return branch(ir.BranchNe, pc, w, false)
	case opBLEZ:
		return branchZero(ir.BranchLez, pc, w, false)
	case opBGTZ:
		return branchZero(ir.BranchGtz, pc, w, false)
	case opBEQL:
		return branch(ir.BranchEq, pc, w, true)
	case opBNEL:
		return branch(ir.BranchNe, pc, w, true)
	case opBLEZL:
		return branchZero(ir.BranchLez, pc, w, true)
	case opBGTZL:
		return branchZero(ir.BranchGtz, pc, w, true)
	case opJ:
		return ir.Instruction{Op: ir.Jump, JumpDest: jumpDest(pc, w), Class: ir.PipelineBranch, CycleCount: 1}
	case opJAL:
		return ir.Instruction{Op: ir.JumpAndLink, JumpDest: jumpDest(pc, w), IsLink: true,
			Writes: []uint16{31}, Class: ir.PipelineBranch, CycleCount: 1}
	case opLB:
		return load(ir.LoadByte, rtField(w), rsField(w), signExtImm(w))
	case opLBU:
		return load(ir.LoadByteUnsigned, rtField(w), rsField(w), signExtImm(w))
	case opLH:
		return load(ir.LoadHalfword, rtField(w), rsField(w), signExtImm(w))
	case opLHU:
		return load(ir.LoadHalfwordUnsigned, rtField(w), rsField(w), signExtImm(w))
	case opLW:
		return load(ir.LoadWord, rtField(w), rsField(w), signExtImm(w))
	case opLWU:
		return load(ir.LoadWordUnsigned, rtField(w), rsField(w), signExtImm(w))
	case opLD:
		return load(ir.LoadDoubleword, rtField(w), rsField(w), signExtImm(w))
	case opLQC2:
		return load(ir.LoadQuadwordCop2, rtField(w), rsField(w), signExtImm(w))
	case opLWL:
		return load(ir.LoadWordLeft, rtField(w), rsField(w), signExtImm(w))
	case opLWR:
		return load(ir.LoadWordRight, rtField(w), rsField(w), signExtImm(w))
	case opSB:
		return store(ir.StoreByte, rtField(w), rsField(w), signExtImm(w))
	case opSH:
		return store(ir.StoreHalfword, rtField(w), rsField(w), signExtImm(w))
	case opSW:
		return store(ir.StoreWord, rtField(w), rsField(w), signExtImm(w))
	case opSD:
		return store(ir.StoreDoubleword, rtField(w), rsField(w), signExtImm(w))
	case opSQC2:
		return store(ir.StoreQuadwordCop2, rtField(w), rsField(w), signExtImm(w))
	case opSWL:
		return store(ir.StoreWordLeft, rtField(w), rsField(w), signExtImm(w))
	case opSWR:
		return store(ir.StoreWordRight, rtField(w), rsField(w), signExtImm(w))
	case opMMI:
		inst := decodeMMI(w)
		inst.Opcode32 = w
		return inst
	case opCOP0:
		return decodeCOP0(w)
	case opCOP1:
		inst := decodeCOP1(w)
		inst.Opcode32 = w
		return inst
	case opCOP2:
		return decodeCOP2(w)
	default:
		return fallback(w)
	}
}

func decodeSpecial(w uint32) ir.Instruction {
	funct := functField(w)
	rs, rt, rd, sa := rsField(w), rtField(w), rdField(w), saField(w)
	switch funct {
	case functSLL:
		return shiftImm(ir.ShiftLeftLogical, rd, rt, sa)
	case functSRL:
		return shiftImm(ir.ShiftRightLogical, rd, rt, sa)
	case functSRA:
		return shiftImm(ir.ShiftRightArithmetic, rd, rt, sa)
	case functSLLV:
		return shiftReg(ir.ShiftLeftLogicalVar, rd, rt, rs)
	case functSRLV:
		return shiftReg(ir.ShiftRightLogicalVar, rd, rt, rs)
	case functSRAV:
		return shiftReg(ir.ShiftRightArithmeticVar, rd, rt, rs)
	case functADD, functADDU:
		return rrr(ir.AddWordReg, rd, rs, rt, ir.PipelineIntGeneric)
	case functSUB, functSUBU:
		return rrr(ir.SubWordReg, rd, rs, rt, ir.PipelineIntGeneric)
	case functAND:
		return rrr(ir.AndReg, rd, rs, rt, ir.PipelineIntGeneric)
	case functOR:
		return rrr(ir.OrReg, rd, rs, rt, ir.PipelineIntGeneric)
	case functXOR:
		return rrr(ir.XorReg, rd, rs, rt, ir.PipelineIntGeneric)
	case functNOR:
		return rrr(ir.NorReg, rd, rs, rt, ir.PipelineIntGeneric)
	case functSLT:
		return rrr(ir.SetLessThan, rd, rs, rt, ir.PipelineIntGeneric)
	case functSLTU:
		return rrr(ir.SetLessThanUnsigned, rd, rs, rt, ir.PipelineIntGeneric)
	case functMULT:
		return mdu(ir.MultiplyWord, rs, rt)
	case functMULTU:
		return mdu(ir.MultiplyWordUnsigned, rs, rt)
	case functDIV:
		return mdu(ir.DivideWord, rs, rt)
	case functDIVU:
		return mdu(ir.DivideWordUnsigned, rs, rt)
	case functMFHI:
		return ir.Instruction{Op: ir.MoveReg, Dest: ir.Register(rd), Source: ir.Register(hiReg), Writes: []uint16{rd}, CycleCount: 1}
	case functMFLO:
		return ir.Instruction{Op: ir.MoveReg, Dest: ir.Register(rd), Source: ir.Register(loReg), Writes: []uint16{rd}, CycleCount: 1}
	case functMTHI:
		return ir.Instruction{Op: ir.MoveReg, Dest: ir.Register(hiReg), Source: ir.Register(rs), Reads: []uint16{rs}, CycleCount: 1}
	case functMTLO:
		return ir.Instruction{Op: ir.MoveReg, Dest: ir.Register(loReg), Source: ir.Register(rs), Reads: []uint16{rs}, CycleCount: 1}
	case functJR:
		return ir.Instruction{Op: ir.JumpIndirect, Source: ir.Register(rs), Reads: []uint16{rs}, Class: ir.PipelineBranch, CycleCount: 1}
	case functJALR:
		return ir.Instruction{Op: ir.JumpIndirectAndLink, Dest: ir.Register(rd), Source: ir.Register(rs),
			Reads: []uint16{rs}, Writes: []uint16{rd}, IsLink: true, Class: ir.PipelineBranch, CycleCount: 1}
	case functSYSCALL:
		return ir.Instruction{Op: ir.SystemCall, Class: ir.PipelineSYNC, CycleCount: 1}
	default:
		return fallback(w)
	}
}

// Pseudo register indices for the split HI/LO pair; the
// generator maps these onto EEState.HI/EEState.LO directly rather
// than through the 32-entry GPR table.
const (
	hiReg uint16 = 32
	loReg uint16 = 33
)

func regImm(op ir.Opcode, dest, src uint16, imm uint64, class ir.PipelineClass) ir.Instruction {
	return ir.Instruction{Op: op, Dest: ir.Register(dest), Source: ir.Register(src), Source2: ir.Immediate(imm),
		Reads: []uint16{src}, Writes: []uint16{dest}, Class: class, CycleCount: 1}
}

func rrr(op ir.Opcode, dest, a, b uint16, class ir.PipelineClass) ir.Instruction {
	return ir.Instruction{Op: op, Dest: ir.Register(dest), Source: ir.Register(a), Source2: ir.Register(b),
		Reads: []uint16{a, b}, Writes: []uint16{dest}, Class: class, CycleCount: 1}
}

func shiftImm(op ir.Opcode, dest, src uint16, sa uint32) ir.Instruction {
	return ir.Instruction{Op: op, Dest: ir.Register(dest), Source: ir.Register(src), Source2: ir.Immediate(uint64(sa)),
		Reads: []uint16{src}, Writes: []uint16{dest}, Class: ir.PipelineSA, CycleCount: 1}
}

func shiftReg(op ir.Opcode, dest, src, amt uint16) ir.Instruction {
	return ir.Instruction{Op: op, Dest: ir.Register(dest), Source: ir.Register(src), Source2: ir.Register(amt),
		Reads: []uint16{src, amt}, Writes: []uint16{dest}, Class: ir.PipelineSA, CycleCount: 1}
}

func mdu(op ir.Opcode, a, b uint16) ir.Instruction {
	return ir.Instruction{Op: op, Source: ir.Register(a), Source2: ir.Register(b),
		Reads: []uint16{a, b}, Writes: []uint16{hiReg, loReg},
		Class: ir.PipelineMAC0, CycleCount: 9, Latency: 9, Throughput: 9}
}

func load(op ir.Opcode, dest, base uint16, imm uint64) ir.Instruction {
	return ir.Instruction{Op: op, Dest: ir.Register(dest), Base: ir.Register(base), Source: ir.Immediate(imm),
		Reads: []uint16{base}, Writes: []uint16{dest}, Class: ir.PipelineLoadStore, CycleCount: 1, Latency: 4}
}

func store(op ir.Opcode, src, base uint16, imm uint64) ir.Instruction {
	return ir.Instruction{Op: op, Source: ir.Register(src), Base: ir.Register(base), Source2: ir.Immediate(imm),
		Reads: []uint16{src, base}, Class: ir.PipelineLoadStore, CycleCount: 1}
}

func branch(op ir.Opcode, pc uint32, w uint32, likely bool) ir.Instruction {
	target := pc + 4 + uint32(int32(signExtImm(w))<<2)
	return ir.Instruction{Op: op, Source: ir.Register(rsField(w)), Source2: ir.Register(rtField(w)),
		Reads: []uint16{rsField(w), rtField(w)}, JumpDest: target, JumpFailDest: pc + 8,
		IsLikely: likely, Class: ir.PipelineBranch, CycleCount: 1}
}

func branchZero(op ir.Opcode, pc uint32, w uint32, likely bool) ir.Instruction {
	target := pc + 4 + uint32(int32(signExtImm(w))<<2)
	return ir.Instruction{Op: op, Source: ir.Register(rsField(w)), Reads: []uint16{rsField(w)},
		JumpDest: target, JumpFailDest: pc + 8, IsLikely: likely, Class: ir.PipelineBranch, CycleCount: 1}
}

func jumpDest(pc uint32, w uint32) uint32 {
	return (pc & 0xF0000000) | (jumpTarget(w) << 2)
}

// fallback builds a FallbackInterpreter instruction for unrecognized
// or unimplemented opcodes; the decoder never aborts on these.
func fallback(w uint32) ir.Instruction {
	return ir.Instruction{Op: ir.FallbackInterpreter, Opcode32: w, Class: ir.PipelineIntGeneric, CycleCount: 1}
}

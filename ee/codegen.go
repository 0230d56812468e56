//go:build amd64

package ee

import (
	"github.com/ps2re/dynarec/emit"
	"github.com/ps2re/dynarec/hostapi"
	"github.com/ps2re/dynarec/ir"
	"github.com/ps2re/dynarec/regalloc"
)

// scratchReg carries intermediate results that never pass through the
// allocator (effective-address arithmetic, ABI argument setup).
const scratchReg = emit.RAX

// CodeGen lowers one translated block's IR to host code.
type CodeGen struct {
	e     *emit.Emitter
	alloc *regalloc.Allocator
	fns   hostFns
}

// NewCodeGen constructs a code generator bound to a fresh emitter and
// the host's memory/exception callbacks.
func NewCodeGen(mem hostapi.MemoryAccessor, hnd hostapi.EEHandlers) *CodeGen {
	volatile := []int{emit.RAX, emit.RCX, emit.RDX, emit.RSI, emit.RDI, emit.R8, emit.R9, emit.R10, emit.R11}
	calleeSaved := []int{emit.R12, emit.R13, emit.R14, emit.R15}
	return &CodeGen{
		e:     emit.New(),
		alloc: regalloc.New(Backend{}, volatile, calleeSaved),
		fns:   resolveHostFns(mem, hnd),
	}
}

// Compile lowers block to a contiguous code+literals byte slice ready
// for JIT heap installation. statePtr is the *hostapi.EEState address
// the compiled block addresses through StatePtrReg.
func (g *CodeGen) Compile(block *ir.Block, statePtr uintptr) []byte {
	g.e.Clear()
	g.e.LoadAddr(uint64(statePtr), StatePtrReg)

	for i, inst := range block.Instructions {
		var delaySkip emit.PatchSite
		hasDelaySkip := false
		if i > 0 && block.Instructions[i-1].IsJump() && block.Instructions[i-1].IsLikely {
			// handle_branch_likely: the delay slot commits only if the
			// branch above it was taken. branch_on was staged by the
			// branch's own lowering; skip the slot entirely when clear.
			branchOn := g.regReadRaw(branchOnOffset)
			g.e.TestRR(branchOn, branchOn)
			delaySkip = g.e.JccRel32(emit.CondE)
			hasDelaySkip = true
		}
		g.compileInst(inst)
		if hasDelaySkip {
			g.e.ResolveHere(delaySkip)
		}
	}

	g.alloc.CleanupRecompiler(g.e)
	g.e.LoadAddr(uint64(block.CycleCount), emit.RAX)
	g.e.Ret()

	out := make([]byte, len(g.e.Contiguous()))
	copy(out, g.e.Contiguous())
	return out
}

func (g *CodeGen) compileInst(inst ir.Instruction) {
	switch inst.Op {
	case ir.LoadConst:
		g.lowerLoadConst(inst)
	case ir.MoveReg:
		g.lowerMoveReg(inst)
	case ir.AddWordImm, ir.AddDoublewordImm:
		g.lowerRegImmArith(inst, (*emit.Emitter).AddImm32)
	case ir.AndImm:
		g.lowerRegImmBitwise(inst, (*emit.Emitter).AndRR)
	case ir.OrImm:
		g.lowerRegImmBitwise(inst, (*emit.Emitter).OrRR)
	case ir.XorImm:
		g.lowerRegImmBitwise(inst, (*emit.Emitter).XorRR)
	case ir.SetLessThanImm, ir.SetLessThanImmUnsigned:
		g.lowerSetLessThanImm(inst)
	case ir.AddWordReg, ir.AddDoublewordReg:
		g.lowerRRR(inst, (*emit.Emitter).AddRR)
	case ir.SubWordReg, ir.SubDoublewordReg:
		g.lowerRRR(inst, (*emit.Emitter).SubRR)
	case ir.AndReg:
		g.lowerRRR(inst, (*emit.Emitter).AndRR)
	case ir.OrReg:
		g.lowerRRR(inst, (*emit.Emitter).OrRR)
	case ir.XorReg:
		g.lowerRRR(inst, (*emit.Emitter).XorRR)
	case ir.NorReg:
		g.lowerNor(inst)
	case ir.SetLessThan, ir.SetLessThanUnsigned:
		g.lowerSetLessThan(inst)
	case ir.ShiftLeftLogical:
		g.lowerShiftImm(inst, 4)
	case ir.ShiftRightLogical:
		g.lowerShiftImm(inst, 5)
	case ir.ShiftRightArithmetic:
		g.lowerShiftImm(inst, 7)
	case ir.ShiftLeftLogicalVar:
		g.lowerShiftVar(inst, 4)
	case ir.ShiftRightLogicalVar:
		g.lowerShiftVar(inst, 5)
	case ir.ShiftRightArithmeticVar:
		g.lowerShiftVar(inst, 7)
	case ir.MultiplyWord, ir.MultiplyWordUnsigned:
		g.lowerMultiply(inst)
	case ir.DivideWord, ir.DivideWordUnsigned:
		g.lowerDivide(inst)
	case ir.BranchEq, ir.BranchNe, ir.BranchGez, ir.BranchLez, ir.BranchLtz, ir.BranchGtz:
		g.lowerBranch(inst)
	case ir.BranchEqZero, ir.BranchNeZero:
		g.lowerBranchZero(inst)
	case ir.Jump:
		g.lowerJump(inst, false)
	case ir.JumpAndLink:
		g.lowerJump(inst, true)
	case ir.JumpIndirect:
		g.lowerJumpIndirect(inst, false)
	case ir.JumpIndirectAndLink:
		g.lowerJumpIndirect(inst, true)
	case ir.LoadByte, ir.LoadByteUnsigned, ir.LoadHalfword, ir.LoadHalfwordUnsigned,
		ir.LoadWord, ir.LoadWordUnsigned, ir.LoadDoubleword, ir.LoadQuadwordCop2,
		ir.LoadWordLeft, ir.LoadWordRight:
		g.lowerLoad(inst)
	case ir.StoreByte, ir.StoreHalfword, ir.StoreWord, ir.StoreDoubleword, ir.StoreQuadwordCop2,
		ir.StoreWordLeft, ir.StoreWordRight:
		g.lowerStore(inst)
	case ir.SystemCall:
		g.lowerSyscall()
	case ir.ExceptionReturn:
		g.lowerEret()
	case ir.Cop2Call:
		g.lowerCop2Call(inst)
	case ir.PaddByte, ir.PaddHalf, ir.PaddWord, ir.PsubByte, ir.PsubHalf, ir.PsubWord,
		ir.PaddSignedByte, ir.PaddSignedHalf, ir.PaddSignedWord,
		ir.PsubSignedByte, ir.PsubSignedHalf, ir.PsubSignedWord:
		g.lowerMMI(inst)
	default:
		g.lowerFallback(inst)
	}
}

func (g *CodeGen) regRead(guestReg uint16) int {
	return g.alloc.Alloc(g.e, guestReg, regalloc.KindGPR, regalloc.Read, -1, false)
}
func (g *CodeGen) regWrite(guestReg uint16) int {
	return g.alloc.Alloc(g.e, guestReg, regalloc.KindGPR, regalloc.Write, -1, false)
}

// regReadRaw loads a scratch GPR from a raw byte offset within
// EEState rather than a guest-register slot (used for flag fields
// like BranchOn that live outside the GPR file).
func (g *CodeGen) regReadRaw(offset int) int {
	g.e.LoadMem(StatePtrReg, offset, emit.R11)
	return emit.R11
}

func (g *CodeGen) lowerLoadConst(inst ir.Instruction) {
	dst := g.regWrite(inst.Dest.Reg)
	g.e.LoadAddr(inst.Source.Imm, dst)
}

func (g *CodeGen) lowerMoveReg(inst ir.Instruction) {
	src := g.regRead(inst.Source.Reg)
	dst := g.regWrite(inst.Dest.Reg)
	g.e.MovRR(dst, src)
}

func (g *CodeGen) lowerRegImmArith(inst ir.Instruction, apply func(*emit.Emitter, int, int32)) {
	src := g.regRead(inst.Source.Reg)
	dst := g.regWrite(inst.Dest.Reg)
	g.e.MovRR(dst, src)
	apply(g.e, dst, int32(int64(inst.Source2.Imm)))
	g.signExtendIfWord(inst, dst)
}

func (g *CodeGen) lowerRegImmBitwise(inst ir.Instruction, apply func(*emit.Emitter, int, int)) {
	src := g.regRead(inst.Source.Reg)
	dst := g.regWrite(inst.Dest.Reg)
	g.e.MovRR(dst, src)
	g.e.LoadAddr(inst.Source2.Imm, scratchReg)
	apply(g.e, dst, scratchReg)
}

func (g *CodeGen) lowerSetLessThanImm(inst ir.Instruction) {
	src := g.regRead(inst.Source.Reg)
	dst := g.regWrite(inst.Dest.Reg)
	g.e.LoadAddr(inst.Source2.Imm, scratchReg)
	g.e.CmpRR(src, scratchReg)
	cond := byte(emit.CondL)
	if inst.Op == ir.SetLessThanImmUnsigned {
		cond = emit.CondB
	}
	g.e.SetCC(cond, dst)
}

func (g *CodeGen) lowerRRR(inst ir.Instruction, apply func(*emit.Emitter, int, int)) {
	a := g.regRead(inst.Source.Reg)
	b := g.regRead(inst.Source2.Reg)
	dst := g.regWrite(inst.Dest.Reg)
	g.e.MovRR(dst, a)
	apply(g.e, dst, b)
	g.signExtendIfWord(inst, dst)
}

func (g *CodeGen) lowerNor(inst ir.Instruction) {
	a := g.regRead(inst.Source.Reg)
	b := g.regRead(inst.Source2.Reg)
	dst := g.regWrite(inst.Dest.Reg)
	g.e.MovRR(dst, a)
	g.e.OrRR(dst, b)
	g.e.NotR(dst)
}

func (g *CodeGen) lowerSetLessThan(inst ir.Instruction) {
	a := g.regRead(inst.Source.Reg)
	b := g.regRead(inst.Source2.Reg)
	dst := g.regWrite(inst.Dest.Reg)
	g.e.CmpRR(a, b)
	cond := byte(emit.CondL)
	if inst.Op == ir.SetLessThanUnsigned {
		cond = emit.CondB
	}
	g.e.SetCC(cond, dst)
}

func (g *CodeGen) lowerShiftImm(inst ir.Instruction, mode byte) {
	src := g.regRead(inst.Source.Reg)
	dst := g.regWrite(inst.Dest.Reg)
	g.e.MovRR(dst, src)
	g.e.ShiftImm(mode, dst, byte(inst.Source2.Imm&0x1F))
	g.signExtendIfWord(inst, dst)
}

func (g *CodeGen) lowerShiftVar(inst ir.Instruction, mode byte) {
	src := g.regRead(inst.Source.Reg)
	amt := g.regRead(inst.Source2.Reg)
	dst := g.regWrite(inst.Dest.Reg)
	g.e.MovRR(dst, src)
	g.e.MovRR(emit.RCX, amt)
	g.e.ShiftCL(mode, dst)
	g.signExtendIfWord(inst, dst)
}

// signExtendIfWord applies the guest's word-result sign-extension
// rule: 32-bit ALU/shift results are sign-extended to 64 bits before
// the allocator ever flushes them.
func (g *CodeGen) signExtendIfWord(inst ir.Instruction, reg int) {
	switch inst.Op {
	case ir.AddWordImm, ir.AddWordReg, ir.SubWordReg,
		ir.ShiftLeftLogical, ir.ShiftRightLogical, ir.ShiftRightArithmetic,
		ir.ShiftLeftLogicalVar, ir.ShiftRightLogicalVar, ir.ShiftRightArithmeticVar:
		g.e.MovSXD(reg, reg)
	}
}

func (g *CodeGen) lowerMultiply(inst ir.Instruction) {
	a := g.regRead(inst.Source.Reg)
	b := g.regRead(inst.Source2.Reg)
	g.e.MovRR(emit.RAX, a)
	g.e.IMulRR(emit.RAX, b)
	lo := g.regWrite(loReg)
	hi := g.regWrite(hiReg)
	g.e.MovSXD(lo, emit.RAX)
	g.e.MovRR(hi, emit.RDX)
}

// lowerDivide implements the guest's three-way division: divide by
// zero, the INT_MIN/-1 overflow case, and the ordinary host divide,
// each producing the LO/HI pair the guest's DIV/DIVU would.
func (g *CodeGen) lowerDivide(inst ir.Instruction) {
	a := g.regRead(inst.Source.Reg)
	b := g.regRead(inst.Source2.Reg)
	lo := g.regWrite(loReg)
	hi := g.regWrite(hiReg)
	unsigned := inst.Op == ir.DivideWordUnsigned

	g.e.MovRR(emit.R10, b) // divisor, stashed across CDQ/divide clobber of RDX
	g.e.MovRR(emit.R11, a) // dividend

	g.e.CmpImm32(emit.R10, 0)
	zeroSite := g.e.JccRel32(emit.CondE)

	if !unsigned {
		g.e.CmpImm32(emit.R11, -2147483648)
		notMinSite := g.e.JccRel32(emit.CondNE)
		g.e.CmpImm32(emit.R10, -1)
		notNegOneSite := g.e.JccRel32(emit.CondNE)
		g.e.LoadAddr(uint64(int64(int32(-2147483648))), lo)
		g.e.XorRR(hi, hi)
		overflowDone := g.e.JmpRel32()
		g.e.ResolveHere(notMinSite)
		g.e.ResolveHere(notNegOneSite)

		g.e.MovRR(emit.RAX, emit.R11)
		g.e.CDQ()
		g.e.IDivR(emit.R10)
		g.e.MovSXD(lo, emit.RAX)
		g.e.MovSXD(hi, emit.RDX)
		divDone := g.e.JmpRel32()

		g.e.ResolveHere(zeroSite)
		g.e.CmpImm32(emit.R11, 0)
		negSite := g.e.JccRel32(emit.CondL)
		g.e.LoadAddr(uint64(int64(int32(-1))), lo)
		signDone := g.e.JmpRel32()
		g.e.ResolveHere(negSite)
		g.e.LoadAddr(1, lo)
		g.e.ResolveHere(signDone)
		g.e.MovSXD(hi, emit.R11)

		g.e.ResolveHere(overflowDone)
		g.e.ResolveHere(divDone)
		return
	}

	g.e.MovRR(emit.RAX, emit.R11)
	g.e.XorRR(emit.RDX, emit.RDX)
	g.e.DivR(emit.R10)
	g.e.MovSXD(lo, emit.RAX)
	g.e.MovSXD(hi, emit.RDX)
	divDone := g.e.JmpRel32()

	g.e.ResolveHere(zeroSite)
	g.e.LoadAddr(0xFFFFFFFF, lo)
	g.e.MovSXD(hi, emit.R11)

	g.e.ResolveHere(divDone)
}

// lowerBranch computes the branch condition via a single CMOV that
// selects between the taken and not-taken guest PC, staging it for
// the dispatcher to commit on block exit.
func (g *CodeGen) lowerBranch(inst ir.Instruction) {
	a := g.regRead(inst.Source.Reg)
	b := g.regRead(inst.Source2.Reg)
	g.e.CmpRR(a, b)
	g.emitBranchOutcome(inst, branchCond(inst.Op))
}

func (g *CodeGen) lowerBranchZero(inst ir.Instruction) {
	a := g.regRead(inst.Source.Reg)
	g.e.LoadAddr(0, scratchReg)
	g.e.CmpRR(a, scratchReg)
	cond := byte(emit.CondE)
	if inst.Op == ir.BranchNeZero {
		cond = emit.CondNE
	}
	g.emitBranchOutcome(inst, cond)
}

func branchCond(op ir.Opcode) byte {
	switch op {
	case ir.BranchEq:
		return emit.CondE
	case ir.BranchNe:
		return emit.CondNE
	case ir.BranchGez:
		return emit.CondGE
	case ir.BranchLez:
		return emit.CondLE
	case ir.BranchLtz:
		return emit.CondL
	case ir.BranchGtz:
		return emit.CondG
	}
	return emit.CondE
}

// emitBranchOutcome stores branch_on (read by a likely branch's delay
// slot guard) and selects the taken/fail guest PC via CMOV into the
// PC-staging field, which the dispatcher copies into EEState.PC after
// the block returns.
func (g *CodeGen) emitBranchOutcome(inst ir.Instruction, cond byte) {
	branchOn := emit.R11
	g.e.SetCC(cond, branchOn)
	g.e.StoreMem(StatePtrReg, branchOnOffset, branchOn)

	g.e.LoadAddr(uint64(inst.JumpFailDest), scratchReg)
	g.e.LoadAddr(uint64(inst.JumpDest), emit.R10)
	g.e.TestRR(branchOn, branchOn)
	g.e.CMov(emit.CondNE, scratchReg, emit.R10)
	g.e.StoreMem32(StatePtrReg, pcStagingOffset, scratchReg)
}

func (g *CodeGen) lowerJump(inst ir.Instruction, link bool) {
	g.e.LoadAddr(uint64(inst.JumpDest), scratchReg)
	g.e.StoreMem32(StatePtrReg, pcStagingOffset, scratchReg)
	if link {
		ra := g.regWrite(31)
		g.e.LoadAddr(uint64(inst.ReturnAddr), ra)
	}
}

func (g *CodeGen) lowerJumpIndirect(inst ir.Instruction, link bool) {
	target := g.regRead(inst.Source.Reg)
	g.e.StoreMem32(StatePtrReg, pcStagingOffset, target)
	if link {
		ra := g.regWrite(inst.Dest.Reg)
		g.e.LoadAddr(uint64(inst.ReturnAddr), ra)
	}
}

func (g *CodeGen) lowerLoad(inst ir.Instruction) {
	base := g.regRead(inst.Base.Reg)
	g.e.MovRR(emit.RSI, base)
	g.e.AddImm32(emit.RSI, int32(int64(inst.Source.Imm)))
	g.e.MovRR(emit.RDI, StatePtrReg)

	fn := g.loadFn(inst.Op)
	g.alloc.PrepareCall(g.e)
	g.e.CallABI(fn, nil)

	dst := g.regWrite(inst.Dest.Reg)
	g.e.MovRR(dst, emit.RAX)
}

func (g *CodeGen) loadFn(op ir.Opcode) uintptr {
	switch op {
	case ir.LoadByte, ir.LoadByteUnsigned:
		return g.fns.read8
	case ir.LoadHalfword, ir.LoadHalfwordUnsigned:
		return g.fns.read16
	case ir.LoadWord, ir.LoadWordUnsigned, ir.LoadWordLeft, ir.LoadWordRight:
		return g.fns.read32
	case ir.LoadDoubleword:
		return g.fns.read64
	case ir.LoadQuadwordCop2:
		return g.fns.read128
	}
	return g.fns.read32
}

func (g *CodeGen) lowerStore(inst ir.Instruction) {
	base := g.regRead(inst.Base.Reg)
	src := g.regRead(inst.Source.Reg)
	g.e.MovRR(emit.RSI, base)
	g.e.AddImm32(emit.RSI, int32(int64(inst.Source2.Imm)))
	g.e.MovRR(emit.RDX, src)
	g.e.MovRR(emit.RDI, StatePtrReg)

	fn := g.storeFn(inst.Op)
	g.alloc.PrepareCall(g.e)
	g.e.CallABI(fn, nil)
}

func (g *CodeGen) storeFn(op ir.Opcode) uintptr {
	switch op {
	case ir.StoreByte:
		return g.fns.write8
	case ir.StoreHalfword:
		return g.fns.write16
	case ir.StoreWord, ir.StoreWordLeft, ir.StoreWordRight:
		return g.fns.write32
	case ir.StoreDoubleword:
		return g.fns.write64
	case ir.StoreQuadwordCop2:
		return g.fns.write128
	}
	return g.fns.write32
}

func (g *CodeGen) lowerSyscall() {
	g.e.MovRR(emit.RDI, StatePtrReg)
	g.alloc.PrepareCall(g.e)
	g.e.CallABI(g.fns.syscallException, nil)
}

func (g *CodeGen) lowerEret() {
	g.e.LoadMem32(StatePtrReg, pcOffset, scratchReg)
	g.e.StoreMem32(StatePtrReg, pcStagingOffset, scratchReg)
}

func (g *CodeGen) lowerCop2Call(inst ir.Instruction) {
	g.e.LoadAddr(uint64(inst.Opcode32), emit.RSI)
	g.e.MovRR(emit.RDI, StatePtrReg)
	g.alloc.PrepareCall(g.e)
	g.e.CallABI(g.fns.interpreter, nil)
}

// lowerMMI implements native packed word add/sub directly on the
// guest's 64-bit GPR halves; the byte/halfword saturating lanes need
// per-lane unpack/pack the allocator's entries don't expose without a
// dedicated SIMD table, so they still route through the interpreter.
func (g *CodeGen) lowerMMI(inst ir.Instruction) {
	a := g.regRead(inst.Source.Reg)
	b := g.regRead(inst.Source2.Reg)
	switch inst.Op {
	case ir.PaddWord, ir.PaddSignedWord:
		dst := g.regWrite(inst.Dest.Reg)
		g.e.MovRR(dst, a)
		g.e.AddRR(dst, b)
	case ir.PsubWord, ir.PsubSignedWord:
		dst := g.regWrite(inst.Dest.Reg)
		g.e.MovRR(dst, a)
		g.e.SubRR(dst, b)
	default:
		g.lowerFallback(inst)
	}
}

func (g *CodeGen) lowerFallback(inst ir.Instruction) {
	g.e.LoadAddr(uint64(inst.Opcode32), emit.RSI)
	g.e.MovRR(emit.RDI, StatePtrReg)
	g.alloc.PrepareCall(g.e)
	g.e.CallABI(g.fns.interpreter, nil)
}

//go:build amd64

package vu

import (
	"math"

	"github.com/ps2re/dynarec/emit"
	"github.com/ps2re/dynarec/hostapi"
	"github.com/ps2re/dynarec/ir"
	"github.com/ps2re/dynarec/regalloc"
)

// scratchXMM carries intermediate vector results that never pass
// through the allocator (field-mask blending, broadcast shuffles).
const scratchXMM = emit.XMM7

// scratchReg is the integer scratch GPR for effective-address/ABI
// argument setup, mirroring the EE generator's convention.
const scratchReg = emit.RAX

// shlMode is the ShiftImm /digit extension for a logical left shift.
const shlMode = 4

// CodeGen lowers one translated VU microprogram block to host code.
type CodeGen struct {
	e     *emit.Emitter
	alloc *regalloc.Allocator
	fns   hostFns
}

// NewCodeGen constructs a VU code generator bound to a fresh emitter
// and the host's GIF/XGKICK callbacks.
func NewCodeGen(hnd hostapi.VUHandlers) *CodeGen {
	volatile := []int{emit.RAX, emit.RCX, emit.RDX, emit.RSI, emit.RDI, emit.R8, emit.R9, emit.R10, emit.R11}
	calleeSaved := []int{emit.R12, emit.R13, emit.R14, emit.R15}
	return &CodeGen{
		e:     emit.New(),
		alloc: regalloc.New(Backend{}, volatile, calleeSaved),
		fns:   resolveHostFns(hnd),
	}
}

// Compile lowers block to a contiguous code+literals byte slice ready
// for JIT heap installation. statePtr is the *hostapi.VUState address
// the compiled block addresses through StatePtrReg.
func (g *CodeGen) Compile(block *ir.Block, statePtr uintptr) []byte {
	g.e.Clear()
	g.e.LoadAddr(uint64(statePtr), StatePtrReg)

	sched := Analyze(block)
	for i, inst := range block.Instructions {
		g.compileInst(inst, sched, i)
	}

	g.alloc.CleanupRecompiler(g.e)
	g.e.LoadAddr(uint64(block.CycleCount), emit.RAX)
	g.e.Ret()

	out := make([]byte, len(g.e.Contiguous()))
	copy(out, g.e.Contiguous())
	return out
}

func (g *CodeGen) compileInst(inst ir.Instruction, sched Schedule, idx int) {
	switch inst.Op {
	case ir.VAddVectors:
		g.lowerVVV(inst, (*emit.Emitter).AddPS)
	case ir.VSubVectors:
		g.lowerVVV(inst, (*emit.Emitter).SubPS)
	case ir.VMulVectors:
		g.lowerVVV(inst, (*emit.Emitter).MulPS)
	case ir.VMaddVectors:
		g.lowerVMaddMsub(inst, (*emit.Emitter).AddPS)
	case ir.VMsubVectors:
		g.lowerVMaddMsub(inst, (*emit.Emitter).SubPS)
	case ir.VAddVectorByScalar:
		g.lowerVBC(inst, (*emit.Emitter).AddPS)
	case ir.VSubVectorByScalar:
		g.lowerVBC(inst, (*emit.Emitter).SubPS)
	case ir.VMulVectorByScalar:
		g.lowerVBC(inst, (*emit.Emitter).MulPS)
	case ir.VMoveFloat:
		g.lowerMove(inst)
	case ir.VFixedToFloat0, ir.VFixedToFloat4, ir.VFixedToFloat12, ir.VFixedToFloat15:
		g.lowerFixedToFloat(inst)
	case ir.VFloatToFixed0, ir.VFloatToFixed4, ir.VFloatToFixed12, ir.VFloatToFixed15:
		g.lowerFloatToFixed(inst)
	case ir.VClip, ir.VDiv, ir.VESqrt, ir.VRsqrt:
		// Edge-case-heavy scalar semantics (zero-denominator pinning to
		// +-MAX_FLT, the six clip comparisons against |w|) stay on the
		// interpreter rather than a hand-built guarded SSE sequence.
		g.lowerFallback(inst)
	case ir.VIBranchEq, ir.VIBranchNe, ir.VIBranchGez, ir.VIBranchLez, ir.VIBranchLtz, ir.VIBranchGtz:
		g.lowerVIBranch(inst)
	case ir.Xgkick:
		g.lowerXgkick(inst)
	default:
		g.lowerFallback(inst)
	}
}

func (g *CodeGen) vecRead(guestReg uint16) int {
	return g.alloc.Alloc(g.e, guestReg, regalloc.KindSIMD, regalloc.Read, -1, false)
}
func (g *CodeGen) vecWrite(guestReg uint16) int {
	return g.alloc.Alloc(g.e, guestReg, regalloc.KindSIMD, regalloc.ReadWrite, -1, false)
}
func (g *CodeGen) intRead(guestReg uint16) int {
	return g.alloc.Alloc(g.e, guestReg, regalloc.KindGPR, regalloc.Read, -1, false)
}

// blendField applies inst.Field (the XYZW destination-enable mask,
// bit i selecting lane i) to the freshly computed value in src,
// leaving dst's other lanes untouched. The mask is a compile-time
// constant, so the generator spills both vectors through
// VUState.BlendScratch and copies only the enabled 32-bit lanes
// between them via a GPR, rather than carrying a runtime lane-mask
// constant through a literal pool.
func (g *CodeGen) blendField(dst, src int, mask uint8) {
	if mask == 0xF {
		g.e.MovapsRR(dst, src)
		return
	}
	if mask == 0 {
		return
	}
	g.e.StoreMemPS(StatePtrReg, blendSrcOffset, src)
	g.e.StoreMemPS(StatePtrReg, blendDstOffset, dst)
	for lane := 0; lane < 4; lane++ {
		if mask&(1<<uint(lane)) == 0 {
			continue
		}
		g.e.LoadMem32(StatePtrReg, blendSrcOffset+lane*4, scratchReg)
		g.e.StoreMem32(StatePtrReg, blendDstOffset+lane*4, scratchReg)
	}
	g.e.LoadMemPS(StatePtrReg, blendDstOffset, dst)
}

func (g *CodeGen) lowerVVV(inst ir.Instruction, op func(*emit.Emitter, int, int)) {
	a := g.vecRead(inst.Source.Reg)
	b := g.vecRead(inst.Source2.Reg)
	dst := g.vecWrite(inst.Dest.Reg)
	g.e.MovapsRR(scratchXMM, a)
	op(g.e, scratchXMM, b)
	g.blendField(dst, scratchXMM, inst.Field)
}

// lowerVMaddMsub folds the accumulator into the operation's first
// operand: MADD computes acc + (vs*vt), MSUB computes acc - (vs*vt);
// the decoder splits vvv-shaped MADD/MSUB into a source pair the
// generator treats as (vs, vt) here and reads the running accumulator
// directly from VUState.ACC via the pseudo accRegIndex slot.
func (g *CodeGen) lowerVMaddMsub(inst ir.Instruction, combine func(*emit.Emitter, int, int)) {
	a := g.vecRead(inst.Source.Reg)
	b := g.vecRead(inst.Source2.Reg)
	acc := g.vecRead(accRegIndex)
	dst := g.vecWrite(inst.Dest.Reg)
	g.e.MovapsRR(scratchXMM, a)
	g.e.MulPS(scratchXMM, b)
	g.e.MovapsRR(emit.XMM6, acc)
	combine(g.e, emit.XMM6, scratchXMM)
	g.blendField(dst, emit.XMM6, inst.Field)
}

// lowerVBC lowers the by-scalar-broadcast family: one lane of the
// source operand (selected by inst.BC, 0-3 for x/y/z/w) is splatted
// across all four lanes via shufps before the elementwise op.
func (g *CodeGen) lowerVBC(inst ir.Instruction, op func(*emit.Emitter, int, int)) {
	a := g.vecRead(inst.Source.Reg)
	t := g.vecRead(inst.Source2.Reg)
	dst := g.vecWrite(inst.Dest.Reg)
	imm := byte(inst.BC) | byte(inst.BC)<<2 | byte(inst.BC)<<4 | byte(inst.BC)<<6
	g.e.MovapsRR(scratchXMM, t)
	g.e.ShufPS(scratchXMM, scratchXMM, imm)
	g.e.MovapsRR(emit.XMM6, a)
	op(g.e, emit.XMM6, scratchXMM)
	g.blendField(dst, emit.XMM6, inst.Field)
}

func (g *CodeGen) lowerMove(inst ir.Instruction) {
	src := g.vecRead(inst.Source2.Reg)
	dst := g.vecWrite(inst.Dest.Reg)
	g.blendField(dst, src, inst.Field)
}

// lowerFixedToFloat converts the fixed-point VF lanes to float via
// cvtdq2ps, then scales by 2^-shift (shift taken from the ITOF0/4/12/
// 15 family) by materializing the scale constant into every lane of a
// scratch vector register through a GPR, since shift is known at
// codegen time.
func (g *CodeGen) lowerFixedToFloat(inst ir.Instruction) {
	src := g.vecRead(inst.Source.Reg)
	dst := g.vecWrite(inst.Dest.Reg)
	g.e.CvtDQ2PS(scratchXMM, src)
	if shift := fixedToFloatShift(inst.Op); shift != 0 {
		scale := math.Float32bits(1.0 / float32(int64(1)<<uint(shift)))
		g.e.LoadAddr(uint64(scale), scratchReg)
		g.e.MovDFromGPR(emit.XMM6, scratchReg)
		g.e.ShufPS(emit.XMM6, emit.XMM6, 0)
		g.e.MulPS(scratchXMM, emit.XMM6)
	}
	g.blendField(dst, scratchXMM, inst.Field)
}

func (g *CodeGen) lowerFloatToFixed(inst ir.Instruction) {
	src := g.vecRead(inst.Source.Reg)
	dst := g.vecWrite(inst.Dest.Reg)
	g.e.MovapsRR(scratchXMM, src)
	if shift := map[ir.Opcode]int{ir.VFloatToFixed4: 4, ir.VFloatToFixed12: 12, ir.VFloatToFixed15: 15}[inst.Op]; shift != 0 {
		scale := math.Float32bits(float32(int64(1) << uint(shift)))
		g.e.LoadAddr(uint64(scale), scratchReg)
		g.e.MovDFromGPR(emit.XMM6, scratchReg)
		g.e.ShufPS(emit.XMM6, emit.XMM6, 0)
		g.e.MulPS(scratchXMM, emit.XMM6)
	}
	g.e.CvtPS2DQ(scratchXMM, scratchXMM)
	g.blendField(dst, scratchXMM, inst.Field)
}

func fixedToFloatShift(op ir.Opcode) int {
	switch op {
	case ir.VFixedToFloat4:
		return 4
	case ir.VFixedToFloat12:
		return 12
	case ir.VFixedToFloat15:
		return 15
	}
	return 0
}

func (g *CodeGen) lowerVIBranch(inst ir.Instruction) {
	a := g.intRead(inst.Source.Reg)
	g.e.LoadAddr(0, scratchReg)
	g.e.CmpRR(a, scratchReg)
	cond := viBranchCond(inst.Op)
	branchOn := emit.R11
	g.e.SetCC(cond, branchOn)
	g.e.StoreMem(StatePtrReg, branchOnOffset, branchOn)

	g.e.LoadAddr(uint64(inst.JumpFailDest), scratchReg)
	g.e.LoadAddr(uint64(inst.JumpDest), emit.R10)
	g.e.TestRR(branchOn, branchOn)
	g.e.CMov(emit.CondNE, scratchReg, emit.R10)
	g.e.StoreMem32(StatePtrReg, pcStagingOffset, scratchReg)
}

func viBranchCond(op ir.Opcode) byte {
	switch op {
	case ir.VIBranchEq:
		return emit.CondE
	case ir.VIBranchNe:
		return emit.CondNE
	case ir.VIBranchGez:
		return emit.CondGE
	case ir.VIBranchLez:
		return emit.CondLE
	case ir.VIBranchLtz:
		return emit.CondL
	case ir.VIBranchGtz:
		return emit.CondG
	}
	return emit.CondE
}

// lowerXgkick marks the state's XGKICK stall flag and defers to the
// host's GIFTransferDone poll; the dispatcher checks the flag on block
// exit and refuses to resume a stalled microprogram until the host
// reports the transfer complete. The kicked address is VI[reg]<<4
// masked to the VU's data memory window, stored as StalledGIFAddr
// rather than GIFAddr: GIFAddr only updates once the host actually
// starts the transfer.
func (g *CodeGen) lowerXgkick(inst ir.Instruction) {
	addr := g.intRead(inst.Source.Reg)
	g.e.ShiftImm(shlMode, addr, 4)
	g.e.LoadMem32(StatePtrReg, memMaskOffset, scratchReg)
	g.e.AndRR(addr, scratchReg)
	g.e.StoreMem32(StatePtrReg, stalledGifAddrOffset, addr)
	g.e.LoadAddr(1, scratchReg)
	g.e.StoreMem(StatePtrReg, xgkickStallOffset, scratchReg)
}

func (g *CodeGen) lowerFallback(inst ir.Instruction) {
	g.e.LoadAddr(uint64(inst.Opcode32), emit.RSI)
	g.e.MovRR(emit.RDI, StatePtrReg)
	g.alloc.PrepareCall(g.e)
	g.e.CallABI(g.fns.interpreter, nil)
}

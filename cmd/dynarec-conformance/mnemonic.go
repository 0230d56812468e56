package main

import (
	"fmt"

	"github.com/ps2re/dynarec/ir"
)

// mnemonics maps each ir.Opcode to a human-readable assembly mnemonic
// for disasm.go's output. ir.Opcode carries no Stringer of its own
// (the ir package stays pure data), so this presentation table lives
// in the CLI that actually prints disassembly.
//
// The VU entries are grounded directly on
// _examples/original_source/src/core/ee/vu_disasm.cpp/.hpp's own
// opcode-to-mnemonic switches: upper_bc's "add"/"sub"/"madd"/"msub"/
// "max"/"mini"/"mul" family, upper_special's "opmula"/"clip" pair, and
// lower's "div"/"vu_sqrt"/"rsqrt"/"mtir"/"mfir"/"ilwr"/"iswr"/
// "rnext"/"rget"/"rinit"/"rxor"/"mfp"/"xtop"/"xitop"/"xgkick"/
// "esadd"/"ersadd"/"eleng"/"ercpr"/"erleng"/"esum"/"esqrt"/"ersqrt"/
// "esin"/"eexp" family. The EE entries use standard MIPS mnemonics,
// the same names ee/decode.go's own opcode constants already encode
// (opADDIU, opLUI, ...); no EE disassembler exists in original_source
// to ground those on instead.
var mnemonics = map[ir.Opcode]string{
	ir.OpNone:   "nop",
	ir.LoadConst: "li",
	ir.MoveReg:   "move",

	ir.AddDoublewordImm: "daddiu",
	ir.AddDoublewordReg: "daddu",
	ir.AddWordImm:       "addiu",
	ir.AddWordReg:       "addu",
	ir.SubDoublewordReg: "dsubu",
	ir.SubWordReg:       "subu",
	ir.AndReg:           "and",
	ir.AndImm:           "andi",
	ir.OrReg:            "or",
	ir.OrImm:            "ori",
	ir.XorReg:           "xor",
	ir.XorImm:           "xori",
	ir.NorReg:           "nor",

	ir.ShiftLeftLogical:        "sll",
	ir.ShiftLeftLogicalVar:     "sllv",
	ir.ShiftRightLogical:       "srl",
	ir.ShiftRightLogicalVar:    "srlv",
	ir.ShiftRightArithmetic:    "sra",
	ir.ShiftRightArithmeticVar: "srav",

	ir.SetLessThan:             "slt",
	ir.SetLessThanUnsigned:     "sltu",
	ir.SetLessThanImm:          "slti",
	ir.SetLessThanImmUnsigned:  "sltiu",

	ir.MultiplyWord:           "mult",
	ir.MultiplyWord1:          "mult1",
	ir.MultiplyWordUnsigned:   "multu",
	ir.MultiplyWordUnsigned1:  "multu1",
	ir.DivideWord:             "div",
	ir.DivideWord1:            "div1",
	ir.DivideWordUnsigned:     "divu",
	ir.DivideWordUnsigned1:    "divu1",

	ir.PaddByte:         "paddb",
	ir.PaddHalf:         "paddh",
	ir.PaddWord:         "paddw",
	ir.PsubByte:         "psubb",
	ir.PsubHalf:         "psubh",
	ir.PsubWord:         "psubw",
	ir.PaddSignedByte:   "paddsb",
	ir.PaddSignedHalf:   "paddsh",
	ir.PaddSignedWord:   "paddsw",
	ir.PsubSignedByte:   "psubsb",
	ir.PsubSignedHalf:   "psubsh",
	ir.PsubSignedWord:   "psubsw",

	ir.BranchEq:        "beq",
	ir.BranchNe:        "bne",
	ir.BranchGez:       "bgez",
	ir.BranchLez:       "blez",
	ir.BranchLtz:       "bltz",
	ir.BranchGtz:       "bgtz",
	ir.BranchEqZero:    "beqz",
	ir.BranchNeZero:    "bnez",
	ir.BranchEqLikely:  "beql",
	ir.BranchNeLikely:  "bnel",
	ir.JumpIndirect:         "jr",
	ir.JumpIndirectAndLink:  "jalr",
	ir.JumpAndLink:          "jal",
	ir.Jump:                 "j",

	ir.LoadByte:           "lb",
	ir.LoadByteUnsigned:   "lbu",
	ir.LoadHalfword:       "lh",
	ir.LoadHalfwordUnsigned: "lhu",
	ir.LoadWord:           "lw",
	ir.LoadWordUnsigned:   "lwu",
	ir.LoadDoubleword:     "ld",
	ir.LoadQuadword:       "lq",
	ir.LoadWordLeft:       "lwl",
	ir.LoadWordRight:      "lwr",
	ir.LoadWordCop1:       "lwc1",
	ir.LoadWordCop2:       "lwc2",
	ir.LoadQuadwordCop2:   "lqc2",
	ir.StoreByte:          "sb",
	ir.StoreHalfword:      "sh",
	ir.StoreWord:          "sw",
	ir.StoreDoubleword:    "sd",
	ir.StoreQuadword:      "sq",
	ir.StoreWordLeft:      "swl",
	ir.StoreWordRight:     "swr",
	ir.StoreWordCop1:      "swc1",
	ir.StoreWordCop2:      "swc2",
	ir.StoreQuadwordCop2:  "sqc2",

	ir.FloatingPointAdd:                    "add.s",
	ir.FloatingPointSub:                    "sub.s",
	ir.FloatingPointMul:                    "mul.s",
	ir.FloatingPointDiv:                    "div.s",
	ir.FloatingPointSqrt:                   "sqrt.s",
	ir.FloatingPointRSqrt:                  "rsqrt.s",
	ir.FloatingPointMAdd:                   "madd.s",
	ir.FloatingPointMSub:                   "msub.s",
	ir.FloatingPointMin:                    "min.s",
	ir.FloatingPointMax:                    "max.s",
	ir.FloatingPointCompareEq:               "c.eq.s",
	ir.FloatingPointCompareLt:               "c.lt.s",
	ir.FloatingPointCompareLe:               "c.le.s",
	ir.FloatingPointConvertToFixedPoint:     "cvt.w.s",
	ir.FixedPointConvertToFloatingPoint:     "cvt.s.w",
	ir.FloatingPointAbs:                     "abs.s",
	ir.FloatingPointNegate:                  "neg.s",
	ir.FloatingPointClearControl:            "ctc1",

	ir.VAddVectors:   "add",
	ir.VSubVectors:   "sub",
	ir.VMulVectors:   "mul",
	ir.VMaddVectors:  "madd",
	ir.VMsubVectors:  "msub",
	ir.VAddVectorByScalar:  "addbc",
	ir.VSubVectorByScalar:  "subbc",
	ir.VMulVectorByScalar:  "mulbc",
	ir.VMaddVectorByScalar: "maddbc",
	ir.VMsubVectorByScalar: "msubbc",
	ir.VAddAccAndVectors:   "adda",
	ir.VSubAccAndVectors:   "suba",
	ir.VMulAccAndVectors:   "mula",
	ir.VMaddAccAndVectors:  "madda",
	ir.VMsubAccAndVectors:  "msuba",
	ir.VAddAccByScalar:     "addabc",
	ir.VSubAccByScalar:     "subabc",
	ir.VMulAccByScalar:     "mulabc",
	ir.VMaddAccByScalar:    "maddabc",
	ir.VMsubAccByScalar:    "msubabc",
	ir.VOpMula:   "opmula",
	ir.VOpMsub:   "opmsub",
	ir.VClip:     "clip",
	ir.VDiv:      "div",
	ir.VRsqrt:    "rsqrt",
	ir.VFixedToFloat0:  "itof0",
	ir.VFixedToFloat4:  "itof4",
	ir.VFixedToFloat12: "itof12",
	ir.VFixedToFloat15: "itof15",
	ir.VFloatToFixed0:  "ftoi0",
	ir.VFloatToFixed4:  "ftoi4",
	ir.VFloatToFixed12: "ftoi12",
	ir.VFloatToFixed15: "ftoi15",
	ir.VMoveFloat:        "move",
	ir.VMoveRotatedFloat: "mr32",
	ir.VMacEq:    "fmeq",
	ir.VMacAnd:   "fmand",
	ir.SetClipFlags: "fcset",
	ir.AndClipFlags: "fcand",
	ir.OrClipFlags:  "fcor",
	ir.AndStatFlags: "fsand",
	ir.VEleng:  "eleng",
	ir.VErleng: "erleng",
	ir.VESqrt:  "esqrt",
	ir.VERsqrt: "ersqrt",
	ir.VRInit:  "rinit",
	ir.VMoveFromP: "mfp",

	ir.VIBranchEq:  "ibeq",
	ir.VIBranchNe:  "ibne",
	ir.VIBranchGez: "ibgez",
	ir.VIBranchLez: "iblez",
	ir.VIBranchLtz: "ibltz",
	ir.VIBranchGtz: "ibgtz",

	ir.UpdateQ:            "update_q",
	ir.UpdateP:            "update_p",
	ir.UpdateMacFlags:     "update_mac_flags",
	ir.UpdateMacPipeline:  "update_mac_pipeline",
	ir.SavePC:             "save_pc",
	ir.SavePipelineState:  "save_pipeline_state",
	ir.MoveDelayedBranch:  "move_delayed_branch",
	ir.BackupVF:           "backup_vf",
	ir.RestoreVF:          "restore_vf",
	ir.BackupVI:           "backup_vi",
	ir.ClearIntDelay:      "clear_int_delay",
	ir.LoadFloatConst:     "lfc",
	ir.Xgkick:             "xgkick",
	ir.UpdateXgkick:       "update_xgkick",
	ir.Stop:               "stop",
	ir.StopTBit:           "stop_tbit",

	ir.SystemCall:            "syscall",
	ir.ExceptionReturn:       "eret",
	ir.Cop2Call:              "cop2",
	ir.WaitVU0:               "vwaitq",
	ir.CheckInterlockVU0:     "vinterlock_check",
	ir.ClearInterlockVU0:     "vinterlock_clear",

	ir.FallbackInterpreter: "fallback",
}

// mnemonic returns op's mnemonic, or a bracketed numeric fallback for
// any opcode this table hasn't been extended to cover yet.
func mnemonic(op ir.Opcode) string {
	if s, ok := mnemonics[op]; ok {
		return s
	}
	return fmt.Sprintf("[%d]", int(op))
}

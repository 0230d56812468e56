package vu

import "github.com/ps2re/dynarec/ir"

// Pipeline latencies (in VU cycles) for the units whose results are
// not available on the cycle they issue. FMAC results land in a
// 4-deep write-back queue; DIV/SQRT/EFU units pipeline independently
// with their own fixed latencies.
const (
	fmacQueueDepth = 4

	divLatency   = 7
	sqrtLatency  = 7
	rsqrtLatency = 13

	efuLatencyESqrt  = 11
	efuLatencyERsqrt = 18
	efuLatencyEAtan  = 24
	efuLatencyEExp   = 54
	efuLatencyELeng  = 12
	efuLatencyERleng = 29
	efuLatencyESin   = 29
	efuLatencyEAtan2 = 44

	// macClipFlagWindow bounds how many cycles after a MAC/CLIP-flag
	// producing instruction a later flag read can still observe it
	// without an explicit stall; beyond this the translator must treat
	// the flag as already retired.
	macClipFlagWindow = 5

	// branchBackupWindowBytes bounds how far back a VI-branch lowering
	// may look for the instruction that wrote the VI register it reads,
	// when that write is still in the integer load-delay slot and the
	// compare must instead read the value backed up ahead of it. A
	// stall anywhere in the scanned chain breaks it; do not widen
	// without revisiting that chain argument. Nothing in this package
	// reads it: Translate and CodeGen do no such backward scan, and a
	// VI branch compares the register's current value.
	branchBackupWindowBytes = 32
)

// Schedule is the per-block scheduling metadata Analyze derives from
// the IR: which instructions are FMAC-pipelined, and which MAC/CLIP
// flag reads have a flag producer within the liveness window before
// them in the same block. CodeGen.Compile computes it but no lowering
// reads it: write-back is not delayed and no pipeline-update code is
// emitted.
type Schedule struct {
	FMACDelayed   []bool
	MACFlagReader []bool
	ClipFlagReader []bool
}

// Analyze walks block and classifies each instruction's pipeline
// interaction: FMAC ops get delayed write-back tracking, DIV/SQRT/EFU
// ops get their fixed latency recorded directly on the IR instruction
// (already set by the decoder), and flag-consuming instructions are
// marked when a MAC/CLIP-flag producer lies within the liveness
// window.
func Analyze(block *ir.Block) Schedule {
	sched := Schedule{
		FMACDelayed:    make([]bool, len(block.Instructions)),
		MACFlagReader:  make([]bool, len(block.Instructions)),
		ClipFlagReader: make([]bool, len(block.Instructions)),
	}

	lastMacProducer := -1
	lastClipProducer := -1
	for i, inst := range block.Instructions {
		if inst.Class == ir.PipelineMAC1 {
			sched.FMACDelayed[i] = true
			lastMacProducer = i
		}
		if inst.Op == ir.VClip {
			lastClipProducer = i
		}
		if inst.Op == ir.AndStatFlags || inst.Op == ir.VMacAnd || inst.Op == ir.VMacEq {
			if lastMacProducer >= 0 && i-lastMacProducer <= macClipFlagWindow {
				sched.MACFlagReader[i] = true
			}
		}
		if inst.Op == ir.AndClipFlags || inst.Op == ir.OrClipFlags {
			if lastClipProducer >= 0 && i-lastClipProducer <= macClipFlagWindow {
				sched.ClipFlagReader[i] = true
			}
		}
	}
	return sched
}

// EFULatency returns the queue latency for an EFU opcode.
func EFULatency(op ir.Opcode) int {
	switch op {
	case ir.VESqrt:
		return efuLatencyESqrt
	case ir.VERsqrt:
		return efuLatencyERsqrt
	case ir.VEleng:
		return efuLatencyELeng
	case ir.VErleng:
		return efuLatencyERleng
	}
	return 0
}

package main

import "github.com/ps2re/dynarec/ir"

// fmacFlagReaderBlock builds the two-instruction IR sequence scenario
// (c) describes directly (MULx.xyz vf1,vf2,vf3 then, immediately
// after, FMAND vi1,vi1 reading the MAC flags) rather than hand-
// encoding FMAND's raw microcode bits, since the lower-word decoder
// does not natively recognize the flag-AND family and routes it to
// the interpreter fallback regardless of encoding.
func fmacFlagReaderBlock() *ir.Block {
	block := &ir.Block{}
	block.Append(ir.Instruction{
		Op: ir.VMulVectors, Dest: ir.Register(1), Source: ir.Register(2), Source2: ir.Register(3),
		Field: 0xE, Class: ir.PipelineMAC1, CycleCount: 1, Latency: 4,
	})
	block.Append(ir.Instruction{
		Op: ir.VMacAnd, Dest: ir.Register(1), Source: ir.Register(1),
		Class: ir.PipelineIntGeneric, CycleCount: 1,
	})
	return block
}

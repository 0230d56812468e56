package vu

import "github.com/ps2re/dynarec/ir"

// FetchPair reads one 64-bit VU instruction pair at addr, returning
// the upper (FMAC) word and the lower word (which carries the E/I/M/
// D/T control bits).
type FetchPair func(addr uint32) (upper, lower uint32)

// Translate decodes a VU microprogram block starting at entryPC. Each
// 8-byte instruction pair contributes the lower instruction first
// (matching the real machine's integer/branch pipe issuing ahead of
// the FMAC pipe within the pair) followed by the upper instruction,
// and the block terminates one pair after the E-bit is observed, or
// immediately on the pair carrying the T-bit.
func Translate(entryPC uint32, fetch FetchPair) *ir.Block {
	block := &ir.Block{}
	pc := entryPC
	pendingEnd := false
	for {
		upper, lower := fetch(pc)

		lowerInst := DecodeLower(pc, lower)
		block.Append(lowerInst)
		upperInst := DecodeUpper(upper)
		block.Append(upperInst)

		if HasTBit(lower) {
			break
		}
		if pendingEnd {
			break
		}
		if HasEBit(lower) {
			pendingEnd = true
		}
		pc += 8
	}
	return block
}

package ee

import "github.com/ps2re/dynarec/ir"

// Fetch reads one 32-bit guest instruction word at addr.
type Fetch func(addr uint32) uint32

// Translate scans forward from entryPC, decoding one IR instruction
// per 32-bit guest word, and ends the block one instruction after a
// branch/jump (its delay slot). It never aborts:
// unrecognized words become FallbackInterpreter instructions.
func Translate(entryPC uint32, fetch Fetch) *ir.Block {
	block := &ir.Block{}
	pc := entryPC
	for {
		w := fetch(pc)
		inst := decode(pc, w)
		block.Append(inst)
		pc += 4
		if inst.IsJump() {
			// emit exactly one more instruction: the delay slot.
			delayW := fetch(pc)
			delayInst := decode(pc, delayW)
			block.Append(delayInst)
			break
		}
	}
	return block
}

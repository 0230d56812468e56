//go:build arm64

package emit

// Register numbering for the AArch64 GPR file; X30 is the link
// register, X31 the zero/stack register depending on context.
const (
	X0  = 0
	X29 = 29
	X30 = 30
)

// LoadAddr materializes a 64-bit constant into reg with a four
// instruction MOVZ/MOVK/MOVK/MOVK sequence — fixed length so jump
// fixups that skip over it stay valid regardless of the constant's
// value.
func (e *Emitter) LoadAddr(imm uint64, reg int) {
	e.movWide(0xD2800000, reg, uint16(imm), 0)
	e.movWide(0xF2800000, reg, uint16(imm>>16), 16)
	e.movWide(0xF2800000, reg, uint16(imm>>32), 32)
	e.movWide(0xF2800000, reg, uint16(imm>>48), 48)
}

func (e *Emitter) movWide(base uint32, rd int, imm16 uint16, shift int) {
	hw := uint32(shift / 16)
	inst := base | (hw << 21) | (uint32(imm16) << 5) | uint32(rd&0x1f)
	e.EmitU32(inst)
}

// BRel26 emits an unconditional branch `B` with a placeholder imm26
// and returns its patch site; patch offsets are in instructions, not
// bytes, so Resolve divides by 4 before encoding.
func (e *Emitter) BRel26() PatchSite {
	site := PatchSite{offset: e.codeCursor - e.literalCursor, kind: patchRel32}
	e.EmitU32(0x14000000)
	return site
}

// Ret emits `ret` (branch to X30).
func (e *Emitter) Ret() { e.EmitU32(0xD65F03C0) }

// CallABI saves the registers in callerSaved via STP pairs, branches
// with link to fn's materialized address, and restores them.
func (e *Emitter) CallABI(fn uintptr, callerSaved []int) {
	for i := 0; i+1 < len(callerSaved); i += 2 {
		e.stp(callerSaved[i], callerSaved[i+1])
	}
	e.LoadAddr(uint64(fn), 16)
	e.EmitU32(0xD63F0200) // blr x16
	for i := (len(callerSaved) / 2) * 2 - 2; i >= 0; i -= 2 {
		e.ldp(callerSaved[i], callerSaved[i+1])
	}
}

func (e *Emitter) stp(r1, r2 int) {
	inst := uint32(0xA9800000) | (uint32(r2&0x1f) << 10) | (31 << 5) | uint32(r1&0x1f)
	e.EmitU32(inst)
}

func (e *Emitter) ldp(r1, r2 int) {
	inst := uint32(0xA8C00000) | (uint32(r2&0x1f) << 10) | (31 << 5) | uint32(r1&0x1f)
	e.EmitU32(inst)
}

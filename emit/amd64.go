//go:build amd64

package emit

// Register numbering for the x86-64 GPR file, REX-extended (R8-R15).
const (
	RAX = 0
	RCX = 1
	RDX = 2
	RBX = 3
	RSP = 4
	RBP = 5
	RSI = 6
	RDI = 7
	R8  = 8
	R9  = 9
	R10 = 10
	R11 = 11
	R12 = 12
	R13 = 13
	R14 = 14
	R15 = 15
)

// Condition codes for Jcc/SETcc, matching the Intel tttn encoding used
// by the one-byte-escape 0x0F 0x8x family.
const (
	CondE  = 0x84
	CondNE = 0x85
	CondL  = 0x8C
	CondGE = 0x8D
	CondLE = 0x8E
	CondG  = 0x8F
	CondAE = 0x83
	CondB  = 0x82
	CondS  = 0x88
	CondNS = 0x89
)

// LoadAddr materializes a 64-bit constant into reg via `movabs`
// (REX.W + B8+rd + imm64). This is position-independent: the constant
// is inlined, not RIP-relative, so a block's code can be copied to any
// address in the JIT heap without relocation.
func (e *Emitter) LoadAddr(imm uint64, reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x49
	}
	e.EmitByte(rex)
	e.EmitByte(byte(0xB8 + (reg & 7)))
	e.EmitU64(imm)
}

// JccRel32 emits a near conditional jump with a placeholder
// displacement and returns its patch site.
func (e *Emitter) JccRel32(cond byte) PatchSite {
	return e.DeferBranch(0x0F, cond)
}

// JmpRel32 emits a near unconditional jump with a placeholder
// displacement and returns its patch site.
func (e *Emitter) JmpRel32() PatchSite {
	return e.DeferBranch(0xE9)
}

// CallRel32 emits a near call with a placeholder displacement and
// returns its patch site.
func (e *Emitter) CallRel32() PatchSite {
	return e.DeferBranch(0xE8)
}

// Ret emits `ret`.
func (e *Emitter) Ret() { e.EmitByte(0xC3) }

// CallABI emits the sequence that saves every host register named in
// callerSaved (pushes, low-to-high so pops reverse cleanly), issues a
// direct call to fn's materialized address, and reloads the saved
// registers. This is the generic fallback call path used for guest
// memory accessors and host exception/interlock hooks; it does not
// know about the host platform's argument registers, which the caller
// must already have populated before invoking CallABI.
func (e *Emitter) CallABI(fn uintptr, callerSaved []int) {
	for _, r := range callerSaved {
		e.pushReg(r)
	}
	e.LoadAddr(uint64(fn), RAX)
	e.EmitBytes(0xFF, 0xD0) // call rax
	for i := len(callerSaved) - 1; i >= 0; i-- {
		e.popReg(callerSaved[i])
	}
}

func (e *Emitter) pushReg(reg int) {
	if reg >= 8 {
		e.EmitByte(0x41)
	}
	e.EmitByte(byte(0x50 + (reg & 7)))
}

func (e *Emitter) popReg(reg int) {
	if reg >= 8 {
		e.EmitByte(0x41)
	}
	e.EmitByte(byte(0x58 + (reg & 7)))
}

// LoadLocal emits `mov reg, [rbp - offset]`.
func (e *Emitter) LoadLocal(offset int, reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x4C
	}
	e.modrmDisp(rex, 0x8B, reg, offset)
}

// StoreLocal emits `mov [rbp - offset], reg`.
func (e *Emitter) StoreLocal(offset int, reg int) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x4C
	}
	e.modrmDisp(rex, 0x89, reg, offset)
}

func (e *Emitter) modrmDisp(rex, opcode byte, reg int, offset int) {
	negOff := -offset
	if negOff >= -128 && negOff <= 127 {
		modrm := byte(0x45 | ((reg & 7) << 3))
		e.EmitBytes(rex, opcode, modrm, byte(negOff))
		return
	}
	modrm := byte(0x85 | ((reg & 7) << 3))
	e.EmitBytes(rex, opcode, modrm)
	e.EmitU32(uint32(int32(negOff)))
}

func (e *Emitter) rex(w bool, reg, rm int) byte {
	r := byte(0x40)
	if w {
		r |= 0x08
	}
	if reg >= 8 {
		r |= 0x04
	}
	if rm >= 8 {
		r |= 0x01
	}
	return r
}

func (e *Emitter) rrOp(opcode byte, dst, src int) {
	e.EmitBytes(e.rex(true, src, dst), opcode, byte(0xC0|(src&7)<<3|(dst&7)))
}

// AddRR emits `add dst, src`.
func (e *Emitter) AddRR(dst, src int) { e.rrOp(0x01, dst, src) }

// SubRR emits `sub dst, src`.
func (e *Emitter) SubRR(dst, src int) { e.rrOp(0x29, dst, src) }

// AndRR emits `and dst, src`.
func (e *Emitter) AndRR(dst, src int) { e.rrOp(0x21, dst, src) }

// OrRR emits `or dst, src`.
func (e *Emitter) OrRR(dst, src int) { e.rrOp(0x09, dst, src) }

// XorRR emits `xor dst, src`.
func (e *Emitter) XorRR(dst, src int) { e.rrOp(0x31, dst, src) }

// CmpRR emits `cmp a, b`.
func (e *Emitter) CmpRR(a, b int) { e.rrOp(0x39, a, b) }

// TestRR emits `test a, b`.
func (e *Emitter) TestRR(a, b int) { e.rrOp(0x85, a, b) }

// NotR emits `not reg`.
func (e *Emitter) NotR(reg int) {
	e.EmitBytes(e.rex(true, 0, reg), 0xF7, byte(0xD0|(reg&7)))
}

// MovRR emits `mov dst, src`.
func (e *Emitter) MovRR(dst, src int) { e.rrOp(0x89, dst, src) }

// AddImm32 emits `add reg, imm32` (sign-extended to 64 bits).
func (e *Emitter) AddImm32(reg int, imm int32) {
	e.EmitBytes(e.rex(true, 0, reg), 0x81, byte(0xC0|(reg&7)))
	e.EmitU32(uint32(imm))
}

// SubImm32 emits `sub reg, imm32`.
func (e *Emitter) SubImm32(reg int, imm int32) {
	e.EmitBytes(e.rex(true, 0, reg), 0x81, byte(0xE8|(reg&7)))
	e.EmitU32(uint32(imm))
}

// CmpImm32 emits `cmp reg, imm32`.
func (e *Emitter) CmpImm32(reg int, imm int32) {
	e.EmitBytes(e.rex(true, 0, reg), 0x81, byte(0xF8|(reg&7)))
	e.EmitU32(uint32(imm))
}

// ShiftImm emits one of shl/shr/sar reg, imm8; mode selects the /digit
// extension (4=shl, 5=shr, 7=sar).
func (e *Emitter) ShiftImm(mode byte, reg int, count byte) {
	e.EmitBytes(e.rex(true, 0, reg), 0xC1, byte(0xC0|(mode&7)<<3|byte(reg&7)), count)
}

// ShiftCL emits one of shl/shr/sar reg, cl.
func (e *Emitter) ShiftCL(mode byte, reg int) {
	e.EmitBytes(e.rex(true, 0, reg), 0xD3, byte(0xC0|(mode&7)<<3|byte(reg&7)))
}

// SetCC emits `setCC reg8` zero-extended into reg (via a setcc+movzx
// pair, so the flags are read before anything overwrites them and the
// full 64-bit register is well-defined).
func (e *Emitter) SetCC(cond byte, reg int) {
	cc := cond & 0x0F
	e.EmitBytes(e.rex(false, 0, reg), 0x0F, byte(0x90|cc), byte(0xC0|(reg&7)))
	e.EmitBytes(e.rex(false, reg, reg), 0x0F, 0xB6, byte(0xC0|(reg&7)<<3|(reg&7)))
}

// CMov emits `cmovCC dst, src`.
func (e *Emitter) CMov(cond byte, dst, src int) {
	cc := cond & 0x0F
	e.EmitBytes(e.rex(true, dst, src), 0x0F, byte(0x40|cc), byte(0xC0|(dst&7)<<3|(src&7)))
}

// CDQ sign-extends EAX into EDX:EAX (used by the 32-bit divide path).
func (e *Emitter) CDQ() { e.EmitByte(0x99) }

// IDivR emits the 32-bit signed `idiv reg` (EDX:EAX / reg -> EAX
// quotient, EDX remainder).
func (e *Emitter) IDivR(reg int) {
	pfx := byte(0x40)
	if reg >= 8 {
		pfx |= 0x01
	}
	if pfx != 0x40 {
		e.EmitByte(pfx)
	}
	e.EmitBytes(0xF7, byte(0xF8|(reg&7)))
}

// DivR emits the 32-bit unsigned `div reg`.
func (e *Emitter) DivR(reg int) {
	pfx := byte(0x40)
	if reg >= 8 {
		pfx |= 0x01
	}
	if pfx != 0x40 {
		e.EmitByte(pfx)
	}
	e.EmitBytes(0xF7, byte(0xF0|(reg&7)))
}

// IMulRR emits the 32-bit two-operand signed `imul dst, src`.
func (e *Emitter) IMulRR(dst, src int) {
	e.EmitBytes(e.rex(false, dst, src), 0x0F, 0xAF, byte(0xC0|(dst&7)<<3|(src&7)))
}

// MovSXD emits `movsxd dst, src32` (sign-extend 32->64).
func (e *Emitter) MovSXD(dst, src int) {
	e.EmitBytes(e.rex(true, dst, src), 0x63, byte(0xC0|(dst&7)<<3|(src&7)))
}

// LoadMem emits `mov reg, [base + offset]` (64-bit) for an arbitrary
// (non-RSP) base register, used to address fields of the guest-state
// struct through a dedicated state-pointer register.
func (e *Emitter) LoadMem(base, offset, reg int) {
	e.memOp(0x8B, base, offset, reg, true)
}

// StoreMem emits `mov [base + offset], reg` (64-bit).
func (e *Emitter) StoreMem(base, offset, reg int) {
	e.memOp(0x89, base, offset, reg, true)
}

// LoadMem32 emits `mov reg32, [base + offset]`, for 32-bit guest-state
// fields (PC, cycle counters) where a full 64-bit load would read past
// the field into its neighbor.
func (e *Emitter) LoadMem32(base, offset, reg int) {
	e.memOp(0x8B, base, offset, reg, false)
}

// StoreMem32 emits `mov [base + offset], reg32`.
func (e *Emitter) StoreMem32(base, offset, reg int) {
	e.memOp(0x89, base, offset, reg, false)
}

// LoadMem16 emits `movzx reg32, word [base + offset]`, for 16-bit
// guest-state fields (the VU integer register file) where neither a
// 32- nor 64-bit access is safe against neighboring fields.
func (e *Emitter) LoadMem16(base, offset, reg int) {
	rex := byte(0x40)
	if reg >= 8 {
		rex |= 0x04
	}
	if base >= 8 {
		rex |= 0x01
	}
	if rex != 0x40 {
		e.EmitByte(rex)
	}
	e.EmitBytes(0x0F, 0xB7)
	e.memModRM(base, offset, reg)
}

// StoreMem16 emits `mov [base + offset], reg16` with the 0x66
// operand-size prefix.
func (e *Emitter) StoreMem16(base, offset, reg int) {
	e.EmitByte(0x66)
	rex := byte(0x40)
	if reg >= 8 {
		rex |= 0x04
	}
	if base >= 8 {
		rex |= 0x01
	}
	if rex != 0x40 {
		e.EmitByte(rex)
	}
	e.EmitByte(0x89)
	e.memModRM(base, offset, reg)
}

func (e *Emitter) memModRM(base, offset, reg int) {
	b := base & 7
	r := reg & 7
	if offset == 0 && b != RBP {
		e.EmitByte(byte(0x00 | (r << 3) | b))
		return
	}
	if offset >= -128 && offset <= 127 {
		e.EmitBytes(byte(0x40|(r<<3)|b), byte(offset))
		return
	}
	e.EmitByte(byte(0x80 | (r << 3) | b))
	e.EmitU32(uint32(int32(offset)))
}

func (e *Emitter) memOp(opcode byte, base, offset, reg int, wide bool) {
	rex := byte(0x40)
	if wide {
		rex |= 0x08
	}
	if reg >= 8 {
		rex |= 0x04
	}
	if base >= 8 {
		rex |= 0x01
	}
	b := base & 7
	r := reg & 7
	if offset == 0 && b != RBP {
		e.EmitBytes(rex, opcode, byte(0x00|(r<<3)|b))
		return
	}
	if offset >= -128 && offset <= 127 {
		e.EmitBytes(rex, opcode, byte(0x40|(r<<3)|b), byte(offset))
		return
	}
	e.EmitBytes(rex, opcode, byte(0x80|(r<<3)|b))
	e.EmitU32(uint32(int32(offset)))
}

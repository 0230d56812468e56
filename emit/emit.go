// Package emit implements the host machine-code emitter:
// a scratch buffer whose code cursor grows forward from the middle and
// whose literal-pool cursor grows backward from the same point, so
// that on completion the occupied region is one contiguous slice that
// can be copied into the JIT heap in a single step.
package emit

import "encoding/binary"

// Default scratch-buffer sizing. LMax bounds how large a block's
// literal pool may grow; CMax bounds the code region. Both are
// generous upper bounds for a single translated guest block.
const (
	LMax = 64 * 1024
	CMax = 256 * 1024
)

// PatchSite identifies a previously emitted placeholder displacement
// that Resolve will later fill in.
type PatchSite struct {
	offset int // offset of the 4-byte rel32 (or 8-byte abs, per Kind) within buf
	kind   patchKind
}

type patchKind uint8

const (
	patchRel32 patchKind = iota
	patchAbs64
)

// Emitter is reset (Clear) before each block; it owns no cross-block
// state.
type Emitter struct {
	buf []byte

	codeCursor    int // grows forward from litStart
	literalCursor int // grows backward from litStart
	litStart      int
}

// New allocates a scratch buffer sized for one block's worth of code
// and literals and resets the cursors to their starting position.
func New() *Emitter {
	e := &Emitter{buf: make([]byte, LMax+CMax)}
	e.Clear()
	return e
}

// Clear resets the emitter for a new block without reallocating the
// backing buffer.
func (e *Emitter) Clear() {
	e.litStart = LMax
	e.codeCursor = e.litStart
	e.literalCursor = e.litStart
}

// CodeOffset returns the current code cursor's offset within the
// eventual contiguous region, i.e. the literal bytes plus the code
// bytes emitted so far.
func (e *Emitter) CodeOffset() int { return e.codeCursor - e.literalCursor }

// Contiguous returns the occupied region [literalsStart, codeEnd), the
// slice that gets copied into the heap.
func (e *Emitter) Contiguous() []byte {
	return e.buf[e.literalCursor:e.codeCursor]
}

// LiteralsLen returns the size of the literal pool within Contiguous().
func (e *Emitter) LiteralsLen() int { return e.litStart - e.literalCursor }

// EmitByte appends one byte at the code cursor.
func (e *Emitter) EmitByte(b byte) {
	e.grow(1)
	e.buf[e.codeCursor] = b
	e.codeCursor++
}

// EmitBytes appends a sequence of bytes at the code cursor.
func (e *Emitter) EmitBytes(bs ...byte) {
	for _, b := range bs {
		e.EmitByte(b)
	}
}

// EmitU32 appends a little-endian 32-bit word at the code cursor.
func (e *Emitter) EmitU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.EmitBytes(tmp[:]...)
}

// EmitU64 appends a little-endian 64-bit word at the code cursor.
func (e *Emitter) EmitU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.EmitBytes(tmp[:]...)
}

// EmitLiteral reserves len(data) bytes backward from the literal
// cursor, copies data into them, and returns the absolute scratch
// offset of the start of the literal (relocated into the heap by a
// known displacement once the block is installed).
func (e *Emitter) EmitLiteral(data []byte) int {
	e.literalCursor -= len(data)
	if e.literalCursor < 0 {
		panic("emit: literal pool exceeded LMax")
	}
	copy(e.buf[e.literalCursor:], data)
	return e.literalCursor
}

// DeferBranch emits a near branch opcode sequence (supplied by the
// caller, architecture-specific) followed by a 4-byte rel32
// placeholder, and returns a PatchSite for later resolution.
func (e *Emitter) DeferBranch(opcodeBytes ...byte) PatchSite {
	e.EmitBytes(opcodeBytes...)
	site := PatchSite{offset: e.codeCursor, kind: patchRel32}
	e.EmitU32(0)
	return site
}

// Resolve writes target-patchEnd into the rel32 placeholder at site.
func (e *Emitter) Resolve(site PatchSite, targetOffset int) {
	switch site.kind {
	case patchRel32:
		rel := int32(targetOffset - (site.offset + 4))
		binary.LittleEndian.PutUint32(e.buf[site.offset:site.offset+4], uint32(rel))
	case patchAbs64:
		binary.LittleEndian.PutUint64(e.buf[site.offset:site.offset+8], uint64(targetOffset))
	default:
		panic("emit: unknown patch kind")
	}
}

// ResolveHere resolves site to the current code cursor.
func (e *Emitter) ResolveHere(site PatchSite) {
	e.Resolve(site, e.codeCursor)
}

func (e *Emitter) grow(n int) {
	if e.codeCursor+n > len(e.buf) {
		panic("emit: code region exceeded CMax")
	}
}

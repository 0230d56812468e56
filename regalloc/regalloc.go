// Package regalloc implements the register allocator: a
// pair of 16-entry tables mapping guest registers onto host GPR/SIMD
// registers, with age-based eviction, locking, and per-lane clamp-mask
// tracking for VU floats.
package regalloc

import "github.com/ps2re/dynarec/emit"

// Kind distinguishes the register file an entry lives in.
type Kind uint8

const (
	KindGPR Kind = iota
	KindSIMD
)

// State controls whether an allocation loads the guest value, skips
// the load, forbids marking the entry modified, or never writes back.
type State uint8

const (
	Read State = iota
	Write
	ReadWrite
	Scratchpad
)

// numEntries gives the allocator two parallel 16-entry tables.
const numEntries = 16

// Entry is one slot of a register table.
type Entry struct {
	Used       bool
	Locked     bool
	Modified   bool
	Stored     bool
	Age        int
	GuestReg   uint16
	HasGuest   bool
	Kind       Kind
	ClampMask  uint8 // VU lane-clamp tracking: bit i set => lane i may hold an unclamped value
}

// Backend supplies the architecture- and guest-state-specific load and
// store sequences the allocator needs to spill/fill a guest register;
// it is implemented once per CPU core (EE GPRs, VU VF/VI/ACC) so the
// allocator itself stays free of guest-layout knowledge.
type Backend interface {
	LoadGuestReg(e *emit.Emitter, guestReg uint16, hostReg int, kind Kind)
	StoreGuestReg(e *emit.Emitter, guestReg uint16, hostReg int, kind Kind)
	ZeroHostReg(e *emit.Emitter, hostReg int, kind Kind)
	IsZeroRegister(guestReg uint16, kind Kind) bool
}

// Allocator is the per-block register allocator. It is reset at each
// block's terminal edge (CleanupRecompiler) and before each ABI call
// (PrepareCall).
type Allocator struct {
	gpr  [numEntries]Entry
	simd [numEntries]Entry

	volatileGPR   map[int]bool // true => prefer for scratchpad kinds
	calleeSavedGPR map[int]bool // true => prefer for live-across-call kinds

	backend Backend
}

// New creates an allocator. volatile/calleeSaved list host register
// indices by the host ABI's caller/callee-saved convention, used only
// to break victim-selection ties.
func New(backend Backend, volatileGPR, calleeSavedGPR []int) *Allocator {
	a := &Allocator{
		backend:        backend,
		volatileGPR:    toSet(volatileGPR),
		calleeSavedGPR: toSet(calleeSavedGPR),
	}
	return a
}

func toSet(xs []int) map[int]bool {
	m := make(map[int]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

func (a *Allocator) table(kind Kind) *[numEntries]Entry {
	if kind == KindGPR {
		return &a.gpr
	}
	return &a.simd
}

// findMapped returns the entry index already holding guestReg, or -1.
func (a *Allocator) findMapped(kind Kind, guestReg uint16) int {
	t := a.table(kind)
	for i := range t {
		if t[i].Used && t[i].HasGuest && t[i].GuestReg == guestReg && !t[i].Locked {
			return i
		}
	}
	return -1
}

// Alloc implements alloc(guest_reg, kind, state, dest_hint):
// if guestReg is already mapped and unlocked, return it; otherwise
// pick destHint if it is not locked, else the highest-age unlocked entry (ties
// broken per scratchpad-vs-live-across-call preference), flushing the
// previous occupant first if it was modified.
func (a *Allocator) Alloc(e *emit.Emitter, guestReg uint16, kind Kind, state State, destHint int, liveAcrossCall bool) int {
	if i := a.findMapped(kind, guestReg); i >= 0 {
		a.bumpAges(kind, i)
		t := a.table(kind)
		if state != Read {
			t[i].Modified = true
		}
		return i
	}

	idx := destHint
	if idx < 0 || a.table(kind)[idx].Locked {
		idx = a.pickVictim(kind, liveAcrossCall)
	}

	t := a.table(kind)
	if t[idx].Used && t[idx].Modified && t[idx].HasGuest {
		a.backend.StoreGuestReg(e, t[idx].GuestReg, idx, kind)
	}

	t[idx] = Entry{Used: true, HasGuest: true, GuestReg: guestReg, Kind: kind}

	switch state {
	case Read, ReadWrite:
		if a.backend.IsZeroRegister(guestReg, kind) {
			a.backend.ZeroHostReg(e, idx, kind)
		} else {
			a.backend.LoadGuestReg(e, guestReg, idx, kind)
		}
	case Write:
		// skip the initial load
	case Scratchpad:
		t[idx].HasGuest = false
	}
	if state == ReadWrite || state == Write {
		t[idx].Modified = true
	}
	a.bumpAges(kind, idx)
	return idx
}

// LAlloc is the locked-allocation variant: locked=true, so the entry
// cannot be evicted or chosen as a victim until explicitly unlocked.
// All locks must be dropped before the next ABI call.
func (a *Allocator) LAlloc(e *emit.Emitter, guestReg uint16, kind Kind, state State, destHint int) int {
	idx := a.Alloc(e, guestReg, kind, state, destHint, true)
	a.table(kind)[idx].Locked = true
	return idx
}

// Unlock clears the locked flag on entry idx.
func (a *Allocator) Unlock(kind Kind, idx int) {
	a.table(kind)[idx].Locked = false
}

func (a *Allocator) pickVictim(kind Kind, liveAcrossCall bool) int {
	t := a.table(kind)
	best := -1
	for i := range t {
		if t[i].Locked {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		if t[i].Age > t[best].Age {
			best = i
			continue
		}
		if t[i].Age == t[best].Age && kind == KindGPR {
			iPref := a.preferred(i, liveAcrossCall)
			bestPref := a.preferred(best, liveAcrossCall)
			if iPref && !bestPref {
				best = i
			}
		}
	}
	if best == -1 {
		panic("regalloc: no unlocked entry available for eviction")
	}
	return best
}

func (a *Allocator) preferred(idx int, liveAcrossCall bool) bool {
	if liveAcrossCall {
		return a.calleeSavedGPR[idx]
	}
	return a.volatileGPR[idx]
}

func (a *Allocator) bumpAges(kind Kind, justAllocated int) {
	t := a.table(kind)
	for i := range t {
		if t[i].Used {
			t[i].Age++
		}
	}
	t[justAllocated].Age = 0
}

// MarkClamp records that the lanes in mask of the SIMD entry idx may
// now hold unclamped values.
func (a *Allocator) MarkClamp(idx int, mask uint8) {
	a.simd[idx].ClampMask |= mask
}

// ClampMask returns the current unclamped-lane mask for SIMD entry
// idx.
func (a *Allocator) ClampMask(idx int) uint8 { return a.simd[idx].ClampMask }

// ClearClamp clears the clamp-pending bits in mask after the caller
// has emitted the clamp sequence.
func (a *Allocator) ClearClamp(idx int, mask uint8) {
	a.simd[idx].ClampMask &^= mask
}

// FlushRegs writes back every modified entry in both tables.
func (a *Allocator) FlushRegs(e *emit.Emitter) {
	for i := range a.gpr {
		if a.gpr[i].Used && a.gpr[i].Modified && a.gpr[i].HasGuest {
			a.backend.StoreGuestReg(e, a.gpr[i].GuestReg, i, KindGPR)
			a.gpr[i].Modified = false
		}
	}
	for i := range a.simd {
		if a.simd[i].Used && a.simd[i].Modified && a.simd[i].HasGuest {
			a.backend.StoreGuestReg(e, a.simd[i].GuestReg, i, KindSIMD)
			a.simd[i].Modified = false
		}
	}
}

// CleanupRecompiler flushes every modified entry and then clears both
// tables, matching the block's terminal-edge contract that no host
// register may hold ownership of a guest register across a cross-block
// edge.
func (a *Allocator) CleanupRecompiler(e *emit.Emitter) {
	a.FlushRegs(e)
	a.gpr = [numEntries]Entry{}
	a.simd = [numEntries]Entry{}
}

// PrepareCall asserts no locks remain, matching the call_abi contract
// ("all locks must be dropped before the next ABI call"), writes back
// every modified entry and then clears both tables, so no guest
// register is taken to survive the call in a host register.
func (a *Allocator) PrepareCall(e *emit.Emitter) {
	for i := range a.gpr {
		if a.gpr[i].Locked {
			panic("regalloc: locked GPR entry still held across ABI call")
		}
	}
	for i := range a.simd {
		if a.simd[i].Locked {
			panic("regalloc: locked SIMD entry still held across ABI call")
		}
	}
	a.FlushRegs(e)
	a.gpr = [numEntries]Entry{}
	a.simd = [numEntries]Entry{}
}

// CallerSavedSIMD returns the host SIMD register indices currently in
// use, for the emitter's CallABI spill list.
func (a *Allocator) CallerSavedSIMD() []int {
	var xs []int
	for i := range a.simd {
		if a.simd[i].Used {
			xs = append(xs, i)
		}
	}
	return xs
}

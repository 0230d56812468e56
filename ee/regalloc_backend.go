//go:build amd64

package ee

import (
	"unsafe"

	"github.com/ps2re/dynarec/emit"
	"github.com/ps2re/dynarec/hostapi"
	"github.com/ps2re/dynarec/regalloc"
)

// StatePtrReg is the host GPR that holds the *hostapi.EEState pointer
// for the lifetime of a compiled block; callee-saved so it survives
// any call_abi sequence without needing a reload.
const StatePtrReg = emit.RBX

var gprOffset = unsafe.Offsetof(hostapi.EEState{}.GPR)
var hiOffset = unsafe.Offsetof(hostapi.EEState{}.HI)
var loOffset = unsafe.Offsetof(hostapi.EEState{}.LO)

// Backend implements regalloc.Backend for the EE's 32 128-bit GPRs
// plus the pseudo HI/LO registers (sign-extension
// requirement on word results is handled by the generator, not here).
type Backend struct{}

func (Backend) LoadGuestReg(e *emit.Emitter, guestReg uint16, hostReg int, kind regalloc.Kind) {
	e.LoadMem(StatePtrReg, guestRegOffset(guestReg), hostReg)
}

func (Backend) StoreGuestReg(e *emit.Emitter, guestReg uint16, hostReg int, kind regalloc.Kind) {
	e.StoreMem(StatePtrReg, guestRegOffset(guestReg), hostReg)
}

func (Backend) ZeroHostReg(e *emit.Emitter, hostReg int, kind regalloc.Kind) {
	e.XorRR(hostReg, hostReg)
}

func (Backend) IsZeroRegister(guestReg uint16, kind regalloc.Kind) bool {
	return guestReg == 0
}

// guestRegOffset resolves a guest register index (0-31 for GPRs, or
// the pseudo hiReg/loReg indices) to its byte offset within EEState.
func guestRegOffset(guestReg uint16) int {
	switch guestReg {
	case hiReg:
		return int(hiOffset)
	case loReg:
		return int(loOffset)
	default:
		return int(gprOffset) + int(guestReg)*16 // U128 is 16 bytes
	}
}

//go:build amd64

package vu

import (
	"unsafe"

	"github.com/ps2re/dynarec/emit"
	"github.com/ps2re/dynarec/hostapi"
	"github.com/ps2re/dynarec/regalloc"
)

// StatePtrReg is the host GPR holding the live *hostapi.VUState
// pointer; callee-saved so a call_abi sequence never needs to reload
// it.
const StatePtrReg = emit.RBX

var (
	vfOffset  = unsafe.Offsetof(hostapi.VUState{}.VF)
	viOffset  = unsafe.Offsetof(hostapi.VUState{}.VI)
	accOffset = unsafe.Offsetof(hostapi.VUState{}.ACC)
)

// accRegIndex is the pseudo VF-file slot the generator uses to
// address the accumulator through the same SIMD entry table as the
// 32 real VF registers.
const accRegIndex uint16 = 32

// Backend implements regalloc.Backend for the VU's 32 128-bit VF
// registers (KindSIMD, plus the pseudo accumulator slot) and 16-bit VI
// registers (KindGPR).
type Backend struct{}

func (Backend) LoadGuestReg(e *emit.Emitter, guestReg uint16, hostReg int, kind regalloc.Kind) {
	if kind == regalloc.KindSIMD {
		e.LoadMemPS(StatePtrReg, vfRegOffset(guestReg), hostReg)
		return
	}
	e.LoadMem16(StatePtrReg, int(viOffset)+int(guestReg)*2, hostReg)
}

func (Backend) StoreGuestReg(e *emit.Emitter, guestReg uint16, hostReg int, kind regalloc.Kind) {
	if kind == regalloc.KindSIMD {
		e.StoreMemPS(StatePtrReg, vfRegOffset(guestReg), hostReg)
		return
	}
	e.StoreMem16(StatePtrReg, int(viOffset)+int(guestReg)*2, hostReg)
}

func (Backend) ZeroHostReg(e *emit.Emitter, hostReg int, kind regalloc.Kind) {
	if kind == regalloc.KindSIMD {
		e.XorPS(hostReg, hostReg)
		return
	}
	e.XorRR(hostReg, hostReg)
}

func (Backend) IsZeroRegister(guestReg uint16, kind regalloc.Kind) bool {
	return kind == regalloc.KindGPR && guestReg == 0
}

func vfRegOffset(guestReg uint16) int {
	if guestReg == accRegIndex {
		return int(accOffset)
	}
	return int(vfOffset) + int(guestReg)*16
}

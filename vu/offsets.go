//go:build amd64

package vu

import (
	"unsafe"

	"github.com/ps2re/dynarec/hostapi"
)

// Byte offsets into hostapi.VUState for fields the generator addresses
// directly rather than through the register allocator.
var (
	branchOnOffset       = int(unsafe.Offsetof(hostapi.VUState{}.BranchOn))
	pcStagingOffset      = int(unsafe.Offsetof(hostapi.VUState{}.PCStaging))
	gifAddrOffset        = int(unsafe.Offsetof(hostapi.VUState{}.GIFAddr))
	stalledGifAddrOffset = int(unsafe.Offsetof(hostapi.VUState{}.StalledGIFAddr))
	memMaskOffset        = int(unsafe.Offsetof(hostapi.VUState{}.MemMask))
	xgkickStallOffset    = int(unsafe.Offsetof(hostapi.VUState{}.XGKICKStall))

	blendSrcOffset = int(unsafe.Offsetof(hostapi.VUState{}.BlendScratch))
	blendDstOffset = blendSrcOffset + 16
)

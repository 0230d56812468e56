//go:build amd64

package ee

import (
	"unsafe"

	"github.com/ps2re/dynarec/hostapi"
)

// Byte offsets into hostapi.EEState for fields the generator
// addresses directly rather than through the register allocator.
var (
	pcOffset        = int(unsafe.Offsetof(hostapi.EEState{}.PC))
	pcStagingOffset = int(unsafe.Offsetof(hostapi.EEState{}.PCNow))
	branchOnOffset  = int(unsafe.Offsetof(hostapi.EEState{}.BranchOn))
)

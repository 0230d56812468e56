//go:build amd64

package vu

import (
	"reflect"

	"github.com/ps2re/dynarec/hostapi"
)

// hostFns resolves hostapi.VUHandlers down to raw function addresses,
// the same way the EE generator resolves hostapi.EEHandlers.
type hostFns struct {
	gifDone     uintptr
	interpreter uintptr
}

func resolveHostFns(hnd hostapi.VUHandlers) hostFns {
	return hostFns{
		gifDone:     funcPtr(hnd.GIFTransferDone),
		interpreter: funcPtr(hnd.InterpreterFallback),
	}
}

func funcPtr(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

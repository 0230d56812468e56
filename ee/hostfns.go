//go:build amd64

package ee

import (
	"reflect"

	"github.com/ps2re/dynarec/hostapi"
)

// hostFns resolves the host-implemented interfaces down to raw
// function addresses the generated code can call through
// emit.CallABI, the same way the compiled block's own entry point is
// just an address into the JIT heap. Go method values close over
// their receiver, so funcPtr resolves the underlying code address
// once at compile time and the receiver is passed explicitly as the
// call's first argument by the generator.
type hostFns struct {
	read8   uintptr
	read16  uintptr
	read32  uintptr
	read64  uintptr
	read128 uintptr

	write8   uintptr
	write16  uintptr
	write32  uintptr
	write64  uintptr
	write128 uintptr

	syscallException uintptr
	vu0Wait          uintptr
	checkInterlock   uintptr
	clearInterlock   uintptr
	interpreter      uintptr
}

func resolveHostFns(mem hostapi.MemoryAccessor, hnd hostapi.EEHandlers) hostFns {
	return hostFns{
		read8:   funcPtr(mem.Read8),
		read16:  funcPtr(mem.Read16),
		read32:  funcPtr(mem.Read32),
		read64:  funcPtr(mem.Read64),
		read128: funcPtr(mem.Read128),

		write8:   funcPtr(mem.Write8),
		write16:  funcPtr(mem.Write16),
		write32:  funcPtr(mem.Write32),
		write64:  funcPtr(mem.Write64),
		write128: funcPtr(mem.Write128),

		syscallException: funcPtr(hnd.SyscallException),
		vu0Wait:          funcPtr(hnd.VU0Wait),
		checkInterlock:   funcPtr(hnd.CheckInterlock),
		clearInterlock:   funcPtr(hnd.ClearInterlock),
		interpreter:      funcPtr(hnd.InterpreterFallback),
	}
}

func funcPtr(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

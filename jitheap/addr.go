package jitheap

import "unsafe"

// addrOf returns the address of the first byte of b. Generated code
// needs real addresses (for absolute calls into host accessor
// functions and for materializing the heap base), not slice headers.
func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

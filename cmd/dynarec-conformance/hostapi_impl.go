package main

import "github.com/ps2re/dynarec/hostapi"

// flatMemory is a minimal hostapi.MemoryAccessor backed by a single
// byte slice, large enough to drive the conformance scenarios; it
// never needs to service a real guest address space.
type flatMemory struct {
	bytes []byte
}

func newFlatMemory(size int) *flatMemory { return &flatMemory{bytes: make([]byte, size)} }

func (m *flatMemory) Read8(_ *hostapi.EEState, addr uint32) uint8 { return m.bytes[addr] }
func (m *flatMemory) Read16(_ *hostapi.EEState, addr uint32) uint16 {
	return uint16(m.bytes[addr]) | uint16(m.bytes[addr+1])<<8
}
func (m *flatMemory) Read32(_ *hostapi.EEState, addr uint32) uint32 {
	var v uint32
	for i := uint32(0); i < 4; i++ {
		v |= uint32(m.bytes[addr+i]) << (8 * i)
	}
	return v
}
func (m *flatMemory) Read64(_ *hostapi.EEState, addr uint32) uint64 {
	var v uint64
	for i := uint32(0); i < 8; i++ {
		v |= uint64(m.bytes[addr+i]) << (8 * i)
	}
	return v
}
func (m *flatMemory) Read128(s *hostapi.EEState, addr uint32) hostapi.U128 {
	return hostapi.U128{Lo: m.Read64(s, addr), Hi: m.Read64(s, addr+8)}
}

func (m *flatMemory) Write8(_ *hostapi.EEState, addr uint32, v uint8) { m.bytes[addr] = v }
func (m *flatMemory) Write16(_ *hostapi.EEState, addr uint32, v uint16) {
	m.bytes[addr], m.bytes[addr+1] = byte(v), byte(v>>8)
}
func (m *flatMemory) Write32(_ *hostapi.EEState, addr uint32, v uint32) {
	for i := uint32(0); i < 4; i++ {
		m.bytes[addr+i] = byte(v >> (8 * i))
	}
}
func (m *flatMemory) Write64(_ *hostapi.EEState, addr uint32, v uint64) {
	for i := uint32(0); i < 8; i++ {
		m.bytes[addr+i] = byte(v >> (8 * i))
	}
}
func (m *flatMemory) Write128(s *hostapi.EEState, addr uint32, v hostapi.U128) {
	m.Write64(s, addr, v.Lo)
	m.Write64(s, addr+8, v.Hi)
}

// noopEEHandlers satisfies hostapi.EEHandlers for scenarios that never
// take an exceptional path.
type noopEEHandlers struct{}

func (noopEEHandlers) SyscallException(*hostapi.EEState)           {}
func (noopEEHandlers) VU0Wait(*hostapi.EEState) bool                { return true }
func (noopEEHandlers) CheckInterlock(*hostapi.EEState) bool         { return true }
func (noopEEHandlers) ClearInterlock(*hostapi.EEState)              {}
func (noopEEHandlers) InterpreterFallback(*hostapi.EEState, uint32) {}

// noopVUHandlers satisfies hostapi.VUHandlers for scenarios that never
// exercise the GIF/XGKICK housekeeping path for real.
type noopVUHandlers struct{}

func (noopVUHandlers) GIFTransferDone(*hostapi.VUState) bool          { return true }
func (noopVUHandlers) InterpreterFallback(*hostapi.VUState, uint32) {}

// stallingVUHandlers reports the GIF transfer as still in flight,
// used by the XGKICK-stall scenario.
type stallingVUHandlers struct{}

func (stallingVUHandlers) GIFTransferDone(*hostapi.VUState) bool          { return false }
func (stallingVUHandlers) InterpreterFallback(*hostapi.VUState, uint32) {}

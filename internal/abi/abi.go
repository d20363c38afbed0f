// Package abi packs and unpacks the (pointer, length) pairs that cross the
// boundary between the scriptnet host and a WASM plugin, and manages the
// plugin-side buffers those pairs point to.
package abi

import "fmt"

// PtrHighBits is the shift that places the pointer in the high half.
const PtrHighBits = 32

// MaxTotalAllocations caps the bytes a plugin may hold in pinned buffers.
const MaxTotalAllocations = 100 * 1024 * 1024

// PackPtrLen packs a pointer and length into a single uint64.
// Panics if ptr is 0 and length > 0.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer with non-zero length (%d)", length))
	}
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen splits a packed value into pointer and length.
// Panics if ptr is 0 and length > 0.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> PtrHighBits)
	length = uint32(packed)
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid unpack - null pointer with non-zero length (%d)", length))
	}
	return ptr, length
}

package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackPtrLen_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		ptr    uint32
		length uint32
	}{
		{"empty reply", 0, 0},
		{"callback payload", 65536, 412},
		{"buffer without content", 1024, 0},
		{"largest response body", 0x00100000, 10 * 1024 * 1024},
		{"top of a 4GiB memory", 0xFFFFFFFF, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed := PackPtrLen(tt.ptr, tt.length)
			assert.Equal(t, tt.ptr, uint32(packed>>PtrHighBits), "pointer occupies the high half")
			assert.Equal(t, tt.length, uint32(packed), "length occupies the low half")

			gotPtr, gotLen := UnpackPtrLen(packed)
			assert.Equal(t, tt.ptr, gotPtr)
			assert.Equal(t, tt.length, gotLen)
		})
	}
}

func TestPackPtrLen_NullPointerWithLength(t *testing.T) {
	require.PanicsWithValue(t,
		"abi: invalid pack - null pointer with non-zero length (100)",
		func() { PackPtrLen(0, 100) })

	require.PanicsWithValue(t,
		"abi: invalid unpack - null pointer with non-zero length (1)",
		func() { UnpackPtrLen(uint64(1)) })
}

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAddrOrSizeLengthPrefix(t *testing.T) {
	cases := []struct {
		v      uint32
		wantN  int
	}{
		{0x00, 1},
		{0xFF, 1},
		{0x100, 2},
		{0xFFFF, 2},
		{0x10000, 3},
		{0xFFFFFF, 3},
		{0x1000000, 4},
		{0xFFFFFFFF, 4},
	}
	for _, c := range cases {
		encoded := EncodeAddrOrSize(c.v)
		assert.Equal(t, c.wantN, int(encoded[0]), "length prefix for 0x%X", c.v)
		assert.Len(t, encoded, 1+c.wantN)
	}
}

func TestEncodeDecodeAddrOrSizeRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 0xFF, 0x100, 0xABCD, 0x123456, 0xFFFFFFFF} {
		encoded := EncodeAddrOrSize(v)
		decoded, consumed, err := DecodeAddrOrSize(encoded)
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
		assert.Equal(t, len(encoded), consumed)
	}
}

func TestDecodeAddrOrSizeErrors(t *testing.T) {
	_, _, err := DecodeAddrOrSize(nil)
	assert.Error(t, err)

	_, _, err = DecodeAddrOrSize([]byte{0x05, 0x01})
	assert.Error(t, err, "length prefix out of range")

	_, _, err = DecodeAddrOrSize([]byte{0x02, 0x01})
	assert.Error(t, err, "buffer shorter than declared length")
}

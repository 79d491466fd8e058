package codec

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for i := 0; i < 20; i++ {
		id := uuid.NewString()
		decoded, err := Decode([]byte(Encode(id)))
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		"",
		"garbage",
		"LTK1",
		"LTK1..",
		"LTK2." + uuid.NewString() + ".AAAAAAA",
		"LTK1." + uuid.NewString() + ".WRONGCK",
		"LTK1." + uuid.NewString(),
	}
	for _, c := range cases {
		_, err := Decode([]byte(c))
		assert.ErrorIs(t, err, ErrMalformed, "payload %q", c)
	}
}

func TestDecodeCorruptedChecksum(t *testing.T) {
	symbol := []byte(Encode(uuid.NewString()))
	// flip a byte inside the id portion
	symbol[10] ^= 0xff
	_, err := Decode(symbol)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeInvalidIdentity(t *testing.T) {
	// correctly framed and checksummed, but the id is not a UUID
	id := "not-a-uuid"
	symbol := "LTK1." + id + "." + checksum(id)
	_, err := Decode([]byte(symbol))
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestEncodePNG(t *testing.T) {
	png, err := EncodePNG(uuid.NewString(), 256)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	// PNG signature
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

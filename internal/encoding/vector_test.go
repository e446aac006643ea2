package encoding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeVector(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.75, 0}

	data, err := EncodeVector(vec)
	require.NoError(t, err)
	require.Len(t, data, 4+len(vec)*4)

	got, err := DecodeVector(data)
	require.NoError(t, err)
	assert.Equal(t, vec, got)
}

func TestEncodeVectorNil(t *testing.T) {
	_, err := EncodeVector(nil)
	assert.ErrorIs(t, err, ErrInvalidVector)
}

func TestDecodeVectorTruncated(t *testing.T) {
	data, err := EncodeVector([]float32{1, 2, 3})
	require.NoError(t, err)

	_, err = DecodeVector(data[:len(data)-2])
	assert.ErrorIs(t, err, ErrInvalidVector)

	_, err = DecodeVector(data[:3])
	assert.ErrorIs(t, err, ErrInvalidVector)
}

func TestValidateVector(t *testing.T) {
	assert.NoError(t, ValidateVector([]float32{1, 2}))
	assert.ErrorIs(t, ValidateVector(nil), ErrInvalidVector)
	assert.ErrorIs(t, ValidateVector([]float32{}), ErrInvalidVector)
	assert.ErrorIs(t, ValidateVector([]float32{float32(math.NaN())}), ErrInvalidVector)
	assert.ErrorIs(t, ValidateVector([]float32{float32(math.Inf(1))}), ErrInvalidVector)
}

// Package encoding converts embedding vectors between their in-memory and
// persisted representations.
package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVector is returned when a vector is nil, empty, truncated or
// contains non-finite values.
var ErrInvalidVector = errors.New("invalid vector")

// EncodeVector serializes a float32 vector as a little-endian blob with a
// leading int32 element count.
func EncodeVector(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, ErrInvalidVector
	}

	vectorLen := len(vector)
	if vectorLen > math.MaxInt32 {
		return nil, fmt.Errorf("vector too large: %d elements exceeds maximum", vectorLen)
	}

	buf := new(bytes.Buffer)
	buf.Grow(4 + vectorLen*4)

	if err := binary.Write(buf, binary.LittleEndian, int32(vectorLen)); err != nil {
		return nil, fmt.Errorf("failed to encode vector length: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("failed to encode vector values: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeVector deserializes a blob produced by EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, ErrInvalidVector
	}

	buf := bytes.NewReader(data)

	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to decode vector length: %w", err)
	}
	if length < 0 {
		return nil, ErrInvalidVector
	}
	if length == 0 {
		return []float32{}, nil
	}

	if buf.Len() < int(length)*4 {
		return nil, ErrInvalidVector
	}

	vector := make([]float32, length)
	if err := binary.Read(buf, binary.LittleEndian, vector); err != nil {
		return nil, fmt.Errorf("failed to decode vector values: %w", err)
	}

	return vector, nil
}

// ValidateVector rejects nil, empty and non-finite vectors.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}

	for _, val := range vector {
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidVector
		}
	}

	return nil
}

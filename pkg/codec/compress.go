package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Zstd compresses payloads with zstandard. Encoder and decoder instances are
// reused across calls; both are safe for concurrent use via EncodeAll and
// DecodeAll.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstd creates a Zstd codec at the default compression level.
func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: creating zstd decoder: %w", err)
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

// Encode compresses data.
func (z *Zstd) Encode(data []byte) ([]byte, error) {
	return z.enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decode decompresses data.
func (z *Zstd) Decode(data []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}

// Name returns the stable codec name.
func (z *Zstd) Name() string { return "zstd" }

// LZ4 compresses payloads with the lz4 frame format.
type LZ4 struct{}

// Encode compresses data.
func (LZ4) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("codec: lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses data.
func (LZ4) Decode(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}

// Name returns the stable codec name.
func (LZ4) Name() string { return "lz4" }

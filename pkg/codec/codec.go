// Package codec centralizes byte-level transforms applied to record payloads
// just before they are written to a store file and just after they are read
// back.
//
// Codec selection is a breaking-change boundary: bytes persisted through one
// codec will not decode through another. The configured codec is therefore
// part of a store's identity and must stay stable for its lifetime.
package codec

import (
	"errors"
	"fmt"
)

// ErrCorrupt is returned when persisted bytes cannot be decoded by the
// configured codec.
var ErrCorrupt = errors.New("codec: corrupt payload")

// Codec transforms payload bytes. Implementations must be safe for
// concurrent use.
type Codec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
	Name() string
}

// Nop passes bytes through unchanged. It is the default codec.
type Nop struct{}

// Encode returns data unchanged.
func (Nop) Encode(data []byte) ([]byte, error) { return data, nil }

// Decode returns data unchanged.
func (Nop) Decode(data []byte) ([]byte, error) { return data, nil }

// Name returns the stable codec name.
func (Nop) Name() string { return "none" }

// ByName resolves a codec by its stable name. The key is only consulted for
// codecs that need one ("aead" requires a 32-byte key).
func ByName(name string, key []byte) (Codec, error) {
	switch name {
	case "", "none":
		return Nop{}, nil
	case "zstd":
		return NewZstd()
	case "lz4":
		return LZ4{}, nil
	case "aead":
		return NewAEAD(key)
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// chain applies codecs in order on encode and in reverse order on decode.
type chain struct {
	codecs []Codec
	name   string
}

// Chain composes codecs, e.g. Chain(zstd, aead) compresses and then encrypts.
func Chain(codecs ...Codec) Codec {
	if len(codecs) == 1 {
		return codecs[0]
	}
	name := ""
	for i, c := range codecs {
		if i > 0 {
			name += "+"
		}
		name += c.Name()
	}
	return &chain{codecs: codecs, name: name}
}

func (c *chain) Encode(data []byte) ([]byte, error) {
	var err error
	for _, cd := range c.codecs {
		if data, err = cd.Encode(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (c *chain) Decode(data []byte) ([]byte, error) {
	var err error
	for i := len(c.codecs) - 1; i >= 0; i-- {
		if data, err = c.codecs[i].Decode(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (c *chain) Name() string { return c.name }

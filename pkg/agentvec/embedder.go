package agentvec

import (
	"context"
	"errors"
)

// Embedder converts text into vectors. Implement it to plug any embedding
// model (OpenAI, Ollama, local models, etc.) into the store.
type Embedder interface {
	// Embed converts a single text string into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dim returns the dimension of vectors produced by this embedder.
	Dim() int
}

var (
	// ErrEmbedderNotConfigured is returned when text operations are called
	// but no embedder was configured, use the WithEmbedder option.
	ErrEmbedderNotConfigured = errors.New("agentvec: embedder not configured")

	// ErrEmptyText is returned when an empty text string is provided.
	ErrEmptyText = errors.New("agentvec: empty text provided")
)

// EmbedderFunc adapts a plain function into an Embedder with a fixed
// dimension.
type EmbedderFunc struct {
	Fn        func(ctx context.Context, text string) ([]float32, error)
	Dimension int
}

func (e EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.Fn(ctx, text)
}

func (e EmbedderFunc) Dim() int { return e.Dimension }

package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/CatchTheTornado/agentvec/internal/encoding"
)

const defaultTopK = 10

// SimilaritySearch scores every non-expired record against the query vector
// and returns the TopK highest-scoring records, descending by similarity.
// Ties break by creation time then ID, ascending, so results are
// deterministic. The scan is O(n) over live records; acceptable at the
// embedded scale this store targets.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("search", ErrStoreClosed)
	}
	if len(query) == 0 {
		return nil, wrapError("search", ErrEmptyQuery)
	}
	if err := encoding.ValidateVector(query); err != nil {
		return nil, wrapError("search", fmt.Errorf("%w: %v", ErrValidation, err))
	}
	if s.dim > 0 && len(query) != s.dim {
		return nil, wrapError("search", fmt.Errorf("%w: store expects %d, got %d", ErrDimensionMismatch, s.dim, len(query)))
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	candidates, err := s.scanLive(ctx, opts.SessionID)
	if err != nil {
		return nil, wrapError("search", err)
	}

	scored := make([]ScoredRecord, 0, len(candidates))
	for _, rec := range candidates {
		scored = append(scored, ScoredRecord{
			Record:     rec,
			Similarity: s.similarityFn(query, rec.Vector),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		if !scored[i].CreatedAt.Equal(scored[j].CreatedAt) {
			return scored[i].CreatedAt.Before(scored[j].CreatedAt)
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	s.touch(ctx, metaLastAccessed)
	return scored, nil
}

package retrieval

import (
	"context"

	"ai-tutor-be/pkg/store"

	"github.com/google/uuid"
)

// Index answers top-k passage queries scoped to a user's selected files.
// The pgvector-backed implementation lives in this package; a remote index
// speaking the same {query, fileIds, k} contract can replace it.
type Index interface {
	Search(ctx context.Context, userId uuid.UUID, fileIds []uuid.UUID, query string, k int) ([]store.Passage, error)
}

// Config encapsulates search parameters
type Config struct {
	ScoreThreshold float64
	TopK           int
}

// DefaultConfig returns default search configuration
func DefaultConfig() Config {
	return Config{
		ScoreThreshold: 0.35,
		TopK:           5,
	}
}

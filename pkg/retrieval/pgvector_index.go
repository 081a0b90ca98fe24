package retrieval

import (
	"context"
	"fmt"

	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/store"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// PgvectorIndex searches passage embeddings with cosine distance.
type PgvectorIndex struct {
	db       *gorm.DB
	embedder embedding.EmbeddingProvider
	cfg      Config
}

var _ Index = &PgvectorIndex{}

func NewPgvectorIndex(db *gorm.DB, embedder embedding.EmbeddingProvider, cfg Config) *PgvectorIndex {
	if cfg.TopK <= 0 {
		cfg = DefaultConfig()
	}
	return &PgvectorIndex{
		db:       db,
		embedder: embedder,
		cfg:      cfg,
	}
}

type passageRow struct {
	Document     string
	DocumentName string
	Similarity   float64
}

func (idx *PgvectorIndex) Search(ctx context.Context, userId uuid.UUID, fileIds []uuid.UUID, query string, k int) ([]store.Passage, error) {
	if k <= 0 {
		k = idx.cfg.TopK
	}

	embeddingRes, err := idx.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}
	queryVec := pgvector.NewVector(embeddingRes.Embedding.Values)

	var rows []passageRow
	q := idx.db.WithContext(ctx).
		Table("passage_embeddings").
		Select("passage_embeddings.document, documents.name AS document_name, 1 - (passage_embeddings.embedding_value <=> ?) AS similarity", queryVec).
		Joins("JOIN documents ON documents.id = passage_embeddings.document_id").
		Where("documents.user_id = ?", userId).
		Where("passage_embeddings.deleted_at IS NULL")
	if len(fileIds) > 0 {
		q = q.Where("passage_embeddings.document_id IN ?", fileIds)
	}
	err = q.Order("similarity DESC").
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("passage search: %w", err)
	}

	passages := make([]store.Passage, 0, len(rows))
	for _, row := range rows {
		if row.Similarity < idx.cfg.ScoreThreshold {
			continue
		}
		passages = append(passages, store.Passage{
			Text:         row.Document,
			Score:        row.Similarity,
			DocumentName: row.DocumentName,
		})
	}
	return passages, nil
}

package service

import (
	"context"

	"github.com/google/uuid"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/quota"
)

// quotaStore adapts the repository contract to the limiter's persistence
// interface.
type quotaStore struct {
	repo contract.QuotaRepository
}

func NewQuotaStore(repo contract.QuotaRepository) quota.Repository {
	return &quotaStore{repo: repo}
}

func (s *quotaStore) Load(ctx context.Context, userId uuid.UUID, utcDay string) (*quota.Record, error) {
	rec, err := s.repo.Load(ctx, userId, utcDay)
	if err != nil || rec == nil {
		return nil, err
	}
	return &quota.Record{
		UserId:           rec.UserId,
		UTCDay:           rec.UTCDay,
		Count:            rec.Count,
		BurstWindowStart: rec.BurstWindowStart,
		LastCallAt:       rec.LastCallAt,
	}, nil
}

func (s *quotaStore) Save(ctx context.Context, rec *quota.Record) error {
	return s.repo.Save(ctx, &entity.QuotaRecord{
		UserId:           rec.UserId,
		UTCDay:           rec.UTCDay,
		Count:            rec.Count,
		BurstWindowStart: rec.BurstWindowStart,
		LastCallAt:       rec.LastCallAt,
	})
}

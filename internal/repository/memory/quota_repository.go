package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/contract"
)

// QuotaRepository keeps quota records in process memory. Used when the
// service runs without Postgres (ALLOW_MEMORY_STORE); budgets then reset on
// restart, which the deployment accepts for local development.
type QuotaRepository struct {
	cache *cache.Cache
}

func NewQuotaRepository() contract.QuotaRepository {
	// Records for past days are useless after the UTC rollover; 48h TTL
	// keeps yesterday around for late reads, nothing more.
	return &QuotaRepository{cache: cache.New(48*time.Hour, time.Hour)}
}

func (r *QuotaRepository) key(userId uuid.UUID, utcDay string) string {
	return userId.String() + "/" + utcDay
}

func (r *QuotaRepository) Load(_ context.Context, userId uuid.UUID, utcDay string) (*entity.QuotaRecord, error) {
	if x, found := r.cache.Get(r.key(userId, utcDay)); found {
		rec := x.(entity.QuotaRecord)
		return &rec, nil
	}
	return nil, nil
}

func (r *QuotaRepository) Save(_ context.Context, rec *entity.QuotaRecord) error {
	r.cache.Set(r.key(rec.UserId, rec.UTCDay), *rec, cache.DefaultExpiration)
	return nil
}

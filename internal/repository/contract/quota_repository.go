package contract

import (
	"context"

	"github.com/google/uuid"

	"ai-tutor-be/internal/entity"
)

type QuotaRepository interface {
	Load(ctx context.Context, userId uuid.UUID, utcDay string) (*entity.QuotaRecord, error)
	Save(ctx context.Context, rec *entity.QuotaRecord) error
}

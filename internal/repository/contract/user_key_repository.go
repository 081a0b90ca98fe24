package contract

import (
	"context"

	"github.com/google/uuid"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/specification"
)

type UserKeyRepository interface {
	// Upsert replaces the (user, vendor) key in place.
	Upsert(ctx context.Context, key *entity.UserKey) error
	Delete(ctx context.Context, userId uuid.UUID, vendor string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.UserKey, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.UserKey, error)
}

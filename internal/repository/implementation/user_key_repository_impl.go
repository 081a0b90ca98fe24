package implementation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/mapper"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/specification"
)

type UserKeyRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.UserKeyMapper
}

func NewUserKeyRepository(db *gorm.DB) contract.UserKeyRepository {
	return &UserKeyRepositoryImpl{
		db:     db,
		mapper: mapper.NewUserKeyMapper(),
	}
}

func (r *UserKeyRepositoryImpl) Upsert(ctx context.Context, key *entity.UserKey) error {
	modelKey := r.mapper.ToModel(key)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "vendor"}},
		DoUpdates: clause.AssignmentColumns([]string{"secret", "updated_at"}),
	}).Create(modelKey).Error
	if err != nil {
		return err
	}
	*key = *r.mapper.ToEntity(modelKey)
	return nil
}

func (r *UserKeyRepositoryImpl) Delete(ctx context.Context, userId uuid.UUID, vendor string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND vendor = ?", userId, vendor).
		Delete(&model.UserKey{}).Error
}

func (r *UserKeyRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.UserKey, error) {
	var modelKey model.UserKey
	query := applySpecifications(r.db.WithContext(ctx), specs...)

	if err := query.First(&modelKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return r.mapper.ToEntity(&modelKey), nil
}

func (r *UserKeyRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.UserKey, error) {
	var modelKeys []*model.UserKey
	query := applySpecifications(r.db.WithContext(ctx), specs...)

	if err := query.Find(&modelKeys).Error; err != nil {
		return nil, err
	}

	keys := make([]*entity.UserKey, 0, len(modelKeys))
	for _, m := range modelKeys {
		keys = append(keys, r.mapper.ToEntity(m))
	}
	return keys, nil
}

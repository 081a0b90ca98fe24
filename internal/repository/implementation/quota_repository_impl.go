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
)

type QuotaRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.QuotaMapper
}

func NewQuotaRepository(db *gorm.DB) contract.QuotaRepository {
	return &QuotaRepositoryImpl{
		db:     db,
		mapper: mapper.NewQuotaMapper(),
	}
}

func (r *QuotaRepositoryImpl) Load(ctx context.Context, userId uuid.UUID, utcDay string) (*entity.QuotaRecord, error) {
	var rec model.QuotaRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND utc_day = ?", userId, utcDay).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&rec), nil
}

func (r *QuotaRepositoryImpl) Save(ctx context.Context, rec *entity.QuotaRecord) error {
	modelRec := r.mapper.ToModel(rec)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "utc_day"}},
		DoUpdates: clause.AssignmentColumns([]string{"count", "burst_window_start", "last_call_at", "updated_at"}),
	}).Create(modelRec).Error
}

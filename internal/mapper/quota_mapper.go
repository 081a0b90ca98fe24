package mapper

import (
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/model"
)

type QuotaMapper struct{}

func NewQuotaMapper() *QuotaMapper {
	return &QuotaMapper{}
}

func (m *QuotaMapper) ToEntity(r *model.QuotaRecord) *entity.QuotaRecord {
	if r == nil {
		return nil
	}
	return &entity.QuotaRecord{
		Id:               r.Id,
		UserId:           r.UserId,
		UTCDay:           r.UTCDay,
		Count:            r.Count,
		BurstWindowStart: r.BurstWindowStart,
		LastCallAt:       r.LastCallAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (m *QuotaMapper) ToModel(r *entity.QuotaRecord) *model.QuotaRecord {
	if r == nil {
		return nil
	}
	return &model.QuotaRecord{
		Id:               r.Id,
		UserId:           r.UserId,
		UTCDay:           r.UTCDay,
		Count:            r.Count,
		BurstWindowStart: r.BurstWindowStart,
		LastCallAt:       r.LastCallAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

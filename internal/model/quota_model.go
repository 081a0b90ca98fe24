package model

import (
	"time"

	"github.com/google/uuid"
)

type QuotaRecord struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_quota_user_day"`
	UTCDay           string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_quota_user_day"`
	Count            int       `gorm:"default:0"`
	BurstWindowStart time.Time
	LastCallAt       time.Time
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (QuotaRecord) TableName() string {
	return "quota_records"
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email           string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	FullName        string         `gorm:"type:varchar(255);not null"`
	UseAdminKeys    bool           `gorm:"default:false"`
	PreferredVendor string         `gorm:"type:varchar(50)"`
	Prefs           datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

type UserKey struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_keys_user_vendor"`
	Vendor    string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_user_keys_user_vendor"`
	Secret    string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserKey) TableName() string {
	return "user_keys"
}

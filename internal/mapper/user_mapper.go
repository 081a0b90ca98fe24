package mapper

import (
	"encoding/json"

	"gorm.io/datatypes"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/pkg/store"
)

type UserMapper struct{}

func NewUserMapper() *UserMapper {
	return &UserMapper{}
}

func (m *UserMapper) ToEntity(u *model.User) *entity.User {
	if u == nil {
		return nil
	}
	var prefs store.Preferences
	if len(u.Prefs) > 0 {
		// A malformed blob degrades to empty preferences rather than failing
		// the whole read.
		_ = json.Unmarshal(u.Prefs, &prefs)
	}
	return &entity.User{
		Id:              u.Id,
		Email:           u.Email,
		FullName:        u.FullName,
		UseAdminKeys:    u.UseAdminKeys,
		PreferredVendor: u.PreferredVendor,
		Prefs:           prefs,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (m *UserMapper) ToModel(u *entity.User) *model.User {
	if u == nil {
		return nil
	}
	prefs, _ := json.Marshal(u.Prefs)
	return &model.User{
		Id:              u.Id,
		Email:           u.Email,
		FullName:        u.FullName,
		UseAdminKeys:    u.UseAdminKeys,
		PreferredVendor: u.PreferredVendor,
		Prefs:           datatypes.JSON(prefs),
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

type UserKeyMapper struct{}

func NewUserKeyMapper() *UserKeyMapper {
	return &UserKeyMapper{}
}

func (m *UserKeyMapper) ToEntity(k *model.UserKey) *entity.UserKey {
	if k == nil {
		return nil
	}
	return &entity.UserKey{
		Id:        k.Id,
		UserId:    k.UserId,
		Vendor:    k.Vendor,
		Secret:    k.Secret,
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
	}
}

func (m *UserKeyMapper) ToModel(k *entity.UserKey) *model.UserKey {
	if k == nil {
		return nil
	}
	return &model.UserKey{
		Id:        k.Id,
		UserId:    k.UserId,
		Vendor:    k.Vendor,
		Secret:    k.Secret,
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
	}
}

package dto

import "time"

type PutUserKeysRequest struct {
	Keys            []UserKeyInputDTO `json:"keys" validate:"required,max=10,dive"`
	UseAdminKeys    *bool             `json:"use_admin_keys,omitempty"`
	PreferredVendor string            `json:"preferred_vendor,omitempty"`
}

type UserKeyInputDTO struct {
	Vendor string `json:"vendor" validate:"required,oneof=gemini ollama"`
	Secret string `json:"secret" validate:"required,min=8"`
}

// UserKeyDTO deliberately omits the secret; only its age is reported back.
type UserKeyDTO struct {
	Vendor    string    `json:"vendor"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PutUserKeysResponse struct {
	Keys            []UserKeyDTO `json:"keys"`
	UseAdminKeys    bool         `json:"use_admin_keys"`
	PreferredVendor string       `json:"preferred_vendor,omitempty"`
}

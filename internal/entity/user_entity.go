package entity

import (
	"time"

	"github.com/google/uuid"

	"ai-tutor-be/pkg/store"
)

type User struct {
	Id              uuid.UUID
	Email           string
	FullName        string
	UseAdminKeys    bool   // fall back to shared keys when no personal key exists
	PreferredVendor string // preferred model family, e.g. "gemini"
	Prefs           store.Preferences
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UserKey is one personal API credential. The secret never appears in logs
// or response payloads.
type UserKey struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Vendor    string
	Secret    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

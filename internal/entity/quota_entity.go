package entity

import (
	"time"

	"github.com/google/uuid"
)

// QuotaRecord is the per-(user, UTC day) usage counter that survives
// restarts. Burst state is in-memory only; a restart forgives a burst but
// never the daily budget.
type QuotaRecord struct {
	Id               uuid.UUID
	UserId           uuid.UUID
	UTCDay           string // "2006-01-02"
	Count            int
	BurstWindowStart time.Time
	LastCallAt       time.Time
	UpdatedAt        time.Time
}

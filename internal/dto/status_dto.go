package dto

import "time"

type BackendStatusDTO struct {
	Id           string    `json:"id"`
	Vendor       string    `json:"vendor"`
	Model        string    `json:"model"`
	Specialties  []string  `json:"specialties,omitempty"`
	Availability string    `json:"availability"`
	Reason       string    `json:"reason,omitempty"`
	Until        time.Time `json:"until,omitempty"`
	SuccessRate  float64   `json:"success_rate"`
	LatencyMs    int64     `json:"latency_ms"`
}

type QuotaStatusDTO struct {
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

type StatusResponse struct {
	Backends []BackendStatusDTO `json:"backends"`
	Quota    *QuotaStatusDTO    `json:"quota,omitempty"`
}

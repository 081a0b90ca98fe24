package service

import (
	"context"

	"github.com/google/uuid"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/pkg/quota"
	"ai-tutor-be/pkg/routing/registry"
)

type IStatusService interface {
	GetStatus(ctx context.Context, userId uuid.UUID) *dto.StatusResponse
}

type statusService struct {
	registry *registry.Registry
	limiter  *quota.Limiter
}

func NewStatusService(reg *registry.Registry, limiter *quota.Limiter) IStatusService {
	return &statusService{registry: reg, limiter: limiter}
}

func (s *statusService) GetStatus(ctx context.Context, userId uuid.UUID) *dto.StatusResponse {
	snapshots := s.registry.List()
	backends := make([]dto.BackendStatusDTO, 0, len(snapshots))
	for _, snap := range snapshots {
		specialties := make([]string, 0, len(snap.Specialties))
		for _, sp := range snap.Specialties {
			specialties = append(specialties, string(sp))
		}
		backends = append(backends, dto.BackendStatusDTO{
			Id:           snap.Id,
			Vendor:       snap.Vendor,
			Model:        snap.Model,
			Specialties:  specialties,
			Availability: string(snap.Availability),
			Reason:       snap.Reason,
			Until:        snap.Until,
			SuccessRate:  snap.SuccessRate,
			LatencyMs:    snap.LatencyEWMA.Milliseconds(),
		})
	}

	return &dto.StatusResponse{
		Backends: backends,
		Quota: &dto.QuotaStatusDTO{
			Remaining: s.limiter.Remaining(ctx, userId),
			ResetTime: s.limiter.ResetTime(),
		},
	}
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/internal/repository/unitofwork"
	"ai-tutor-be/pkg/envelope"
)

type IUserKeyService interface {
	PutKeys(ctx context.Context, userId uuid.UUID, req *dto.PutUserKeysRequest) (*dto.PutUserKeysResponse, error)
}

type userKeyService struct {
	uowFactory  unitofwork.RepositoryFactory
	credentials ICredentialService
	log         logger.ILogger
}

func NewUserKeyService(
	uowFactory unitofwork.RepositoryFactory,
	credentials ICredentialService,
	log logger.ILogger,
) IUserKeyService {
	return &userKeyService{
		uowFactory:  uowFactory,
		credentials: credentials,
		log:         log,
	}
}

// PutKeys replaces the caller's per-vendor keys and account flags in one
// transaction, then drops every cached credential so the next dispatch sees
// the new material immediately.
func (s *userKeyService) PutKeys(ctx context.Context, userId uuid.UUID, req *dto.PutUserKeysRequest) (*dto.PutUserKeysResponse, error) {
	if s.uowFactory == nil {
		return nil, serverutils.NewAppError(envelope.KindTransient, "key storage is unavailable in memory-store mode")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer uow.Rollback() //nolint:errcheck // no-op after commit

	keyRepo := uow.UserKeyRepository()
	for _, k := range req.Keys {
		key := &entity.UserKey{
			UserId: userId,
			Vendor: k.Vendor,
			Secret: k.Secret,
		}
		if err := keyRepo.Upsert(ctx, key); err != nil {
			return nil, fmt.Errorf("store key for %s: %w", k.Vendor, err)
		}
	}

	userRepo := uow.UserRepository()
	user, err := userRepo.FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user != nil {
		changed := false
		if req.UseAdminKeys != nil && user.UseAdminKeys != *req.UseAdminKeys {
			user.UseAdminKeys = *req.UseAdminKeys
			changed = true
		}
		if req.PreferredVendor != "" && user.PreferredVendor != req.PreferredVendor {
			user.PreferredVendor = req.PreferredVendor
			changed = true
		}
		if changed {
			if err := userRepo.Update(ctx, user); err != nil {
				return nil, fmt.Errorf("update user: %w", err)
			}
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.credentials.InvalidateUser(userId)

	// Vendor names only; secrets never travel back out.
	vendors := make([]string, 0, len(req.Keys))
	for _, k := range req.Keys {
		vendors = append(vendors, k.Vendor)
	}
	s.log.Info("keys", "user keys updated", map[string]interface{}{
		"user_id": userId.String(),
		"vendors": vendors,
	})

	return s.buildResponse(ctx, userId)
}

func (s *userKeyService) buildResponse(ctx context.Context, userId uuid.UUID) (*dto.PutUserKeysResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	keys, err := uow.UserKeyRepository().FindAll(ctx, specification.ByUserID{UserID: userId})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	resp := &dto.PutUserKeysResponse{}
	for _, k := range keys {
		resp.Keys = append(resp.Keys, dto.UserKeyDTO{Vendor: k.Vendor, UpdatedAt: k.UpdatedAt})
	}
	if user != nil {
		resp.UseAdminKeys = user.UseAdminKeys
		resp.PreferredVendor = user.PreferredVendor
	}
	return resp, nil
}

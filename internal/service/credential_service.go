package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/internal/repository/unitofwork"
	"ai-tutor-be/pkg/llm"
)

// ICredentialService resolves the secret used for a (user, vendor) call.
// Resolution order: personal key, then the shared admin key when the user
// opted in, then failure. Secrets never appear in logs.
type ICredentialService interface {
	Resolve(ctx context.Context, userId uuid.UUID, vendor string) (string, error)
	Invalidate(userId uuid.UUID, vendor string)
	InvalidateUser(userId uuid.UUID)
}

type credentialService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.CredentialCache
	cfg        *config.Config
	log        logger.ILogger
}

func NewCredentialService(
	uowFactory unitofwork.RepositoryFactory,
	cache *memory.CredentialCache,
	cfg *config.Config,
	log logger.ILogger,
) ICredentialService {
	return &credentialService{
		uowFactory: uowFactory,
		cache:      cache,
		cfg:        cfg,
		log:        log,
	}
}

func (s *credentialService) Resolve(ctx context.Context, userId uuid.UUID, vendor string) (string, error) {
	// Local vendors carry no secret; the base URL is the whole credential.
	if vendor == "ollama" {
		return s.cfg.Ai.OllamaBaseURL, nil
	}

	if secret, ok := s.cache.Get(userId.String(), vendor); ok {
		return secret, nil
	}

	// Memory-store deployments have no keys table; everyone rides the
	// shared keys.
	if s.uowFactory == nil {
		if shared := s.sharedKey(vendor); shared != "" {
			return shared, nil
		}
		return "", fmt.Errorf("no credential for vendor %s: %w", vendor, llm.ErrAuth)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	key, err := uow.UserKeyRepository().FindOne(ctx,
		specification.ByUserID{UserID: userId},
		specification.ByVendor{Vendor: vendor},
	)
	if err != nil {
		return "", fmt.Errorf("load user key: %w", err)
	}
	if key != nil && key.Secret != "" {
		s.cache.Set(userId.String(), vendor, key.Secret)
		return key.Secret, nil
	}

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if user != nil && user.UseAdminKeys {
		if shared := s.sharedKey(vendor); shared != "" {
			s.cache.Set(userId.String(), vendor, shared)
			return shared, nil
		}
	}

	s.log.Debug("credential", "no credential available", map[string]interface{}{
		"user_id": userId.String(),
		"vendor":  vendor,
	})
	return "", fmt.Errorf("no credential for vendor %s: %w", vendor, llm.ErrAuth)
}

func (s *credentialService) sharedKey(vendor string) string {
	switch vendor {
	case "gemini":
		return s.cfg.Keys.GoogleGemini
	default:
		return ""
	}
}

func (s *credentialService) Invalidate(userId uuid.UUID, vendor string) {
	s.cache.Invalidate(userId.String(), vendor)
}

func (s *credentialService) InvalidateUser(userId uuid.UUID) {
	s.cache.InvalidateUser(userId.String())
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-tutor-be/internal/constant"
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/envelope"
	"ai-tutor-be/pkg/fallback"
	"ai-tutor-be/pkg/routing/selector"
	"ai-tutor-be/pkg/store"
)

type IChatService interface {
	SendMessage(ctx context.Context, userId uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	Classify(ctx context.Context, req *dto.ClassifyRequest) *dto.ClassifyResponse
	Subjects(ctx context.Context) []*dto.SubjectDTO
}

type chatService struct {
	classifier *classifier.Classifier
	selector   *selector.Selector
	cascade    *fallback.Cascade
	sessions   *memory.SessionContextStore
	log        logger.ILogger
}

func NewChatService(
	cls *classifier.Classifier,
	sel *selector.Selector,
	cascade *fallback.Cascade,
	sessions *memory.SessionContextStore,
	log logger.ILogger,
) IChatService {
	return &chatService{
		classifier: cls,
		selector:   sel,
		cascade:    cascade,
		sessions:   sessions,
		log:        log,
	}
}

func (s *chatService) SendMessage(ctx context.Context, userId uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		// Rejected before any routing or quota debit.
		return nil, serverutils.NewAppError(envelope.KindPreconditionFailed, "query must not be empty")
	}

	q := s.buildQuery(ctx, userId, text, req)

	history := make([]string, 0, len(q.History))
	for _, m := range q.History {
		history = append(history, m.Content)
	}
	cls := s.classifier.Classify(ctx, q.Text, history)

	sel, err := s.selector.Select(q, cls, time.Now().UTC())
	if err != nil {
		return nil, s.selectionError(err)
	}

	s.log.Info("chat", "dispatching query", map[string]interface{}{
		"user_id": userId.String(),
		"subject": string(cls.Subject),
		"mode":    string(sel.Mode),
	})

	out := s.cascade.Run(ctx, q, cls, sel)
	if out.Envelope == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if out.RetryAfter > 0 {
			appErr := serverutils.NewAppError(envelope.KindQuotaExceeded, "rate limit reached; retry shortly")
			appErr.RetryAfter = out.RetryAfter
			return nil, appErr
		}
		return nil, serverutils.NewAppError(envelope.KindPermanent, "no response produced")
	}

	if out.Envelope.ErrorKind == envelope.KindNone {
		s.sessions.Append(ctx, userId.String(), req.SessionId,
			store.Message{Role: constant.ChatMessageRoleUser, Content: text},
			store.Message{Role: constant.ChatMessageRoleAssistant, Content: out.Envelope.Answer},
		)
	}

	return dto.FromEnvelope(out.Envelope), nil
}

// buildQuery normalizes the request into the immutable query value. The
// caller's mode tag is kept verbatim; the flags decide the actual mode.
func (s *chatService) buildQuery(ctx context.Context, userId uuid.UUID, text string, req *dto.SendMessageRequest) *store.Query {
	prefs := store.Preferences{
		ModelFamily: req.LLMProvider,
		Model:       req.Model,
		RagEnabled:  req.RagEnabled,
		DeepSearch:  req.DeepSearch,
		WebSearch:   req.WebSearch,
		Agent:       req.Agent,
		FileIds:     req.FileIds,
	}
	applyModeTag(&prefs, req.Mode)

	var history []store.Message
	if len(req.History) > 0 {
		for _, m := range req.History {
			history = append(history, store.Message{Role: m.Role, Content: m.Content})
		}
	} else if req.SessionId != "" {
		history = s.sessions.Recent(ctx, userId.String(), req.SessionId)
	}
	if len(history) > constant.HistoryWindowDefault {
		history = history[len(history)-constant.HistoryWindowDefault:]
	}

	sessionId, _ := uuid.Parse(req.SessionId)

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = constant.DefaultSystemPromptV1
	}

	return &store.Query{
		Id:               uuid.New(),
		UserId:           userId,
		SessionId:        sessionId,
		Text:             text,
		History:          history,
		RequestedModeTag: req.Mode,
		Prefs:            prefs,
		SystemPrompt:     systemPrompt,
		CreatedAt:        time.Now().UTC(),
	}
}

// applyModeTag folds the caller's mode string into the preference flags. The
// UI sends diverging names for the same thing; all of them land on one flag.
func applyModeTag(prefs *store.Preferences, tag string) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "rag":
		prefs.RagEnabled = true
	case "deep-research", "deep-search", "deep_search", "enhanced_deep_search":
		prefs.DeepSearch = true
	case "web-search", "web_search", "websearch":
		prefs.WebSearch = true
	case "agent":
		prefs.Agent = true
	}
}

func (s *chatService) selectionError(err error) error {
	switch {
	case errors.Is(err, selector.ErrRagWithoutFiles):
		return serverutils.NewAppError(envelope.KindPreconditionFailed, "rag mode requires file_ids")
	case errors.Is(err, selector.ErrConflictingFlags):
		return serverutils.NewAppError(envelope.KindPreconditionFailed, "conflicting mode flags; set at most one")
	default:
		return serverutils.NewAppError(envelope.KindPermanent, err.Error())
	}
}

func (s *chatService) Classify(ctx context.Context, req *dto.ClassifyRequest) *dto.ClassifyResponse {
	res := s.classifier.Classify(ctx, req.Query, req.History)
	return &dto.ClassifyResponse{
		Subject:    string(res.Subject),
		Confidence: res.Confidence,
		Scores:     res.Scores,
		Method:     res.Method,
	}
}

func (s *chatService) Subjects(_ context.Context) []*dto.SubjectDTO {
	configs := s.classifier.Subjects()
	out := make([]*dto.SubjectDTO, 0, len(configs))
	for _, c := range configs {
		out = append(out, &dto.SubjectDTO{
			Id:          string(c.Id),
			Description: c.Description,
			Keywords:    c.Keywords,
			Patterns:    c.Patterns,
			Priority:    c.Priority,
			Enabled:     c.Enabled,
		})
	}
	return out
}

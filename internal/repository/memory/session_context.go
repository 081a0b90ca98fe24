package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/store"
)

// SessionContextStore keeps the recent-turn window per (user, session) in
// Redis so follow-up requests without inline history still carry context.
// This is a rolling cache with a TTL, not a durable transcript.
type SessionContextStore struct {
	rdb    *redis.Client
	window int
	ttl    time.Duration
	log    logger.ILogger
}

func NewSessionContextStore(rdb *redis.Client, window int, log logger.ILogger) *SessionContextStore {
	return &SessionContextStore{
		rdb:    rdb,
		window: window,
		ttl:    24 * time.Hour,
		log:    log,
	}
}

func (s *SessionContextStore) key(userId, sessionId string) string {
	return "session:" + userId + ":" + sessionId
}

// Recent returns the stored window, oldest first. Redis trouble degrades to
// an empty window; a chat without context beats a failed chat.
func (s *SessionContextStore) Recent(ctx context.Context, userId, sessionId string) []store.Message {
	if s.rdb == nil || sessionId == "" {
		return nil
	}
	raw, err := s.rdb.LRange(ctx, s.key(userId, sessionId), 0, int64(s.window)-1).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("session", "failed to read session context", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil
	}

	msgs := make([]store.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- { // stored newest first
		var m store.Message
		if err := json.Unmarshal([]byte(raw[i]), &m); err == nil {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// Append pushes a turn and trims to the window.
func (s *SessionContextStore) Append(ctx context.Context, userId, sessionId string, msgs ...store.Message) {
	if s.rdb == nil || sessionId == "" {
		return
	}
	key := s.key(userId, sessionId)
	pipe := s.rdb.Pipeline()
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			continue
		}
		pipe.LPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, 0, int64(s.window)-1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("session", "failed to store session context", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

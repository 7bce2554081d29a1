package sessions

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	fieldAssistantName = "assistant_name"
	fieldOwnerName     = "owner_name"
)

// RedisStore keeps the session profile in a hash and the history in a list.
type RedisStore struct {
	redis      *redis.Client
	maxHistory int
}

func NewRedisStore(client *redis.Client, maxHistory int) *RedisStore {
	if client == nil {
		panic("sessions: redis client cannot be nil")
	}
	return &RedisStore{redis: client, maxHistory: maxHistory}
}

// Seed creates the session or replaces the profile of an existing one. The
// history is kept.
func (s *RedisStore) Seed(ctx context.Context, sessionID string, profile Profile) error {
	ctx, span := tracer.Start(ctx, "sessions.seed")
	defer span.End()

	err := s.redis.HSet(ctx, profileKey(sessionID),
		fieldAssistantName, profile.AssistantName,
		fieldOwnerName, profile.OwnerName,
	).Err()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("sessions: failed to seed session: %w", err)
	}
	return nil
}

func (s *RedisStore) Context(ctx context.Context, sessionID string) (Context, error) {
	ctx, span := tracer.Start(ctx, "sessions.load_context")
	defer span.End()

	profile, err := s.redis.HGetAll(ctx, profileKey(sessionID)).Result()
	if err != nil {
		span.RecordError(err)
		return Context{}, fmt.Errorf("sessions: failed to load profile: %w", err)
	}
	if len(profile) == 0 {
		return Context{}, fmt.Errorf("session %q: %w", sessionID, ErrUnknownSession)
	}

	history, err := s.redis.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		span.RecordError(err)
		return Context{}, fmt.Errorf("sessions: failed to load history: %w", err)
	}

	return Context{
		SessionID:     sessionID,
		AssistantName: profile[fieldAssistantName],
		OwnerName:     profile[fieldOwnerName],
		History:       history,
	}, nil
}

func (s *RedisStore) AppendHistory(ctx context.Context, sessionID string, text string) error {
	ctx, span := tracer.Start(ctx, "sessions.append_history")
	defer span.End()

	exists, err := s.redis.Exists(ctx, profileKey(sessionID)).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("sessions: failed to check session: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("session %q: %w", sessionID, ErrUnknownSession)
	}

	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, historyKey(sessionID), text)
	if s.maxHistory > 0 {
		pipe.LTrim(ctx, historyKey(sessionID), int64(-s.maxHistory), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("sessions: failed to append history: %w", err)
	}
	return nil
}

func profileKey(sessionID string) string {
	return fmt.Sprintf("session:%s:profile", sessionID)
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("session:%s:history", sessionID)
}

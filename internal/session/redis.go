package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"multichat-backend/internal/chat"
)

// RedisStore keeps each conversation as a JSON document with a sliding TTL.
// Expiry ends the session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func conversationKey(id uuid.UUID) string {
	return "conversation:" + id.String()
}

func (s *RedisStore) Create(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, id, chat.History{})
}

func (s *RedisStore) Load(ctx context.Context, id uuid.UUID) (chat.History, error) {
	data, err := s.client.GetEx(ctx, conversationKey(id), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, chat.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var history chat.History
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return history, nil
}

func (s *RedisStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, conversationKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Save overwrites the stored history. It fails with ErrConversationNotFound
// if the conversation expired while its turn was in flight.
func (s *RedisStore) Save(ctx context.Context, id uuid.UUID, history chat.History) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode conversation %s: %w", id, err)
	}

	ok, err := s.client.SetXX(ctx, conversationKey(id), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if !ok {
		return chat.ErrConversationNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, conversationKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) write(ctx context.Context, id uuid.UUID, history chat.History) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode conversation %s: %w", id, err)
	}
	if err := s.client.Set(ctx, conversationKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

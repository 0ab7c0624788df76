// internal/session/redis.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quote-engine/internal/common/database"
	"quote-engine/internal/models"
)

const keyPrefix = "quote:session:"

// RedisStore persists sessions in Redis with a sliding TTL. The TTL is the
// idle timeout after which a session is considered abandoned by expiry.
type RedisStore struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisStore(client *database.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, id string) (*models.ConversationSession, error) {
	data, err := r.client.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session get: %w", err)
	}

	var s models.ConversationSession
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *models.ConversationSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+s.ID, data, r.ttl); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, keyPrefix+id); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

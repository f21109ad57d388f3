package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/firm-roster/internal/domain"
)

// RedisConflictHistory keeps each guild's ring buffer in a capped Redis list,
// so several processes can share statistics.
type RedisConflictHistory struct {
	client redis.UniversalClient
	prefix string
	limit  int
}

// NewRedisConflictHistory builds the store; keys are "<prefix>conflicts:<guild>".
func NewRedisConflictHistory(client redis.UniversalClient, prefix string, limit int) *RedisConflictHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &RedisConflictHistory{client: client, prefix: prefix, limit: limit}
}

func (r *RedisConflictHistory) key(guildID string) string {
	return r.prefix + "conflicts:" + guildID
}

func (r *RedisConflictHistory) Append(ctx context.Context, guildID string, entry domain.ConflictHistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	key := r.key(guildID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-r.limit), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *RedisConflictHistory) List(ctx context.Context, guildID string) ([]domain.ConflictHistoryEntry, error) {
	raw, err := r.client.LRange(ctx, r.key(guildID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := make([]domain.ConflictHistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry domain.ConflictHistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *RedisConflictHistory) Clear(ctx context.Context, guildID string) error {
	return r.client.Del(ctx, r.key(guildID)).Err()
}

// RedisSyncState stores last-sync timestamps as unix milliseconds.
type RedisSyncState struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSyncState builds the store; keys are "<prefix>last_sync:<guild>".
func NewRedisSyncState(client redis.UniversalClient, prefix string) *RedisSyncState {
	return &RedisSyncState{client: client, prefix: prefix}
}

func (r *RedisSyncState) key(guildID string) string {
	return r.prefix + "last_sync:" + guildID
}

func (r *RedisSyncState) LastSync(ctx context.Context, guildID string) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, r.key(guildID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last sync: %w", err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last sync %q: %w", val, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (r *RedisSyncState) SetLastSync(ctx context.Context, guildID string, at time.Time) error {
	return r.client.Set(ctx, r.key(guildID), strconv.FormatInt(at.UnixMilli(), 10), 0).Err()
}

package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by a shared Redis client. The name is
// prefixed onto every key so independent stores never collide.
type RedisStore struct {
	client *redis.Client
	name   string
}

func NewRedisStore(client *redis.Client, name string) *RedisStore {
	return &RedisStore{client: client, name: name}
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("%s:%s", s.name, key)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", s.key(key), err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", s.key(key), err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", s.key(key), err)
	}
	return nil
}

// RedisTimeline stores each key's timestamps in a sorted set scored by
// unix nanoseconds. A random member suffix keeps concurrent appends at
// the same instant from collapsing into one entry.
type RedisTimeline struct {
	client *redis.Client
	name   string
}

func NewRedisTimeline(client *redis.Client, name string) *RedisTimeline {
	return &RedisTimeline{client: client, name: name}
}

func (t *RedisTimeline) key(key string) string {
	return fmt.Sprintf("%s:%s", t.name, key)
}

// timelineMember builds a unique sorted-set member for one appended
// timestamp. Two appends at the same nanosecond must not collapse into
// one entry, so the timestamp is paired with random bytes.
func timelineMember(at time.Time) string {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("%d-%d", at.UnixNano(), time.Now().UnixNano())
	}
	return fmt.Sprintf("%d-%s", at.UnixNano(), hex.EncodeToString(suffix))
}

func (t *RedisTimeline) Append(ctx context.Context, key string, at time.Time, retention time.Duration) error {
	k := t.key(key)
	member := timelineMember(at)

	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixNano()), Member: member})
	pipe.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(at.Add(-retention).UnixNano(), 10))
	pipe.Expire(ctx, k, retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to timeline %s: %w", k, err)
	}
	return nil
}

func (t *RedisTimeline) CountSince(ctx context.Context, key string, since time.Time) (int, error) {
	count, err := t.client.ZCount(ctx, t.key(key), strconv.FormatInt(since.UnixNano(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count timeline %s: %w", t.key(key), err)
	}
	return int(count), nil
}

func (t *RedisTimeline) OldestSince(ctx context.Context, key string, since time.Time) (time.Time, bool, error) {
	entries, err := t.client.ZRangeByScoreWithScores(ctx, t.key(key), &redis.ZRangeBy{
		Min:   strconv.FormatInt(since.UnixNano(), 10),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read timeline %s: %w", t.key(key), err)
	}
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, int64(entries[0].Score)), true, nil
}

package profile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gzhole/fortress/internal/policy"
)

const (
	keyPrefix      = "fortress:profile:"
	fieldTotal     = "total"
	fieldLastSeen  = "last_seen"
	categoryPrefix = "cat:"
)

// Connect dials Redis and pings it, retrying with exponential backoff.
func Connect(ctx context.Context, addr, password string, db, maxRetries int, log zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              db,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
	})

	if maxRetries <= 0 {
		maxRetries = 1
	}

	var err error
	for i := range maxRetries {
		if i > 0 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			log.Info().Dur("backoff", backoff).Msg("waiting before redis retry")
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = client.Ping(ctx).Err()
		if err == nil {
			log.Debug().Str("addr", addr).Int("attempts", i+1).Msg("redis connected")
			return client, nil
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("redis ping failed")
	}

	_ = client.Close()
	return nil, fmt.Errorf("connecting to redis at %s after %d attempts: %w", addr, maxRetries, err)
}

// RedisStore keeps each profile in a hash, so several processes can share
// counters. Keys expire ttl after the last recorded attempt.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func profileKey(userID string) string {
	return keyPrefix + userID
}

func (s *RedisStore) RecordAttempt(ctx context.Context, userID string, categories []policy.Category) (Profile, error) {
	if userID == "" {
		return Profile{}, errEmptyUserID
	}
	key := profileKey(userID)

	var all *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		seen := map[policy.Category]bool{}
		for _, c := range categories {
			if seen[c] {
				continue
			}
			seen[c] = true
			pipe.HIncrBy(ctx, key, categoryPrefix+string(c), 1)
		}
		pipe.HIncrBy(ctx, key, fieldTotal, 1)
		pipe.HSet(ctx, key, fieldLastSeen, s.now().UTC().Unix())
		pipe.Expire(ctx, key, s.ttl)
		all = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return Profile{}, fmt.Errorf("recording attempt for %s: %w", userID, err)
	}

	return parseHash(userID, all.Val())
}

func (s *RedisStore) Get(ctx context.Context, userID string) (Profile, error) {
	fields, err := s.client.HGetAll(ctx, profileKey(userID)).Result()
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return Empty(userID), nil
	}
	return parseHash(userID, fields)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// parseHash rebuilds a Profile from its stored hash fields.
func parseHash(userID string, fields map[string]string) (Profile, error) {
	p := Empty(userID)
	for field, raw := range fields {
		switch {
		case field == fieldTotal:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Profile{}, fmt.Errorf("profile %s: bad %s %q: %w", userID, field, raw, err)
			}
			p.TotalAttempts = n
		case field == fieldLastSeen:
			sec, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return Profile{}, fmt.Errorf("profile %s: bad %s %q: %w", userID, field, raw, err)
			}
			p.LastSeen = time.Unix(sec, 0).UTC()
		case strings.HasPrefix(field, categoryPrefix):
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Profile{}, fmt.Errorf("profile %s: bad %s %q: %w", userID, field, raw, err)
			}
			p.AttemptsByCategory[policy.Category(strings.TrimPrefix(field, categoryPrefix))] = n
		}
	}
	p.RiskLevel = DeriveRisk(p.TotalAttempts, len(p.AttemptsByCategory))
	return p, nil
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusbot/onboard/internal/models"
	redis "github.com/redis/go-redis/v9"
)

const (
	// expiredGrace keeps a challenge readable past its expiry so validation
	// can still report it as expired rather than missing.
	expiredGrace = time.Hour
	// maxTxRetries bounds optimistic retries when a watched key changes.
	maxTxRetries = 10
	scanBatch    = 100
)

// ErrConflict is returned when a watched challenge kept changing under us.
var ErrConflict = errors.New("store: concurrent update conflict")

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Redis is a Store shared by every bot process pointing at the same server.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return NewRedisFromClient(client, opts.Prefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "onboard:"
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) challengeKey(userID string) string {
	return r.prefix + "challenge:" + userID
}

func (r *Redis) sessionKey(userID string) string {
	return r.prefix + "session:" + userID
}

func challengeTTL(c *models.Challenge) time.Duration {
	ttl := time.Until(c.ExpiresAt)
	if ttl < 0 {
		ttl = 0
	}
	return ttl + expiredGrace
}

func (r *Redis) PutChallenge(ctx context.Context, c *models.Challenge) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding challenge: %w", err)
	}
	return r.client.Set(ctx, r.challengeKey(c.UserID), data, challengeTTL(c)).Err()
}

func (r *Redis) GetChallenge(ctx context.Context, userID string) (*models.Challenge, error) {
	var c models.Challenge
	if err := r.getJSON(ctx, r.challengeKey(userID), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateChallenge uses WATCH/MULTI, so fn may run more than once when the
// key changes between read and write.
func (r *Redis) UpdateChallenge(ctx context.Context, userID string, fn ChallengeFunc) error {
	key := r.challengeKey(userID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var c models.Challenge
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("decoding challenge: %w", err)
		}

		action := fn(&c)
		if action == Keep {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if action == Delete {
				pipe.Del(ctx, key)
				return nil
			}
			data, err := json.Marshal(&c)
			if err != nil {
				return fmt.Errorf("encoding challenge: %w", err)
			}
			pipe.Set(ctx, key, data, challengeTTL(&c))
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (r *Redis) DeleteChallenge(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.challengeKey(userID)).Err()
}

func (r *Redis) PutSession(ctx context.Context, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return r.client.Set(ctx, r.sessionKey(s.UserID), data, 0).Err()
}

func (r *Redis) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	var s models.Session
	if err := r.getJSON(ctx, r.sessionKey(userID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Redis) DeleteSession(ctx context.Context, userID string) error {
	n, err := r.client.Del(ctx, r.sessionKey(userID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) Sweep(ctx context.Context, p SweepPolicy) (SweepResult, error) {
	var res SweepResult

	live := make(map[string]bool)
	err := r.scan(ctx, r.prefix+"challenge:*", func(key string) error {
		userID := strings.TrimPrefix(key, r.prefix+"challenge:")
		var c models.Challenge
		if err := r.getJSON(ctx, key, &c); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if !c.Expired(p.Now) {
			live[userID] = true
			return nil
		}
		n, err := r.client.Del(ctx, key).Result()
		if err != nil {
			return err
		}
		res.Challenges += int(n)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("sweeping challenges: %w", err)
	}

	err = r.scan(ctx, r.prefix+"session:*", func(key string) error {
		var s models.Session
		if err := r.getJSON(ctx, key, &s); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if !orphaned(&s, live[s.UserID], p) {
			return nil
		}
		n, err := r.client.Del(ctx, key).Result()
		if err != nil {
			return err
		}
		res.Sessions += int(n)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("sweeping sessions: %w", err)
	}

	return res, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) getJSON(ctx context.Context, key string, v any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (r *Redis) scan(ctx context.Context, pattern string, fn func(key string) error) error {
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

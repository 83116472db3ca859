package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-opening-prep/internal/domain"
)

const recentKey = "practice:recent"

func sessionKey(id string) string { return "practice:session:" + strings.TrimSpace(id) }

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Save(ctx context.Context, rec domain.PracticeRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return fmt.Errorf("practice record without session id")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal practice record: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(rec.SessionID), raw, 0)
		p.LRem(ctx, recentKey, 0, rec.SessionID)
		p.LPush(ctx, recentKey, rec.SessionID)
		p.LTrim(ctx, recentKey, 0, maxKeptSessions-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save practice record: %w", err)
	}
	return nil
}

// Recent returns the newest records first.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]domain.PracticeRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	ids, err := s.rdb.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list practice sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load practice sessions: %w", err)
	}
	out := make([]domain.PracticeRecord, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec domain.PracticeRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

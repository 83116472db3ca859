package history

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-opening-prep/internal/domain"
)

const (
	defaultRecentLimit = 10
	maxKeptSessions    = 200
)

// Store is the practice log.
type Store interface {
	Save(ctx context.Context, rec domain.PracticeRecord) error
	Recent(ctx context.Context, limit int) ([]domain.PracticeRecord, error)
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) Save(context.Context, domain.PracticeRecord) error { return nil }
func (Nop) Recent(context.Context, int) ([]domain.PracticeRecord, error) {
	return nil, nil
}
func (Nop) Close() error { return nil }

// Open picks the backend from the configured URLs. A backend that cannot be
// reached is logged and replaced by Nop.
func Open(ctx context.Context, redisURL, databaseURL string, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case strings.TrimSpace(redisURL) != "":
		s, err := NewRedisStore(ctx, redisURL)
		if err != nil {
			logger.Warn("history_unavailable", zap.String("backend", "redis"), zap.Error(err))
			return Nop{}
		}
		return s
	case strings.TrimSpace(databaseURL) != "":
		s, err := NewPostgresStore(ctx, databaseURL)
		if err != nil {
			logger.Warn("history_unavailable", zap.String("backend", "postgres"), zap.Error(err))
			return Nop{}
		}
		return s
	}
	return Nop{}
}

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-opening-prep/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS practice_sessions (
	session_id  TEXT PRIMARY KEY,
	color       TEXT NOT NULL,
	line_name   TEXT NOT NULL,
	moves_san   JSONB NOT NULL,
	deviations  INTEGER NOT NULL,
	end_reason  TEXT NOT NULL,
	eco_code    TEXT NOT NULL DEFAULT '',
	eco_title   TEXT NOT NULL DEFAULT '',
	eval        DOUBLE PRECISION,
	top_moves   JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL
)`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(pingCtx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create practice_sessions: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec domain.PracticeRecord) error {
	args, err := insertArgs(rec)
	if err != nil {
		return err
	}
	const q = `INSERT INTO practice_sessions (
		session_id, color, line_name, moves_san, deviations, end_reason,
		eco_code, eco_title, eval, top_moves, started_at, ended_at, duration_ms
	) VALUES ($1,$2,$3,$4::jsonb,$5,$6,$7,$8,$9,$10::jsonb,$11,$12,$13)
	ON CONFLICT (session_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert practice session: %w", err)
	}
	return nil
}

func insertArgs(rec domain.PracticeRecord) ([]any, error) {
	if strings.TrimSpace(rec.SessionID) == "" {
		return nil, fmt.Errorf("practice record without session id")
	}
	moves := rec.Moves
	if moves == nil {
		moves = []string{}
	}
	top := rec.TopMoves
	if top == nil {
		top = []string{}
	}
	movesRaw, err := json.Marshal(moves)
	if err != nil {
		return nil, fmt.Errorf("marshal moves: %w", err)
	}
	topRaw, err := json.Marshal(top)
	if err != nil {
		return nil, fmt.Errorf("marshal top moves: %w", err)
	}
	var eval sql.NullFloat64
	if rec.Eval != nil {
		eval = sql.NullFloat64{Float64: *rec.Eval, Valid: true}
	}
	return []any{
		rec.SessionID,
		rec.Color,
		rec.LineName,
		movesRaw,
		rec.Deviations,
		rec.EndReason,
		rec.ECOCode,
		rec.ECOTitle,
		eval,
		topRaw,
		rec.StartedAt,
		rec.EndedAt,
		rec.Duration().Milliseconds(),
	}, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]domain.PracticeRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	const q = `SELECT session_id, color, line_name, moves_san, deviations, end_reason,
		eco_code, eco_title, eval, top_moves, started_at, ended_at
		FROM practice_sessions ORDER BY ended_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("select practice sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PracticeRecord, 0, limit)
	for rows.Next() {
		var (
			rec      domain.PracticeRecord
			movesRaw []byte
			topRaw   []byte
			eval     sql.NullFloat64
		)
		if err := rows.Scan(&rec.SessionID, &rec.Color, &rec.LineName, &movesRaw, &rec.Deviations,
			&rec.EndReason, &rec.ECOCode, &rec.ECOTitle, &eval, &topRaw, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("scan practice session: %w", err)
		}
		_ = json.Unmarshal(movesRaw, &rec.Moves)
		_ = json.Unmarshal(topRaw, &rec.TopMoves)
		if eval.Valid {
			v := eval.Float64
			rec.Eval = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate practice sessions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

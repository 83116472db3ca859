package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/park285/cheese-opening-prep/internal/domain"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	s, err := NewRedisStore(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func sampleRecord(id string, ended time.Time) domain.PracticeRecord {
	eval := 0.35
	return domain.PracticeRecord{
		SessionID:  id,
		Color:      "white",
		LineName:   "queens gambit",
		Moves:      []string{"d4", "d5", "c4"},
		Deviations: 1,
		EndReason:  "opponent_book_exhausted",
		ECOCode:    "D06",
		ECOTitle:   "Queen's Gambit",
		Eval:       &eval,
		TopMoves:   []string{"e6", "c6"},
		StartedAt:  ended.Add(-2 * time.Minute),
		EndedAt:    ended,
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	if err := s.Save(ctx, sampleRecord("a", now)); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := s.Save(ctx, sampleRecord("b", now.Add(time.Minute))); err != nil {
		t.Fatalf("Save b: %v", err)
	}

	got, err := s.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "b" || got[1].SessionID != "a" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].Eval == nil || *got[1].Eval != 0.35 || got[1].ECOCode != "D06" || len(got[1].Moves) != 3 {
		t.Fatalf("record not preserved: %+v", got[1])
	}
	if got[1].Duration() != 2*time.Minute {
		t.Fatalf("duration %v", got[1].Duration())
	}
}

func TestRedisStoreCapsIndexAndDedupes(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < maxKeptSessions+5; i++ {
		if err := s.Save(ctx, sampleRecord(fmt.Sprintf("s%d", i), now)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := s.Save(ctx, sampleRecord("s204", now)); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	ids, err := mr.List(recentKey)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != maxKeptSessions || ids[0] != "s204" || ids[1] != "s203" {
		t.Fatalf("unexpected index: len=%d head=%v", len(ids), ids[:2])
	}
}

func TestRedisStoreRejectsMissingID(t *testing.T) {
	s, _ := newTestRedisStore(t)
	if err := s.Save(context.Background(), domain.PracticeRecord{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://:secret@localhost:6380/3")
	if err != nil {
		t.Fatalf("parseRedisURL: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 3 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if _, err := parseRedisURL("http://localhost"); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestOpenFallsBackToNop(t *testing.T) {
	if _, ok := Open(context.Background(), "", "", zap.NewNop()).(Nop); !ok {
		t.Fatalf("expected Nop without backends")
	}
	if _, ok := Open(context.Background(), "http://bad", "", nil).(Nop); !ok {
		t.Fatalf("expected Nop for a bad redis url")
	}
}

func TestOpenRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	s := Open(context.Background(), "redis://"+mr.Addr(), "", nil)
	defer s.Close()
	if _, ok := s.(*RedisStore); !ok {
		t.Fatalf("expected redis store, got %T", s)
	}
}

func TestInsertArgs(t *testing.T) {
	rec := sampleRecord("x", time.Now())
	rec.Eval = nil
	rec.TopMoves = nil
	args, err := insertArgs(rec)
	if err != nil {
		t.Fatalf("insertArgs: %v", err)
	}
	if len(args) != 13 || string(args[9].([]byte)) != "[]" {
		t.Fatalf("unexpected args: %v", args)
	}
	if ms := args[12].(int64); ms != (2 * time.Minute).Milliseconds() {
		t.Fatalf("duration ms %d", ms)
	}
	if _, err := insertArgs(domain.PracticeRecord{}); err == nil {
		t.Fatalf("expected missing id error")
	}
}

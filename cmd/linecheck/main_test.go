package main

import (
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
	"github.com/park285/cheese-opening-prep/internal/chess/lines"
	"github.com/park285/cheese-opening-prep/internal/chess/openingbook"
	"github.com/park285/cheese-opening-prep/internal/domain"
)

type countingProbe struct{ n int }

func (p countingProbe) AllMoves(*board.Position) ([]openingbook.Entry, error) {
	return make([]openingbook.Entry, p.n), nil
}

func TestCheckAllReportsIllegalToken(t *testing.T) {
	raw := []string{"$good e4 e5 nf3 [w]", "$bad d4 d4 [b]", "no such line"}
	reports := checkAll(raw, lines.Known{}, countingProbe{n: 2}, countingProbe{n: 1})
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	good, bad, unknown := reports[0], reports[1], reports[2]
	if good.Name != "good" || good.Illegal != "" || good.Plies != 3 || good.SideToMove != board.Black {
		t.Fatalf("good line: %+v", good)
	}
	if good.InPlayer != 2 || good.InOpponent != 1 {
		t.Fatalf("book coverage: %+v", good)
	}
	if bad.Color != board.Black || bad.Illegal != "d4" || bad.Plies != 1 {
		t.Fatalf("bad line: %+v", bad)
	}
	if unknown.Illegal == "" {
		t.Fatalf("unresolved entry should be reported: %+v", unknown)
	}

	var sb strings.Builder
	if failed := writeReports(&sb, reports); failed != 2 {
		t.Fatalf("failed count %d", failed)
	}
	if !strings.Contains(sb.String(), "illegal at d4") {
		t.Fatalf("report: %s", sb.String())
	}
}

func TestCheckAllBothColours(t *testing.T) {
	reports := checkAll([]string{"$both d4 d5"}, nil, countingProbe{}, countingProbe{})
	if len(reports) != 2 || reports[0].Color != board.White || reports[1].Color != board.Black {
		t.Fatalf("unexpected reports: %+v", reports)
	}
}

func TestWriteRecent(t *testing.T) {
	var sb strings.Builder
	writeRecent(&sb, nil)
	if sb.Len() != 0 {
		t.Fatalf("expected no output without records, got %q", sb.String())
	}

	ended := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	writeRecent(&sb, []domain.PracticeRecord{{
		Color:      "white",
		LineName:   "queens gambit",
		Moves:      []string{"d4", "d5", "c4"},
		Deviations: 1,
		EndReason:  "opponent_book_exhausted",
		ECOCode:    "D06",
		EndedAt:    ended,
	}})
	out := sb.String()
	for _, want := range []string{"recent practice:", "2026-10-14 09:30", "queens gambit", "D06", "plies=3", "deviations=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
	"github.com/park285/cheese-opening-prep/internal/chess/lines"
	"github.com/park285/cheese-opening-prep/internal/chess/openingbook"
	"github.com/park285/cheese-opening-prep/internal/config"
	"github.com/park285/cheese-opening-prep/internal/domain"
	"github.com/park285/cheese-opening-prep/internal/history"
	"github.com/park285/cheese-opening-prep/internal/obslog"
)

const recentSessions = 10

// linecheck replays every configured line and reports whether it is legal
// and still covered by both books at its final position, followed by the
// most recent practice sessions when a history backend is configured.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

type bookProbe interface {
	AllMoves(pos *board.Position) ([]openingbook.Entry, error)
}

type report struct {
	Color      board.Color
	Name       string
	Plies      int
	Illegal    string
	SideToMove board.Color
	InPlayer   int
	InOpponent int
	FinalFEN   string
}

func run(args []string, out io.Writer) int {
	logger, closeLog, err := obslog.New(obslog.OptionsFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		return 1
	}
	defer closeLog()

	path := config.PathFromEnv()
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		path = args[0]
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("config_load_failed", zap.String("path", path), zap.Error(err))
		return 1
	}

	playerBook, err := openingbook.Open("player book", "my_book", cfg.MyBook)
	if err != nil {
		logger.Error("book_open_failed", zap.Error(err))
		return 1
	}
	defer playerBook.Close()
	oppBook, err := openingbook.Open("opponent book", "opp_book", cfg.OppBook)
	if err != nil {
		logger.Error("book_open_failed", zap.Error(err))
		return 1
	}
	defer oppBook.Close()

	known, err := lines.LoadKnown(cfg.KnownLines)
	if err != nil {
		logger.Warn("known_lines_unavailable", zap.String("path", cfg.KnownLines), zap.Error(err))
		known = lines.Known{}
	}

	reports := checkAll(cfg.Lines, known, playerBook, oppBook)
	failed := writeReports(out, reports)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store := history.Open(ctx, cfg.History.RedisURL, cfg.History.DatabaseURL, logger)
	defer store.Close()
	recent, err := store.Recent(ctx, recentSessions)
	if err != nil {
		logger.Warn("history_read_failed", zap.Error(err))
	}
	writeRecent(out, recent)

	if failed > 0 {
		return 2
	}
	return 0
}

// checkAll reports every raw entry in config order, once per colour it
// applies to. Entries that do not resolve are reported as illegal.
func checkAll(raw []string, known lines.Known, player, opponent bookProbe) []report {
	var out []report
	for _, entry := range raw {
		spec, err := lines.ParseSpec(entry, known)
		if err != nil {
			out = append(out, report{Name: strings.TrimSpace(entry), Illegal: err.Error()})
			continue
		}
		for _, color := range []board.Color{board.White, board.Black} {
			if (color == board.White && !spec.White) || (color == board.Black && !spec.Black) {
				continue
			}
			out = append(out, checkLine(color, spec.Line, player, opponent))
		}
	}
	return out
}

func checkLine(color board.Color, line lines.Line, player, opponent bookProbe) report {
	r := report{Color: color, Name: line.Name}
	pos, err := board.New("")
	if err != nil {
		r.Illegal = err.Error()
		return r
	}
	for _, san := range line.Moves {
		if err := pos.ApplySAN(san); err != nil {
			r.Illegal = san
			break
		}
		r.Plies++
	}
	r.SideToMove = pos.SideToMove()
	r.FinalFEN = pos.FEN()
	if entries, err := player.AllMoves(pos); err == nil {
		r.InPlayer = len(entries)
	}
	if entries, err := opponent.AllMoves(pos); err == nil {
		r.InOpponent = len(entries)
	}
	return r
}

func writeReports(w io.Writer, reports []report) int {
	failed := 0
	if len(reports) == 0 {
		fmt.Fprintln(w, "no lines configured")
		return 0
	}
	for _, r := range reports {
		status := "ok"
		if r.Illegal != "" {
			status = "illegal at " + r.Illegal
			failed++
		}
		fmt.Fprintf(w, "[%s] %-24s %-18s plies=%d to_move=%s player_book=%d opponent_book=%d\n",
			r.Color, r.Name, status, r.Plies, r.SideToMove, r.InPlayer, r.InOpponent)
	}
	return failed
}

func writeRecent(w io.Writer, recs []domain.PracticeRecord) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintln(w, "recent practice:")
	for _, rec := range recs {
		opening := rec.ECOCode
		if opening == "" {
			opening = "-"
		}
		fmt.Fprintf(w, "  %s %-5s %-24s %-4s plies=%d deviations=%d %s\n",
			rec.EndedAt.Format("2006-01-02 15:04"), rec.Color, rec.LineName, opening,
			len(rec.Moves), rec.Deviations, rec.EndReason)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
	"github.com/park285/cheese-opening-prep/internal/chess/lines"
	"github.com/park285/cheese-opening-prep/internal/chess/openingbook"
	"github.com/park285/cheese-opening-prep/internal/chess/uci"
	"github.com/park285/cheese-opening-prep/internal/config"
	"github.com/park285/cheese-opening-prep/internal/history"
	"github.com/park285/cheese-opening-prep/internal/msgcat"
	"github.com/park285/cheese-opening-prep/internal/obslog"
	"github.com/park285/cheese-opening-prep/internal/render"
	"github.com/park285/cheese-opening-prep/internal/trainer"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, closeLog, err := obslog.New(obslog.OptionsFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// unblocks a pending prompt so the session can tear down
		<-ctx.Done()
		os.Stdin.Close()
	}()

	cfgPath := config.PathFromEnv()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("config_load_failed", zap.String("path", cfgPath), zap.Error(err))
		return 1
	}

	cat, err := msgcat.New(strings.TrimSpace(os.Getenv("MESSAGES_DIR")))
	if err != nil {
		logger.Warn("messages_override_failed", zap.Error(err))
		cat = msgcat.Default()
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	prompter := trainer.NewConsolePrompter(os.Stdin, os.Stdout)

	playerBook, err := openingbook.Open("player book", "my_book", cfg.MyBook)
	if err != nil {
		logBookFailure(logger, err)
		return 1
	}
	oppBook, err := openingbook.Open("opponent book", "opp_book", cfg.OppBook)
	if err != nil {
		logBookFailure(logger, err)
		_ = playerBook.Close()
		return 1
	}

	color, err := askColor(prompter, cat, rnd)
	if err != nil {
		logger.Info("color_prompt_aborted", zap.Error(err))
		_ = playerBook.Close()
		_ = oppBook.Close()
		return 0
	}
	prompter.Say(cat.Text("color.chosen", map[string]any{"Color": color.String()}))

	line := lines.Line{Name: lines.StartingPositionName}
	if cfg.UseLines {
		known, err := lines.LoadKnown(cfg.KnownLines)
		if err != nil {
			logger.Warn("known_lines_unavailable", zap.String("path", cfg.KnownLines), zap.Error(err))
			known = lines.Known{}
		}
		reg := lines.Build(cfg.Lines, known, logger)
		line = reg.Pick(color, rnd)
	}

	var engine trainer.Engine
	if cfg.AnalysisEnabled() {
		sess, err := uci.NewSession(ctx, cfg.Engine, uci.Options{
			Threads: cfg.Analysis.Threads,
			HashMB:  cfg.Analysis.HashMB,
			MultiPV: cfg.Analysis.Lines,
		}, logger)
		if err != nil {
			logger.Warn("engine_unavailable", zap.String("key", "engine"), zap.String("path", cfg.Engine), zap.Error(err))
		} else {
			engine = sess
		}
	}

	styles, err := openingbook.LoadStyles(cfg.OpeningStyles)
	if err != nil {
		logger.Warn("opening_styles_unavailable", zap.String("path", cfg.OpeningStyles), zap.Error(err))
		styles = nil
	}

	store := history.Open(ctx, cfg.History.RedisURL, cfg.History.DatabaseURL, logger)
	defer store.Close()

	renderers := render.Multi{render.NewTerminal(os.Stdout)}
	if cfg.BoardImage != "" {
		renderers = append(renderers, render.NewPNG(cfg.BoardImage))
	}

	session, err := trainer.New(trainer.Options{
		Color:              color,
		Line:               line,
		PlayerBook:         playerBook,
		OpponentBook:       oppBook,
		Engine:             engine,
		Renderer:           renderers,
		Recorder:           store,
		Styles:             styles,
		Prompter:           prompter,
		Catalog:            cat,
		Logger:             logger,
		Rand:               rnd,
		DeviationThreshold: cfg.DeviationThreshold,
		Analysis: trainer.AnalysisOptions{
			Depth:     cfg.Analysis.Depth,
			Lines:     cfg.Analysis.Lines,
			Threshold: cfg.Analysis.Threshold,
			Ratio:     cfg.Analysis.Ratio,
		},
	})
	if err != nil {
		logger.Error("session_init_failed", zap.String("line", line.Name), zap.Error(err))
		return 1
	}
	defer session.Close()

	if _, err := session.Run(ctx); err != nil && !errors.Is(err, trainer.ErrQuit) && !errors.Is(err, context.Canceled) {
		logger.Error("session_failed", zap.Error(err))
		return 1
	}
	return 0
}

func logBookFailure(logger *zap.Logger, err error) {
	var oe *openingbook.OpenError
	if errors.As(err, &oe) {
		logger.Error("book_open_failed",
			zap.String("role", oe.Role),
			zap.String("key", oe.Key),
			zap.String("path", oe.Path),
			zap.Error(oe.Err),
		)
		return
	}
	logger.Error("book_open_failed", zap.Error(err))
}

func askColor(p trainer.Prompter, cat *msgcat.Catalog, rnd *rand.Rand) (board.Color, error) {
	for {
		answer, err := p.Ask(cat.Text("prompt.color", nil))
		if err != nil {
			if errors.Is(err, io.EOF) {
				return board.White, trainer.ErrQuit
			}
			return board.White, err
		}
		if trainer.ParseCommand(answer) == trainer.CmdQuit {
			return board.White, trainer.ErrQuit
		}
		color, err := board.ParseColorChoice(answer, rnd)
		if err == nil {
			return color, nil
		}
		p.Say(cat.Text("color.invalid", nil))
	}
}

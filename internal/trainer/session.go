package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	chesslib "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
	"github.com/park285/cheese-opening-prep/internal/chess/lines"
	"github.com/park285/cheese-opening-prep/internal/chess/openingbook"
	"github.com/park285/cheese-opening-prep/internal/chess/uci"
	"github.com/park285/cheese-opening-prep/internal/domain"
	"github.com/park285/cheese-opening-prep/internal/msgcat"
	"github.com/park285/cheese-opening-prep/internal/render"
)

// ErrQuit is returned by Run when the trainee left before the books ran out.
var ErrQuit = errors.New("session quit")

const recordTimeout = 5 * time.Second

type BookReader interface {
	AllMoves(pos *board.Position) ([]openingbook.Entry, error)
	WeightedRandomMove(pos *board.Position, r *rand.Rand) (openingbook.Entry, error)
	Close() error
}

type Engine interface {
	Analyse(ctx context.Context, req uci.AnalyseRequest) ([]uci.Line, error)
	Close() error
}

// StyleIndex names the opening families an ECO code belongs to.
type StyleIndex interface {
	Labels(eco string) []string
}

// Recorder stores the finished session; history stores satisfy it.
type Recorder interface {
	Save(ctx context.Context, rec domain.PracticeRecord) error
}

type Options struct {
	Color    board.Color
	Line     lines.Line
	StartFEN string

	PlayerBook   BookReader
	OpponentBook BookReader
	// Engine is optional; leave nil to skip analysis.
	Engine Engine

	Renderer render.Renderer
	Recorder Recorder
	Styles   StyleIndex
	Prompter Prompter
	Catalog  *msgcat.Catalog
	Logger   *zap.Logger
	Rand     *rand.Rand
	Now      func() time.Time

	// DeviationThreshold is the highest book weight still flagged as a
	// deviation. 0 flags only unrecommended or absent moves; negative
	// selects DefaultDeviationThreshold.
	DeviationThreshold int
	Analysis           AnalysisOptions
}

// Result summarises a finished session.
type Result struct {
	SessionID  string
	EndReason  EndReason
	FEN        string
	Moves      []string
	Deviations int
	Lines      []AnalysisLine
	TopMoves   []string
	ECOCode    string
	ECOTitle   string
	Styles     []string
	Duration   time.Duration
}

// Session drives one training run. It owns the two books and the engine
// handed to New and releases each exactly once.
type Session struct {
	id        string
	color     board.Color
	line      lines.Line
	pos       *board.Position
	threshold int
	analysis  AnalysisOptions

	playerBook BookReader
	oppBook    BookReader
	engine     Engine
	renderer   render.Renderer
	recorder   Recorder
	styles     StyleIndex
	prompter   Prompter
	cat        *msgcat.Catalog
	logger     *zap.Logger
	rnd        *rand.Rand
	now        func() time.Time

	state      State
	deviations int
	startedAt  time.Time

	playerOnce sync.Once
	oppOnce    sync.Once
	engineOnce sync.Once
	playerErr  error
	oppErr     error
	engineErr  error
}

// New builds the session and plays the line onto the start position. On
// error every resource in opt has already been released.
func New(opt Options) (*Session, error) {
	s := &Session{
		id:         uuid.NewString(),
		color:      opt.Color,
		line:       opt.Line,
		threshold:  opt.DeviationThreshold,
		analysis:   opt.Analysis.withDefaults(),
		playerBook: opt.PlayerBook,
		oppBook:    opt.OpponentBook,
		engine:     opt.Engine,
		renderer:   opt.Renderer,
		recorder:   opt.Recorder,
		styles:     opt.Styles,
		prompter:   opt.Prompter,
		cat:        opt.Catalog,
		logger:     opt.Logger,
		rnd:        opt.Rand,
		now:        opt.Now,
	}
	if s.threshold < 0 {
		s.threshold = DefaultDeviationThreshold
	}
	if s.cat == nil {
		s.cat = msgcat.Default()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("session_id", s.id))
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.line.Name == "" {
		s.line.Name = lines.StartingPositionName
	}

	if err := s.init(opt.StartFEN); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) init(fen string) error {
	if s.playerBook == nil || s.oppBook == nil {
		return errors.New("trainer: both books are required")
	}
	if s.prompter == nil {
		return errors.New("trainer: prompter is required")
	}
	pos, err := board.New(fen)
	if err != nil {
		return err
	}
	for i, san := range s.line.Moves {
		if err := pos.ApplySAN(san); err != nil {
			return fmt.Errorf("line %q move %d (%s): %w", s.line.Name, i+1, san, err)
		}
	}
	s.pos = pos
	s.state = s.turnFor()
	return nil
}

func (s *Session) ID() string                { return s.id }
func (s *Session) State() State              { return s.state }
func (s *Session) Position() *board.Position { return s.pos }

// Run plays turns until a book runs out or the trainee quits, then analyses
// the final position once. Resources are released before Run returns.
func (s *Session) Run(ctx context.Context) (Result, error) {
	defer s.Close()

	s.startedAt = s.now()
	s.logger.Info("session_start",
		zap.String("color", s.color.String()),
		zap.String("line", s.line.Name),
		zap.Int("line_plies", len(s.line.Moves)),
		zap.String("state", s.state.String()),
	)
	if s.line.Name != lines.StartingPositionName {
		s.say("line.chosen", map[string]any{"Name": s.line.Name})
	}

	reason := s.loop(ctx)
	res := Result{SessionID: s.id, EndReason: reason}

	if reason.Analysed() {
		s.analyse(ctx, &res)
	} else {
		s.releaseEngine()
		if reason != EndCancelled {
			s.say("session.quit", nil)
		}
	}

	endedAt := s.now()
	res.FEN = s.pos.FEN()
	res.Moves = s.pos.Line()
	res.Deviations = s.deviations
	res.ECOCode, res.ECOTitle = s.pos.Opening()
	res.Duration = endedAt.Sub(s.startedAt)

	if reason.Analysed() {
		opening := res.ECOTitle
		if res.ECOCode != "" {
			opening = res.ECOCode + " " + res.ECOTitle
		}
		if opening == "" {
			opening = s.line.Name
		}
		s.say("session.summary", map[string]any{
			"Opening":    opening,
			"Plies":      len(res.Moves),
			"Deviations": res.Deviations,
			"Duration":   res.Duration.Round(time.Second).String(),
		})
		if s.styles != nil && res.ECOCode != "" {
			res.Styles = s.styles.Labels(res.ECOCode)
		}
		if len(res.Styles) > 0 {
			s.say("session.styles", map[string]any{"Styles": strings.Join(res.Styles, ", ")})
		}
	}

	s.record(ctx, res, endedAt)
	s.logger.Info("session_end",
		zap.String("reason", string(reason)),
		zap.Int("plies", len(res.Moves)),
		zap.Int("deviations", res.Deviations),
		zap.Duration("duration", res.Duration),
	)

	switch reason {
	case EndQuit, EndInputClosed:
		return res, fmt.Errorf("%s: %w", reason, ErrQuit)
	case EndCancelled:
		return res, ctx.Err()
	}
	return res, nil
}

func (s *Session) loop(ctx context.Context) EndReason {
	defer func() { s.state = StateSessionEnded }()
	for {
		if ctx.Err() != nil {
			return EndCancelled
		}
		switch s.state {
		case StateAwaitingPlayerMove:
			switch s.playerTurn() {
			case turnMoved:
				s.state = StateAwaitingOpponentMove
			case turnRestart:
				s.state = s.turnFor()
			case turnExhausted:
				return EndPlayerBook
			case turnQuit:
				return EndQuit
			case turnInputClosed:
				return EndInputClosed
			}
		case StateAwaitingOpponentMove:
			if !s.opponentTurn() {
				return EndOpponentBook
			}
			s.state = StateAwaitingPlayerMove
		default:
			return EndQuit
		}
	}
}

func (s *Session) turnFor() State {
	if s.pos.SideToMove() == s.color {
		return StateAwaitingPlayerMove
	}
	return StateAwaitingOpponentMove
}

type turnOutcome int

const (
	turnMoved turnOutcome = iota
	turnRestart
	turnExhausted
	turnQuit
	turnInputClosed
)

type decision int

const (
	decideAccept decision = iota
	decideRetry
	decideRestart
	decideQuit
	decideInputClosed
)

func (s *Session) playerTurn() turnOutcome {
	s.render(nil)

	entries, err := s.playerBook.AllMoves(s.pos)
	if err != nil {
		s.logger.Error("book_query_failed", zap.String("role", "player"), zap.Error(err))
	}
	if len(entries) == 0 {
		s.say("book.player_exhausted", nil)
		return turnExhausted
	}

	for {
		in, err := s.prompter.Ask(s.text("prompt.move", nil))
		if err != nil {
			s.inputFailed(err)
			return turnInputClosed
		}
		switch ParseCommand(in) {
		case CmdHint:
			s.hint(entries)
			continue
		case CmdUndo:
			if s.undo() {
				return turnRestart
			}
			continue
		case CmdReset:
			s.reset()
			return turnRestart
		case CmdQuit:
			return turnQuit
		}
		if strings.TrimSpace(in) == "" {
			continue
		}

		move, err := s.pos.Parse(in)
		if err != nil {
			s.logger.Debug("move_rejected", zap.String("input", in), zap.Error(err))
			s.say("move.illegal", map[string]any{"Input": in})
			continue
		}

		verdict := Classify(entries, move, s.threshold)
		if verdict == VerdictSuboptimal {
			switch s.confirm(entries) {
			case decideAccept:
			case decideRetry:
				continue
			case decideRestart:
				return turnRestart
			case decideQuit:
				return turnQuit
			case decideInputClosed:
				return turnInputClosed
			}
		}

		san := s.pos.Format(move)
		if err := s.pos.Apply(move); err != nil {
			s.say("move.illegal", map[string]any{"Input": in})
			continue
		}
		if verdict == VerdictSuboptimal {
			s.deviations++
		}
		s.logger.Debug("player_move", zap.String("san", san), zap.String("verdict", verdict.String()))
		return turnMoved
	}
}

func (s *Session) confirm(entries []openingbook.Entry) decision {
	for {
		in, err := s.prompter.Ask(s.text("prompt.deviation", nil))
		if err != nil {
			s.inputFailed(err)
			return decideInputClosed
		}
		switch ParseCommand(in) {
		case CmdYes:
			return decideAccept
		case CmdHint:
			s.hint(entries)
		case CmdUndo:
			if s.undo() {
				return decideRestart
			}
		case CmdReset:
			s.reset()
			return decideRestart
		case CmdQuit:
			return decideQuit
		default:
			return decideRetry
		}
	}
}

func (s *Session) opponentTurn() bool {
	entry, err := s.oppBook.WeightedRandomMove(s.pos, s.rnd)
	if err != nil {
		if !errors.Is(err, openingbook.ErrNoMoves) {
			s.logger.Error("book_query_failed", zap.String("role", "opponent"), zap.Error(err))
		}
		s.say("book.opponent_exhausted", nil)
		return false
	}
	san := s.pos.Format(entry.Move)
	if err := s.pos.Apply(entry.Move); err != nil {
		s.logger.Error("opponent_move_rejected", zap.String("uci", entry.UCI), zap.Error(err))
		s.say("book.opponent_exhausted", nil)
		return false
	}
	s.say("move.played", map[string]any{"Side": s.color.Other().String(), "Move": san})
	return true
}

func (s *Session) hint(entries []openingbook.Entry) {
	s.say("hint", map[string]any{"Hint": hintText(entries)})
}

// undo takes back the opponent's reply and the trainee's move before it.
func (s *Session) undo() bool {
	if s.pos.Ply() < 2 {
		s.say("undo.none", nil)
		return false
	}
	if err := s.pos.UndoN(2); err != nil {
		s.logger.Warn("undo_failed", zap.Error(err))
		s.say("undo.none", nil)
		return false
	}
	s.say("undo.done", nil)
	return true
}

func (s *Session) reset() {
	s.pos.Reset()
	s.say("reset.done", nil)
}

func (s *Session) inputFailed(err error) {
	if !errors.Is(err, io.EOF) {
		s.logger.Warn("input_failed", zap.Error(err))
	}
}

func (s *Session) analyse(ctx context.Context, res *Result) {
	if s.engine == nil {
		s.render(nil)
		s.say("analysis.none", nil)
		return
	}

	opt := s.analysis
	raw, err := s.engine.Analyse(ctx, uci.AnalyseRequest{FEN: s.pos.FEN(), Depth: opt.Depth, Lines: opt.Lines})
	s.releaseEngine()
	if err != nil {
		s.logger.Warn("analysis_failed", zap.Error(err))
		s.say("analysis.failed", map[string]any{"Error": err.Error()})
		s.render(nil)
		return
	}

	analysed := s.toAnalysisLines(raw)
	top := TopMoves(analysed, opt.Threshold, opt.Ratio)
	if mixedSigns(analysed) {
		s.logger.Info("analysis_mixed_signs", zap.Float64("eval0", analysed[0].Eval))
	}

	s.say("analysis.header", map[string]any{"Depth": opt.Depth})
	for i, l := range analysed {
		s.say("analysis.line", map[string]any{
			"Rank": i + 1,
			"Eval": formatEval(l),
			"PV":   strings.Join(l.PV, " "),
		})
	}

	highlights := make([]render.Highlight, 0, len(top))
	topSAN := make([]string, 0, len(top))
	for rank, idx := range top {
		l := analysed[idx]
		if l.FirstMove == nil || len(l.PV) == 0 {
			continue
		}
		name, clr := render.ArrowColor(rank)
		highlights = append(highlights, render.Highlight{Move: l.FirstMove, Name: name, Color: clr})
		topSAN = append(topSAN, l.PV[0])
	}
	s.say("analysis.top", map[string]any{"Moves": strings.Join(topSAN, ", ")})
	s.render(highlights)

	res.Lines = analysed
	res.TopMoves = topSAN
	s.logger.Info("analysis_done",
		zap.Int("lines", len(analysed)),
		zap.Strings("top", topSAN),
	)
}

func (s *Session) toAnalysisLines(raw []uci.Line) []AnalysisLine {
	out := make([]AnalysisLine, 0, len(raw))
	for _, l := range raw {
		if len(l.PV) == 0 {
			continue
		}
		var first *chesslib.Move
		if mv, err := s.pos.ParseUCI(l.PV[0]); err == nil {
			first = mv
		}
		out = append(out, AnalysisLine{
			Eval:      evalOf(l),
			Mate:      l.Mate,
			PV:        s.pos.LineToSAN(l.PV),
			FirstMove: first,
		})
	}
	return out
}

func formatEval(l AnalysisLine) string {
	if l.Mate != 0 {
		return fmt.Sprintf("#%d", l.Mate)
	}
	return fmt.Sprintf("%+.2f", l.Eval)
}

func (s *Session) render(highlights []render.Highlight) {
	if s.renderer == nil {
		return
	}
	frame := render.Frame{
		Position:    s.pos,
		Orientation: s.color,
		LastMove:    s.pos.LastMove(),
		Highlights:  highlights,
	}
	if err := s.renderer.Render(frame); err != nil {
		s.logger.Warn("render_failed", zap.Error(err))
	}
}

func (s *Session) record(ctx context.Context, res Result, endedAt time.Time) {
	if s.recorder == nil {
		return
	}
	rec := domain.PracticeRecord{
		SessionID:  s.id,
		Color:      s.color.String(),
		LineName:   s.line.Name,
		Moves:      res.Moves,
		Deviations: res.Deviations,
		EndReason:  string(res.EndReason),
		ECOCode:    res.ECOCode,
		ECOTitle:   res.ECOTitle,
		TopMoves:   res.TopMoves,
		StartedAt:  s.startedAt,
		EndedAt:    endedAt,
	}
	if len(res.Lines) > 0 {
		eval := res.Lines[0].Eval
		rec.Eval = &eval
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.Save(saveCtx, rec); err != nil {
		s.logger.Warn("practice_save_failed", zap.Error(err))
	}
}

func (s *Session) text(key string, data any) string {
	return s.cat.Text(key, data)
}

func (s *Session) say(key string, data any) {
	s.prompter.Say(s.text(key, data))
}

func (s *Session) releaseEngine() {
	s.engineOnce.Do(func() {
		if s.engine != nil {
			s.engineErr = s.engine.Close()
		}
	})
}

// Close releases the books and the engine. Each is closed at most once no
// matter how often Close runs.
func (s *Session) Close() error {
	s.playerOnce.Do(func() {
		if s.playerBook != nil {
			s.playerErr = s.playerBook.Close()
		}
	})
	s.oppOnce.Do(func() {
		if s.oppBook != nil {
			s.oppErr = s.oppBook.Close()
		}
	})
	s.releaseEngine()
	return errors.Join(s.playerErr, s.oppErr, s.engineErr)
}

package board

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	chesslib "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrNothingToUndo = errors.New("no moves available to undo")
)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

// Position is the mutable board a training session plays on. Every applied
// move is kept as UCI text so that undo can rebuild the game from the start
// position instead of trusting incremental state.
type Position struct {
	startFEN string
	game     *chesslib.Game
	moves    []string
}

// New returns a position at fen, or at the standard start when fen is empty.
func New(fen string) (*Position, error) {
	game, err := newGame(fen)
	if err != nil {
		return nil, err
	}
	return &Position{
		startFEN: strings.TrimSpace(fen),
		game:     game,
	}, nil
}

func newGame(fen string) (*chesslib.Game, error) {
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		return chesslib.NewGame(), nil
	}
	option, err := chesslib.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return chesslib.NewGame(option), nil
}

// Parse reads SAN first and falls back to UCI. The move must be legal here.
func (p *Position) Parse(text string) (*chesslib.Move, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty input", ErrIllegalMove)
	}
	pos := p.game.Position()
	for _, candidate := range sanCandidates(raw) {
		move, err := chesslib.AlgebraicNotation{}.Decode(pos, candidate)
		if err != nil {
			continue
		}
		if p.legal(move) {
			return move, nil
		}
	}
	move, err := chesslib.UCINotation{}.Decode(pos, strings.ToLower(raw))
	if err != nil || !p.legal(move) {
		return nil, fmt.Errorf("%w: %q", ErrIllegalMove, raw)
	}
	return move, nil
}

// sanCandidates lists spellings to try for SAN typed in lower case, as line
// specs are. "bxc3" stays a pawn capture first and a bishop move second.
func sanCandidates(raw string) []string {
	out := []string{raw}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "o-o") {
		out = append(out, strings.ToUpper(raw))
	}
	if len(raw) > 1 && strings.ContainsRune("nbrqk", rune(raw[0])) {
		out = append(out, strings.ToUpper(raw[:1])+raw[1:])
	}
	if idx := strings.Index(raw, "="); idx >= 0 && idx+1 < len(raw) {
		out = append(out, raw[:idx+1]+strings.ToUpper(raw[idx+1:]))
	}
	return out
}

func (p *Position) legal(move *chesslib.Move) bool {
	if move == nil {
		return false
	}
	probe := p.game.Clone()
	return probe.Move(move, nil) == nil
}

// ParseUCI decodes coordinate notation only; used for book and engine moves.
func (p *Position) ParseUCI(text string) (*chesslib.Move, error) {
	raw := strings.ToLower(strings.TrimSpace(text))
	move, err := chesslib.UCINotation{}.Decode(p.game.Position(), raw)
	if err != nil || !p.legal(move) {
		return nil, fmt.Errorf("%w: %q", ErrIllegalMove, raw)
	}
	return move, nil
}

// Format renders move as SAN in the current position.
func (p *Position) Format(move *chesslib.Move) string {
	if move == nil {
		return ""
	}
	return chesslib.AlgebraicNotation{}.Encode(p.game.Position(), move)
}

// Apply pushes a move.
func (p *Position) Apply(move *chesslib.Move) error {
	if move == nil {
		return fmt.Errorf("%w: nil move", ErrIllegalMove)
	}
	uci := chesslib.UCINotation{}.Encode(p.game.Position(), move)
	if err := p.game.Move(move, nil); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}
	p.moves = append(p.moves, strings.ToLower(uci))
	return nil
}

// ApplySAN parses and pushes a single SAN token.
func (p *Position) ApplySAN(san string) error {
	move, err := p.Parse(san)
	if err != nil {
		return err
	}
	return p.Apply(move)
}

// Undo pops the most recent move.
func (p *Position) Undo() error {
	return p.UndoN(1)
}

// UndoN pops n moves. Nothing changes when fewer than n moves were played.
func (p *Position) UndoN(n int) error {
	if n <= 0 {
		return nil
	}
	if len(p.moves) < n {
		return ErrNothingToUndo
	}
	kept := append([]string(nil), p.moves[:len(p.moves)-n]...)
	game, err := replay(p.startFEN, kept)
	if err != nil {
		return err
	}
	p.game = game
	p.moves = kept
	return nil
}

// Reset returns to the standard initial position and forgets any start FEN.
func (p *Position) Reset() {
	p.startFEN = ""
	p.game = chesslib.NewGame()
	p.moves = nil
}

func replay(fen string, moves []string) (*chesslib.Game, error) {
	game, err := newGame(fen)
	if err != nil {
		return nil, err
	}
	notation := chesslib.UCINotation{}
	for _, mv := range moves {
		move, err := notation.Decode(game.Position(), mv)
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", mv, err)
		}
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return game, nil
}

func (p *Position) SideToMove() Color {
	return fromLib(p.game.Position().Turn())
}

func (p *Position) FEN() string {
	return p.game.FEN()
}

// Hash is the polyglot key of the current position.
func (p *Position) Hash() (uint64, error) {
	hashStr, err := chesslib.NewZobristHasher().HashPosition(p.game.FEN())
	if err != nil {
		return 0, fmt.Errorf("compute polyglot hash: %w", err)
	}
	return chesslib.ZobristHashToUint64(hashStr), nil
}

func (p *Position) Ply() int {
	return len(p.moves)
}

// LastMove returns nil before the first move.
func (p *Position) LastMove() *chesslib.Move {
	moves := p.game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

// Line returns the applied moves as SAN.
func (p *Position) Line() []string {
	positions := p.game.Positions()
	moves := p.game.Moves()
	out := make([]string, 0, len(moves))
	notation := chesslib.AlgebraicNotation{}
	for i, mv := range moves {
		if i < len(positions) {
			out = append(out, notation.Encode(positions[i], mv))
		}
	}
	return out
}

func (p *Position) Board() *chesslib.Board {
	return p.game.Position().Board()
}

// LineToSAN renders a UCI principal variation as SAN without touching the
// position. Rendering stops at the first move that does not decode.
func (p *Position) LineToSAN(pv []string) []string {
	probe := p.game.Clone()
	notation := chesslib.UCINotation{}
	algebraic := chesslib.AlgebraicNotation{}
	out := make([]string, 0, len(pv))
	for _, mv := range pv {
		pos := probe.Position()
		move, err := notation.Decode(pos, strings.ToLower(strings.TrimSpace(mv)))
		if err != nil {
			break
		}
		san := algebraic.Encode(pos, move)
		if err := probe.Move(move, nil); err != nil {
			break
		}
		out = append(out, san)
	}
	return out
}

// Opening names the position from the ECO table; empty when unknown.
func (p *Position) Opening() (code, title string) {
	ecoOnce.Do(func() {
		ecoBook = opening.NewBookECO()
	})
	if ecoBook == nil {
		return "", ""
	}
	if eco := ecoBook.Find(p.game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

// SameMove compares moves by from, to and promotion.
func SameMove(a, b *chesslib.Move) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.S1() == b.S1() && a.S2() == b.S2() && a.Promo() == b.Promo()
}

// MoveKey is the coordinate text of a move, used as a map key.
func MoveKey(m *chesslib.Move) string {
	if m == nil {
		return ""
	}
	return strings.ToLower(m.String())
}

package openingbook

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"

	chesslib "github.com/corentings/chess/v2"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
)

var ErrNoMoves = errors.New("no book moves for position")

// Entry is one book move at a position. Weight 0 means known but never
// recommended.
type Entry struct {
	Move   *chesslib.Move
	UCI    string
	Weight uint16
}

// OpenError reports which book could not be opened and the config key that
// points at it.
type OpenError struct {
	Role string
	Key  string
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("unable to locate %s %q (config key %s): %v", e.Role, e.Path, e.Key, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Book is a polyglot opening book held in memory.
type Book struct {
	name string

	mu   sync.Mutex
	book *chesslib.PolyglotBook
}

// Open loads the polyglot file at path. role and key only feed the error.
func Open(role, key, path string) (*Book, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &OpenError{Role: role, Key: key, Path: path, Err: errors.New("path is empty")}
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Role: role, Key: key, Path: path, Err: err}
	}
	defer file.Close()

	b, err := Load(role, file)
	if err != nil {
		return nil, &OpenError{Role: role, Key: key, Path: path, Err: err}
	}
	return b, nil
}

// Load reads a polyglot book from r.
func Load(name string, r io.Reader) (*Book, error) {
	pb, err := chesslib.LoadFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("load polyglot book %s: %w", name, err)
	}
	return &Book{name: name, book: pb}, nil
}

func (b *Book) Name() string { return b.name }

// AllMoves returns every legal entry at pos, heaviest first.
func (b *Book) AllMoves(pos *board.Position) ([]Entry, error) {
	b.mu.Lock()
	pb := b.book
	b.mu.Unlock()
	if pb == nil {
		return nil, fmt.Errorf("book %s is closed", b.name)
	}

	hash, err := pos.Hash()
	if err != nil {
		return nil, err
	}
	raw := pb.FindMoves(hash)
	if len(raw) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]Entry, 0, len(raw))
	for _, entry := range raw {
		decoded := chesslib.DecodeMove(entry.Move).ToMove()
		uci := normalizeCastling(pos, strings.ToLower(decoded.String()))
		if _, dup := seen[uci]; dup {
			continue
		}
		move, err := pos.ParseUCI(uci)
		if err != nil {
			// hash collision or a corrupt entry
			continue
		}
		seen[uci] = struct{}{}
		out = append(out, Entry{Move: move, UCI: uci, Weight: entry.Weight})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight == out[j].Weight {
			return out[i].UCI < out[j].UCI
		}
		return out[i].Weight > out[j].Weight
	})
	return out, nil
}

// WeightedRandomMove draws one entry with probability proportional to its
// weight. Entries weighing 0 are never drawn; when nothing else is known
// the result is ErrNoMoves.
func (b *Book) WeightedRandomMove(pos *board.Position, r *rand.Rand) (Entry, error) {
	entries, err := b.AllMoves(pos)
	if err != nil {
		return Entry{}, err
	}
	return WeightedChoice(entries, r)
}

// WeightedChoice is the sampling step of WeightedRandomMove.
func WeightedChoice(entries []Entry, r *rand.Rand) (Entry, error) {
	if len(entries) == 0 {
		return Entry{}, ErrNoMoves
	}
	total := 0
	for _, e := range entries {
		total += int(e.Weight)
	}
	if total <= 0 {
		return Entry{}, fmt.Errorf("%w: every entry weighs 0", ErrNoMoves)
	}
	roll := 0
	if r != nil {
		roll = r.Intn(total)
	}
	cumulative := 0
	for _, e := range entries {
		cumulative += int(e.Weight)
		if roll < cumulative {
			return e, nil
		}
	}
	return entries[len(entries)-1], nil
}

// Close drops the book. Safe to call more than once.
func (b *Book) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	b.book = nil
	b.mu.Unlock()
	return nil
}

// polyglot encodes castling as the king capturing its own rook.
var polyglotCastling = map[string]string{
	"e1h1": "e1g1",
	"e1a1": "e1c1",
	"e8h8": "e8g8",
	"e8a8": "e8c8",
}

func normalizeCastling(pos *board.Position, uci string) string {
	target, ok := polyglotCastling[uci]
	if !ok {
		return uci
	}
	rank := chesslib.Rank1
	if strings.HasPrefix(uci, "e8") {
		rank = chesslib.Rank8
	}
	piece := pos.Board().Piece(chesslib.NewSquare(chesslib.FileE, rank))
	if piece.Type() != chesslib.King {
		return uci
	}
	return target
}

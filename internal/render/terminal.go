package render

import (
	"fmt"
	"io"
	"strings"

	chesslib "github.com/corentings/chess/v2"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
)

// Terminal prints the board as text from the trainee's side.
type Terminal struct {
	w io.Writer
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Render(frame Frame) error {
	if frame.Position == nil {
		return fmt.Errorf("render: nil position")
	}
	_, err := io.WriteString(t.w, BoardText(frame))
	return err
}

var (
	allFiles = []chesslib.File{chesslib.FileA, chesslib.FileB, chesslib.FileC, chesslib.FileD, chesslib.FileE, chesslib.FileF, chesslib.FileG, chesslib.FileH}
	allRanks = []chesslib.Rank{chesslib.Rank1, chesslib.Rank2, chesslib.Rank3, chesslib.Rank4, chesslib.Rank5, chesslib.Rank6, chesslib.Rank7, chesslib.Rank8}
)

// orientedAxes lists files and ranks in drawing order, top-left first.
func orientedAxes(orientation board.Color) ([]chesslib.File, []chesslib.Rank) {
	files := append([]chesslib.File(nil), allFiles...)
	ranks := make([]chesslib.Rank, 0, len(allRanks))
	if orientation == board.Black {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
		ranks = append(ranks, allRanks...)
	} else {
		for i := len(allRanks) - 1; i >= 0; i-- {
			ranks = append(ranks, allRanks[i])
		}
	}
	return files, ranks
}

// BoardText renders the frame. Last move squares are wrapped in brackets and
// highlight moves are listed under the board.
func BoardText(frame Frame) string {
	b := frame.Position.Board()
	files, ranks := orientedAxes(frame.Orientation)

	marked := map[chesslib.Square]bool{}
	if frame.LastMove != nil {
		marked[frame.LastMove.S1()] = true
		marked[frame.LastMove.S2()] = true
	}

	var sb strings.Builder
	for _, rank := range ranks {
		sb.WriteString(rank.String())
		sb.WriteString(" ")
		for _, file := range files {
			sq := chesslib.NewSquare(file, rank)
			glyph := pieceLetter(b.Piece(sq))
			if marked[sq] {
				sb.WriteString("[" + glyph + "]")
			} else {
				sb.WriteString(" " + glyph + " ")
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("  ")
	for _, file := range files {
		sb.WriteString(" " + file.String() + " ")
	}
	sb.WriteString("\n")

	for _, h := range frame.Highlights {
		if h.Move == nil {
			continue
		}
		fmt.Fprintf(&sb, "  %s: %s\n", h.Name, board.MoveKey(h.Move))
	}
	return sb.String()
}

func pieceLetter(p chesslib.Piece) string {
	if p == chesslib.NoPiece {
		return "."
	}
	var letter string
	switch p.Type() {
	case chesslib.King:
		letter = "k"
	case chesslib.Queen:
		letter = "q"
	case chesslib.Rook:
		letter = "r"
	case chesslib.Bishop:
		letter = "b"
	case chesslib.Knight:
		letter = "n"
	default:
		letter = "p"
	}
	if p.Color() == chesslib.White {
		return strings.ToUpper(letter)
	}
	return letter
}

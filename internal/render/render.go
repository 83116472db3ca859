package render

import (
	"errors"
	"image/color"

	chesslib "github.com/corentings/chess/v2"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
)

// Highlight marks one move on the board, usually as an arrow.
type Highlight struct {
	Move  *chesslib.Move
	Name  string
	Color color.NRGBA
}

// Frame is everything a renderer needs for one picture of the board.
type Frame struct {
	Position    *board.Position
	Orientation board.Color
	LastMove    *chesslib.Move
	Highlights  []Highlight
}

type Renderer interface {
	Render(frame Frame) error
}

type namedColor struct {
	name string
	rgba color.NRGBA
}

var arrowPalette = []namedColor{
	{"green", color.NRGBA{R: 21, G: 120, B: 27, A: 200}},
	{"yellow", color.NRGBA{R: 226, G: 184, B: 32, A: 200}},
	{"red", color.NRGBA{R: 200, G: 30, B: 30, A: 200}},
	{"blue", color.NRGBA{R: 40, G: 90, B: 210, A: 200}},
}

// ArrowColor cycles green, yellow, red, blue by rank.
func ArrowColor(i int) (string, color.NRGBA) {
	if i < 0 {
		i = 0
	}
	c := arrowPalette[i%len(arrowPalette)]
	return c.name, c.rgba
}

// Multi renders to every member and joins their errors.
type Multi []Renderer

func (m Multi) Render(frame Frame) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Render(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package board

import (
	"fmt"
	"math/rand"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

// Color identifies chess side.
type Color int8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Lib converts to the rules library colour.
func (c Color) Lib() chesslib.Color {
	if c == Black {
		return chesslib.Black
	}
	return chesslib.White
}

func fromLib(c chesslib.Color) Color {
	if c == chesslib.Black {
		return Black
	}
	return White
}

// ParseColorChoice reads the colour prompt answer; r picks at random.
func ParseColorChoice(s string, r *rand.Rand) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return White, nil
	case "b", "black":
		return Black, nil
	case "r", "random":
		if r == nil || r.Intn(2) == 0 {
			return White, nil
		}
		return Black, nil
	default:
		return White, fmt.Errorf("unknown colour %q", s)
	}
}

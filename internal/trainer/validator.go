package trainer

import (
	chesslib "github.com/corentings/chess/v2"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
	"github.com/park285/cheese-opening-prep/internal/chess/openingbook"
)

// DefaultDeviationThreshold is the highest weight still treated as a
// deviation.
const DefaultDeviationThreshold = 60

type Verdict int

const (
	VerdictAccepted Verdict = iota
	VerdictSuboptimal
)

func (v Verdict) String() string {
	if v == VerdictAccepted {
		return "accepted"
	}
	return "suboptimal"
}

// Classify checks move against the reference entries. Absent moves and moves
// weighing threshold or less are suboptimal.
func Classify(entries []openingbook.Entry, move *chesslib.Move, threshold int) Verdict {
	for _, e := range entries {
		if board.SameMove(e.Move, move) {
			if int(e.Weight) > threshold {
				return VerdictAccepted
			}
			return VerdictSuboptimal
		}
	}
	return VerdictSuboptimal
}

// hintText is the from-square of the best reference move.
func hintText(entries []openingbook.Entry) string {
	if len(entries) == 0 {
		return ""
	}
	uci := entries[0].UCI
	if uci == "" {
		uci = board.MoveKey(entries[0].Move)
	}
	if len(uci) > 2 {
		return uci[:2]
	}
	return uci
}

package trainer

import (
	"math"

	chesslib "github.com/corentings/chess/v2"

	"github.com/park285/cheese-opening-prep/internal/chess/uci"
)

const (
	DefaultAnalysisDepth = 20
	DefaultAnalysisLines = 3
	DefaultTopThreshold  = 0.4
	DefaultTopRatio      = 0.70

	// balancedBound separates the absolute-gap test from the ratio test.
	balancedBound = 1.0
)

type AnalysisOptions struct {
	Depth     int
	Lines     int
	Threshold float64
	Ratio     float64
}

func (o AnalysisOptions) withDefaults() AnalysisOptions {
	if o.Depth <= 0 {
		o.Depth = DefaultAnalysisDepth
	}
	if o.Lines <= 0 {
		o.Lines = DefaultAnalysisLines
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultTopThreshold
	}
	if o.Ratio <= 0 {
		o.Ratio = DefaultTopRatio
	}
	return o
}

// AnalysisLine is one engine line in pawns from White's side.
type AnalysisLine struct {
	Eval      float64
	Mate      int
	PV        []string // SAN
	FirstMove *chesslib.Move
}

func evalOf(l uci.Line) float64 {
	return float64(l.ScoreCP) / 100
}

// TopMoves returns the indices of the lines considered as good as the first.
// Near equality (|eval0| < 1) uses the absolute gap against threshold,
// otherwise the magnitude of eval_i/eval0 must exceed ratio.
func TopMoves(lines []AnalysisLine, threshold, ratio float64) []int {
	if len(lines) == 0 {
		return nil
	}
	eval0 := lines[0].Eval
	out := []int{0}
	if math.Abs(eval0) < balancedBound {
		for i := 1; i < len(lines); i++ {
			if math.Abs(lines[i].Eval-eval0) < threshold {
				out = append(out, i)
			}
		}
		return out
	}
	for i := 1; i < len(lines); i++ {
		if math.Abs(lines[i].Eval/eval0) > ratio {
			out = append(out, i)
		}
	}
	return out
}

// mixedSigns reports whether any line disagrees with line 0 on who is better.
func mixedSigns(lines []AnalysisLine) bool {
	if len(lines) < 2 {
		return false
	}
	s0 := math.Signbit(lines[0].Eval)
	for _, l := range lines[1:] {
		if l.Eval != 0 && lines[0].Eval != 0 && math.Signbit(l.Eval) != s0 {
			return true
		}
	}
	return false
}

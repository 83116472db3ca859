package trainer

import (
	"io"
	"reflect"
	"strings"
	"testing"
)

func linesWithEvals(evals ...float64) []AnalysisLine {
	out := make([]AnalysisLine, len(evals))
	for i, e := range evals {
		out[i] = AnalysisLine{Eval: e}
	}
	return out
}

func TestTopMovesBalanced(t *testing.T) {
	got := TopMoves(linesWithEvals(0.2, 0.1, 0.5, -2.0), 0.4, 0.70)
	if !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Fatalf("got %v", got)
	}
}

func TestTopMovesDecisive(t *testing.T) {
	got := TopMoves(linesWithEvals(3.0, 2.5, 1.0), 0.4, 0.70)
	if !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("got %v", got)
	}
	got = TopMoves(linesWithEvals(-3.0, -2.5, 1.0), 0.4, 0.70)
	if !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("black advantage: got %v", got)
	}
}

func TestTopMovesBranchBoundary(t *testing.T) {
	// eval0 = 1.0 is already ratio mode: 0.75/1.0 passes, 0.65 does not
	// even though its gap is below the threshold.
	got := TopMoves(linesWithEvals(1.0, 0.75, 0.65), 0.4, 0.70)
	if !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("got %v", got)
	}
	got = TopMoves(linesWithEvals(0.99, 0.65), 0.4, 0.70)
	if !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("balanced side of boundary: got %v", got)
	}
}

func TestTopMovesEdgeCases(t *testing.T) {
	if got := TopMoves(nil, 0.4, 0.7); got != nil {
		t.Fatalf("empty: %v", got)
	}
	if got := TopMoves(linesWithEvals(0), 0.4, 0.7); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("single: %v", got)
	}
	if !mixedSigns(linesWithEvals(2.0, -1.8)) || mixedSigns(linesWithEvals(2.0, 1.0)) {
		t.Fatalf("mixedSigns wrong")
	}
}

func TestFormatEval(t *testing.T) {
	if got := formatEval(AnalysisLine{Eval: -0.5}); got != "-0.50" {
		t.Fatalf("got %q", got)
	}
	if got := formatEval(AnalysisLine{Eval: 300, Mate: 3}); got != "#3" {
		t.Fatalf("got %q", got)
	}
}

func TestParseCommand(t *testing.T) {
	cases := map[string]Command{
		"h": CmdHint, "HINT": CmdHint,
		"u": CmdUndo, "undo": CmdUndo, "back": CmdUndo,
		"r": CmdReset, "reset": CmdReset,
		"q": CmdQuit, "quit": CmdQuit, " exit ": CmdQuit,
		"y": CmdYes, "Yes": CmdYes,
		"n": CmdNo, "no": CmdNo,
		"e4": CmdNone, "": CmdNone, "Nf3": CmdNone,
	}
	for in, want := range cases {
		if got := ParseCommand(in); got != want {
			t.Fatalf("ParseCommand(%q) = %s, want %s", in, got, want)
		}
	}
	for c := CmdNone; c <= CmdNo; c++ {
		if c.String() == "unknown" {
			t.Fatalf("command %d has no name", c)
		}
	}
}

func TestStateStringAndEndReason(t *testing.T) {
	if StateSessionEnded.String() != "session_ended" || State(9).String() != "unknown" {
		t.Fatalf("state names wrong")
	}
	if !EndPlayerBook.Analysed() || !EndOpponentBook.Analysed() || EndQuit.Analysed() || EndInputClosed.Analysed() {
		t.Fatalf("Analysed wrong")
	}
}

func TestConsolePrompter(t *testing.T) {
	var out strings.Builder
	p := NewConsolePrompter(strings.NewReader("e4\n  yes"), &out)
	if got, err := p.Ask("move? "); err != nil || got != "e4" {
		t.Fatalf("first: %q %v", got, err)
	}
	if got, err := p.Ask("sure? "); err != nil || got != "yes" {
		t.Fatalf("second: %q %v", got, err)
	}
	if _, err := p.Ask("more? "); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	p.Say("done")
	if out.String() != "move? sure? more? done\n" {
		t.Fatalf("output %q", out.String())
	}
}

package trainer

import (
	"context"
	"io"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
	"github.com/park285/cheese-opening-prep/internal/chess/openingbook"
	"github.com/park285/cheese-opening-prep/internal/chess/uci"
	"github.com/park285/cheese-opening-prep/internal/domain"
	"github.com/park285/cheese-opening-prep/internal/render"
)

// fenAfter returns the FEN reached by playing sans from the start.
func fenAfter(t *testing.T, sans ...string) string {
	t.Helper()
	pos, err := board.New("")
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	for _, san := range sans {
		if err := pos.ApplySAN(san); err != nil {
			t.Fatalf("apply %s: %v", san, err)
		}
	}
	return pos.FEN()
}

type fakeBook struct {
	moves  map[string]map[string]uint16
	closed int
}

func newFakeBook() *fakeBook {
	return &fakeBook{moves: make(map[string]map[string]uint16)}
}

func (b *fakeBook) add(fen, move string, weight uint16) *fakeBook {
	if b.moves[fen] == nil {
		b.moves[fen] = make(map[string]uint16)
	}
	b.moves[fen][move] = weight
	return b
}

func (b *fakeBook) AllMoves(pos *board.Position) ([]openingbook.Entry, error) {
	var out []openingbook.Entry
	for u, w := range b.moves[pos.FEN()] {
		mv, err := pos.ParseUCI(u)
		if err != nil {
			continue
		}
		out = append(out, openingbook.Entry{Move: mv, UCI: u, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight == out[j].Weight {
			return out[i].UCI < out[j].UCI
		}
		return out[i].Weight > out[j].Weight
	})
	return out, nil
}

func (b *fakeBook) WeightedRandomMove(pos *board.Position, r *rand.Rand) (openingbook.Entry, error) {
	entries, err := b.AllMoves(pos)
	if err != nil {
		return openingbook.Entry{}, err
	}
	return openingbook.WeightedChoice(entries, r)
}

func (b *fakeBook) Close() error {
	b.closed++
	return nil
}

type fakePrompter struct {
	answers []string
	asked   []string
	said    []string
}

func (p *fakePrompter) Ask(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	next := p.answers[0]
	p.answers = p.answers[1:]
	return next, nil
}

func (p *fakePrompter) Say(msg string) {
	p.said = append(p.said, msg)
}

func (p *fakePrompter) saidContaining(sub string) int {
	n := 0
	for _, s := range p.said {
		if strings.Contains(s, sub) {
			n++
		}
	}
	return n
}

func (p *fakePrompter) askedCount(prompt string) int {
	n := 0
	for _, s := range p.asked {
		if s == prompt {
			n++
		}
	}
	return n
}

type fakeEngine struct {
	lines   []uci.Line
	err     error
	calls   int
	closed  int
	lastReq uci.AnalyseRequest
}

func (e *fakeEngine) Analyse(_ context.Context, req uci.AnalyseRequest) ([]uci.Line, error) {
	e.calls++
	e.lastReq = req
	return e.lines, e.err
}

func (e *fakeEngine) Close() error {
	e.closed++
	return nil
}

type fakeRenderer struct {
	frames []render.Frame
}

func (r *fakeRenderer) Render(f render.Frame) error {
	r.frames = append(r.frames, f)
	return nil
}

func (r *fakeRenderer) last() render.Frame {
	if len(r.frames) == 0 {
		return render.Frame{}
	}
	return r.frames[len(r.frames)-1]
}

type fakeRecorder struct {
	records []domain.PracticeRecord
}

func (r *fakeRecorder) Save(_ context.Context, rec domain.PracticeRecord) error {
	r.records = append(r.records, rec)
	return nil
}

type fixture struct {
	player   *fakeBook
	opponent *fakeBook
	prompter *fakePrompter
	renderer *fakeRenderer
	recorder *fakeRecorder
}

func newFixture(answers ...string) *fixture {
	return &fixture{
		player:   newFakeBook(),
		opponent: newFakeBook(),
		prompter: &fakePrompter{answers: answers},
		renderer: &fakeRenderer{},
		recorder: &fakeRecorder{},
	}
}

func (f *fixture) options(color board.Color) Options {
	return Options{
		Color:        color,
		PlayerBook:   f.player,
		OpponentBook: f.opponent,
		Renderer:     f.renderer,
		Recorder:     f.recorder,
		Prompter:     f.prompter,
		Rand:         rand.New(rand.NewSource(1)),

		DeviationThreshold: DefaultDeviationThreshold,
	}
}

func newSession(t *testing.T, opt Options) *Session {
	t.Helper()
	s, err := New(opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

package lines

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
)

// StartingPositionName labels sessions that begin without a line.
const StartingPositionName = "Starting Position"

var (
	ErrMalformedLine = errors.New("malformed line spec")
	ErrUnknownLine   = errors.New("unknown line name")
	ErrIllegalLine   = errors.New("line contains an illegal move")
)

// Line is a named move sequence in SAN.
type Line struct {
	Name  string
	Moves []string
}

// Spec is one parsed line entry together with the colours it applies to.
type Spec struct {
	Line
	White bool
	Black bool
}

// Registry holds the configured lines per trainee colour.
type Registry struct {
	white map[string][]string
	black map[string][]string
}

// Build parses raw line entries. Entries that cannot be resolved, or whose
// moves are not playable from the initial position, are logged and skipped.
func Build(raw []string, known Known, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := &Registry{
		white: make(map[string][]string),
		black: make(map[string][]string),
	}
	for _, entry := range raw {
		spec, err := ParseSpec(entry, known)
		if err == nil {
			err = Validate(spec.Moves)
		}
		if err != nil {
			logger.Warn("line_skipped", zap.String("entry", entry), zap.Error(err))
			continue
		}
		if spec.White {
			reg.white[spec.Name] = append([]string(nil), spec.Moves...)
		}
		if spec.Black {
			reg.black[spec.Name] = append([]string(nil), spec.Moves...)
		}
	}
	return reg
}

// ParseSpec applies the line grammar:
//
//	[$name move move ... | known name] [ [w|b|wb] ]
func ParseSpec(entry string, known Known) (Spec, error) {
	s := strings.ToLower(strings.TrimSpace(entry))
	if s == "" {
		return Spec{}, fmt.Errorf("%w: empty entry", ErrMalformedLine)
	}

	code := "wb"
	if strings.HasSuffix(s, "]") {
		idx := strings.LastIndex(s, " ")
		if idx < 0 {
			return Spec{}, fmt.Errorf("%w: colour code without line", ErrMalformedLine)
		}
		code = strings.Trim(strings.TrimSpace(s[idx+1:]), "[]")
		s = strings.TrimSpace(s[:idx])
	}

	spec := Spec{
		White: strings.Contains(code, "w"),
		Black: strings.Contains(code, "b"),
	}
	if !spec.White && !spec.Black {
		return Spec{}, fmt.Errorf("%w: colour code %q names no side", ErrMalformedLine, code)
	}

	if strings.HasPrefix(s, "$") {
		parts := strings.SplitN(s, " ", 2)
		if len(parts) < 2 {
			return Spec{}, fmt.Errorf("%w: %q has no moves", ErrMalformedLine, s)
		}
		spec.Name = strings.TrimPrefix(parts[0], "$")
		spec.Moves = strings.Fields(parts[1])
		if spec.Name == "" || len(spec.Moves) == 0 {
			return Spec{}, fmt.Errorf("%w: %q", ErrMalformedLine, s)
		}
		return spec, nil
	}

	moves, ok := known.Lookup(s)
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownLine, s)
	}
	spec.Name = s
	spec.Moves = moves
	return spec, nil
}

func (r *Registry) White() map[string][]string { return cloneMap(r.white) }
func (r *Registry) Black() map[string][]string { return cloneMap(r.black) }

// Validate replays moves from the initial position and reports the first
// token that is not a legal move there.
func Validate(moves []string) error {
	pos, err := board.New("")
	if err != nil {
		return err
	}
	for i, san := range moves {
		if err := pos.ApplySAN(san); err != nil {
			return fmt.Errorf("%w: move %d (%s)", ErrIllegalLine, i+1, san)
		}
	}
	return nil
}

func (r *Registry) For(c board.Color) map[string][]string {
	if c == board.Black {
		return r.Black()
	}
	return r.White()
}

// Len counts distinct line names across both colours.
func (r *Registry) Len() int {
	names := make(map[string]struct{}, len(r.white)+len(r.black))
	for k := range r.white {
		names[k] = struct{}{}
	}
	for k := range r.black {
		names[k] = struct{}{}
	}
	return len(names)
}

// Pick chooses uniformly among the lines for c, falling back to the
// starting position when none apply.
func (r *Registry) Pick(c board.Color, rnd *rand.Rand) Line {
	if r == nil {
		return Line{Name: StartingPositionName}
	}
	src := r.white
	if c == board.Black {
		src = r.black
	}
	if len(src) == 0 {
		return Line{Name: StartingPositionName}
	}
	names := make([]string, 0, len(src))
	for k := range src {
		names = append(names, k)
	}
	sort.Strings(names)
	idx := 0
	if rnd != nil {
		idx = rnd.Intn(len(names))
	}
	name := names[idx]
	return Line{Name: name, Moves: append([]string(nil), src[name]...)}
}

func cloneMap(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

package openingbook

import (
	"fmt"
	"os"
	"sort"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// StyleGroup labels a family of openings by ECO code or range, e.g.
// "C20-C99" or "B01".
type StyleGroup struct {
	Key         string   `yaml:"key"`
	Label       string   `yaml:"label"`
	Description string   `yaml:"description"`
	ECO         []string `yaml:"eco"`
}

type styleFile struct {
	Groups []StyleGroup `yaml:"groups"`
}

type ecoRange struct {
	lo, hi string
	group  int
}

// Styles resolves ECO codes to the style groups that cover them.
type Styles struct {
	groups []StyleGroup
	byKey  map[string]int
	ranges []ecoRange
}

// LoadStyles reads a style catalog. An empty path yields an empty catalog.
func LoadStyles(path string) (*Styles, error) {
	if strings.TrimSpace(path) == "" {
		return &Styles{byKey: map[string]int{}}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read style catalog %q: %w", path, err)
	}
	s, err := ParseStyles(raw)
	if err != nil {
		return nil, fmt.Errorf("style catalog %q: %w", path, err)
	}
	return s, nil
}

func ParseStyles(raw []byte) (*Styles, error) {
	var payload styleFile
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	s := &Styles{
		groups: make([]StyleGroup, 0, len(payload.Groups)),
		byKey:  make(map[string]int, len(payload.Groups)),
	}
	for _, g := range payload.Groups {
		key := strings.ToLower(strings.TrimSpace(g.Key))
		if key == "" {
			return nil, fmt.Errorf("style group without key")
		}
		if _, dup := s.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate style group %q", key)
		}
		g.Key = key
		if strings.TrimSpace(g.Label) == "" {
			g.Label = key
		}
		idx := len(s.groups)
		for _, token := range g.ECO {
			lo, hi, err := parseECORange(token)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", key, err)
			}
			s.ranges = append(s.ranges, ecoRange{lo: lo, hi: hi, group: idx})
		}
		g.ECO = append([]string(nil), g.ECO...)
		s.groups = append(s.groups, g)
		s.byKey[key] = idx
	}
	return s, nil
}

func parseECORange(token string) (string, string, error) {
	lo, hi, isRange := strings.Cut(token, "-")
	lo = normalizeECOCode(lo)
	hi = normalizeECOCode(hi)
	if !isRange {
		hi = lo
	}
	if !validECO(lo) || !validECO(hi) {
		return "", "", fmt.Errorf("bad eco range %q", token)
	}
	if lo > hi {
		return "", "", fmt.Errorf("eco range %q is reversed", token)
	}
	return lo, hi, nil
}

func validECO(code string) bool {
	if len(code) != 3 || code[0] < 'A' || code[0] > 'E' {
		return false
	}
	return code[1] >= '0' && code[1] <= '9' && code[2] >= '0' && code[2] <= '9'
}

func normalizeECOCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(code)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Styles) Groups() []StyleGroup {
	if s == nil {
		return nil
	}
	out := make([]StyleGroup, len(s.groups))
	for i, g := range s.groups {
		g.ECO = append([]string(nil), g.ECO...)
		out[i] = g
	}
	return out
}

func (s *Styles) FindByKey(key string) (StyleGroup, bool) {
	if s == nil {
		return StyleGroup{}, false
	}
	idx, ok := s.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return StyleGroup{}, false
	}
	return s.groups[idx], true
}

// ForECO returns the groups covering code in catalog order.
func (s *Styles) ForECO(code string) []StyleGroup {
	if s == nil {
		return nil
	}
	code = normalizeECOCode(code)
	if !validECO(code) {
		return nil
	}
	seen := make(map[int]struct{})
	for _, r := range s.ranges {
		if code >= r.lo && code <= r.hi {
			seen[r.group] = struct{}{}
		}
	}
	idxs := make([]int, 0, len(seen))
	for i := range seen {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	out := make([]StyleGroup, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.groups[i])
	}
	return out
}

// Labels is ForECO reduced to display labels.
func (s *Styles) Labels(code string) []string {
	groups := s.ForECO(code)
	if len(groups) == 0 {
		return nil
	}
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Label
	}
	return out
}

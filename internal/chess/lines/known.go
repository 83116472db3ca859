package lines

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Known maps lower-case line names to space separated SAN moves.
type Known map[string]string

// LoadKnown reads a YAML mapping of line names to move text. An empty path
// yields an empty table.
func LoadKnown(path string) (Known, error) {
	if strings.TrimSpace(path) == "" {
		return Known{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read known lines %q: %w", path, err)
	}
	return ParseKnown(raw)
}

// ParseKnown decodes the known-lines YAML document.
func ParseKnown(raw []byte) (Known, error) {
	var m map[string]string
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode known lines: %w", err)
	}
	out := make(Known, len(m))
	for k, v := range m {
		name := normalizeName(k)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(v)
	}
	return out, nil
}

// Lookup is case-insensitive.
func (k Known) Lookup(name string) ([]string, bool) {
	if k == nil {
		return nil, false
	}
	v, ok := k[normalizeName(name)]
	if !ok {
		return nil, false
	}
	moves := strings.Fields(v)
	if len(moves) == 0 {
		return nil, false
	}
	return moves, true
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

package msgcat

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var embeddedMessages []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Catalog maps dotted keys ("prompt.move") to parsed text templates. It is
// read-only once built.
type Catalog struct {
	templates map[string]*template.Template
}

// New builds the embedded English catalog and layers every *.yaml / *.yml
// file of overrideDir on top, in name order. Two override files may not
// define the same key.
func New(overrideDir string) (*Catalog, error) {
	texts, err := flatten(embeddedMessages)
	if err != nil {
		return nil, fmt.Errorf("embedded messages: %w", err)
	}
	if dir := strings.TrimSpace(overrideDir); dir != "" {
		overrides, err := readOverrides(dir)
		if err != nil {
			return nil, err
		}
		for k, v := range overrides {
			texts[k] = v
		}
	}

	c := &Catalog{templates: make(map[string]*template.Template, len(texts))}
	for key, text := range texts {
		tpl, err := template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("message %q: %w", key, err)
		}
		c.templates[key] = tpl
	}
	return c, nil
}

// Default is the embedded catalog, built once.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := New("")
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func readOverrides(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read messages dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)

	out := make(map[string]string)
	origin := make(map[string]string)
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		texts, err := flatten(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		for k, v := range texts {
			if prev, dup := origin[k]; dup {
				return nil, fmt.Errorf("message %q defined in both %s and %s", k, prev, name)
			}
			origin[k] = name
			out[k] = v
		}
	}
	return out, nil
}

// flatten turns nested YAML mappings into dotted keys. Only string leaves
// are allowed.
func flatten(raw []byte) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if len(doc.Content) == 0 {
		return out, nil
	}
	if err := walk(doc.Content[0], "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(n *yaml.Node, prefix string, out map[string]string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := walk(n.Content[i+1], key, out); err != nil {
				return err
			}
		}
		return nil
	case yaml.ScalarNode:
		if prefix == "" {
			return fmt.Errorf("line %d: text without a key", n.Line)
		}
		out[prefix] = n.Value
		return nil
	default:
		return fmt.Errorf("line %d: %s must be text or a mapping", n.Line, prefix)
	}
}

// Render executes the template stored under key. Unknown keys and missing
// template fields are errors.
func (c *Catalog) Render(key string, data any) (string, error) {
	tpl, ok := c.templates[strings.TrimSpace(key)]
	if !ok {
		return "", fmt.Errorf("message not found: %s", key)
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text renders key and falls back to the key itself, so a broken override
// never hides a prompt.
func (c *Catalog) Text(key string, data any) string {
	if c == nil {
		return key
	}
	s, err := c.Render(key, data)
	if err != nil {
		return key
	}
	return s
}

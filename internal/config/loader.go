package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

const includeKey = "$include"

// envRef matches ${NAME} references. Bare $ stays literal so declared
// command response text is never rewritten by the environment.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// loadTree reads a config file and every file its $include directive
// names, and returns the overlaid raw document. Included files apply
// first, in declaration order; the including file wins key by key.
func loadTree(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}
	l := &loader{}
	return l.load(path)
}

// loader tracks the chain of files currently being resolved so an
// include cycle is reported with the full path back to itself.
type loader struct {
	stack []string
}

func (l *loader) load(path string) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	for _, open := range l.stack {
		if open == abs {
			chain := append(append([]string{}, l.stack...), abs)
			return nil, fmt.Errorf("config include cycle: %s", strings.Join(chain, " -> "))
		}
	}
	l.stack = append(l.stack, abs)
	defer func() { l.stack = l.stack[:len(l.stack)-1] }()

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(expandEnv(data), abs)
	if err != nil {
		return nil, err
	}

	includes, err := popIncludes(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}

	base := map[string]any{}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(abs), inc)
		}
		sub, err := l.load(inc)
		if err != nil {
			return nil, err
		}
		base = overlay(base, sub)
	}
	return overlay(base, doc), nil
}

// expandEnv substitutes ${NAME} references with the named environment
// variable. Unset names expand to the empty string.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

// parseDocument decodes one file body. The extension picks the codec:
// .json and .json5 go through the JSON5 reader, everything else is
// treated as a single YAML document.
func parseDocument(data []byte, path string) (map[string]any, error) {
	doc := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		if err := json5.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		if err := decodeSingleYAML(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// decodeSingleYAML decodes exactly one YAML document into out,
// rejecting multi-document streams. An empty file decodes to nothing.
func decodeSingleYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		return fmt.Errorf("expected a single YAML document")
	}
	return nil
}

// popIncludes removes the $include directive from a document and
// returns the referenced paths in declaration order.
func popIncludes(doc map[string]any) ([]string, error) {
	val, ok := doc[includeKey]
	if !ok {
		return nil, nil
	}
	delete(doc, includeKey)

	var entries []any
	switch v := val.(type) {
	case string:
		entries = []any{v}
	case []any:
		entries = v
	default:
		return nil, fmt.Errorf("%s must be a path or a list of paths", includeKey)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		p, ok := entry.(string)
		if !ok {
			return nil, fmt.Errorf("%s entries must be strings", includeKey)
		}
		if strings.TrimSpace(p) == "" {
			continue
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// overlay merges over into base, later values winning. Two maps at the
// same key merge recursively; any other pair replaces outright.
func overlay(base, over map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	for key, val := range over {
		if sub, ok := val.(map[string]any); ok {
			if cur, ok := base[key].(map[string]any); ok {
				base[key] = overlay(cur, sub)
				continue
			}
		}
		base[key] = val
	}
	return base
}

// decodeStrict maps the overlaid document onto Config, rejecting keys
// the schema does not declare. The round trip through YAML keeps the
// JSON5 and YAML paths on one set of field tags.
func decodeStrict(doc map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(payload))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Package protocol fills the placeholders of an OT-2 template script with the
// values of a YAML configuration file and, optionally, the content of a CSV file.
package protocol

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.yaml.in/yaml/v3"
)

const (
	sectionParams = "params"
	sectionCSV    = "csv"
)

// Config holds the values parsed from a configuration file
type Config struct {
	// Params maps a placeholder name to its replacement text
	Params map[string]string
	// CSV maps a placeholder name to the expected CSV file name
	CSV map[string]string
}

// ParseConfig parses a YAML configuration file.
//
// Values under "params" and any other top-level key become placeholder values.
// Values under "csv" name the placeholders that receive the uploaded CSV.
func ParseConfig(data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidConfig)
	}

	doc := resolve(root.Content[0])
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalidConfig)
	}

	cfg := &Config{
		Params: make(map[string]string),
		CSV:    make(map[string]string),
	}
	flat := make(map[string]string)

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i].Value, doc.Content[i+1]

		switch key {
		case sectionParams:
			if err := decodeSection(val, cfg.Params); err != nil {
				return nil, fmt.Errorf("%w: params: %v", ErrInvalidConfig, err)
			}
		case sectionCSV:
			if err := decodeSection(val, cfg.CSV); err != nil {
				return nil, fmt.Errorf("%w: csv: %v", ErrInvalidConfig, err)
			}
		default:
			v, err := nodeValue(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
			}
			flat[key] = v
		}
	}

	for name, v := range flat {
		if _, ok := cfg.Params[name]; ok {
			return nil, fmt.Errorf("%w: %q is defined both at top level and in params", ErrInvalidConfig, name)
		}
		cfg.Params[name] = v
	}

	for name := range cfg.CSV {
		if _, ok := cfg.Params[name]; ok {
			return nil, fmt.Errorf("%w: %q is defined both as a param and as a csv placeholder", ErrInvalidConfig, name)
		}
	}

	return cfg, nil
}

// ParamNames returns the param names in sorted order
func (c *Config) ParamNames() []string {
	return sortedKeys(c.Params)
}

func decodeSection(n *yaml.Node, dst map[string]string) error {
	n = resolve(n)

	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping")
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if _, dup := dst[key]; dup {
			return fmt.Errorf("duplicate key %q", key)
		}

		v, err := nodeValue(n.Content[i+1])
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		dst[key] = v
	}

	return nil
}

// nodeValue keeps the literal text of scalars so that 1000.0 is not turned into 1000
func nodeValue(n *yaml.Node) (string, error) {
	n = resolve(n)

	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return "", nil
		}
		return n.Value, nil
	case yaml.SequenceNode, yaml.MappingNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return "", err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("value cannot be written as JSON: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported value")
	}
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

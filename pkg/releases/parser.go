// Package releases reads the releases YAML file, keeping custom tags such as
// !date or !image visible to the console.
package releases

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OrderedMap is a YAML mapping that keeps its key order when encoded as JSON.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

func newOrderedMap() *OrderedMap {
	return &OrderedMap{values: map[string]any{}}
}

func (m *OrderedMap) set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Keys returns the keys in document order.
func (m *OrderedMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Get returns the value stored under key.
func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// MarshalJSON encodes the mapping as a JSON object in document order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// TaggedValue is a node carrying a custom tag. Value is a string for scalars,
// an *OrderedMap for mappings and nil otherwise.
type TaggedValue struct {
	Value        any    `json:"value"`
	Type         string `json:"type"`
	HasCustomTag bool   `json:"has_custom_tag"`
}

// Parse converts a releases document into JSON-ready values.
func Parse(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse releases yaml: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return convert(&doc)
}

// ParseFile reads and parses a releases file.
func ParseFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read releases file: %w", err)
	}
	return Parse(data)
}

func customTag(n *yaml.Node) (string, bool) {
	if strings.HasPrefix(n.Tag, "!") && !strings.HasPrefix(n.Tag, "!!") {
		return strings.TrimPrefix(n.Tag, "!"), true
	}
	return "", false
}

func convert(n *yaml.Node) (any, error) {
	if tag, ok := customTag(n); ok {
		tagged := &TaggedValue{Type: tag, HasCustomTag: true}
		switch n.Kind {
		case yaml.ScalarNode:
			tagged.Value = n.Value
		case yaml.MappingNode:
			m, err := convertMapping(n)
			if err != nil {
				return nil, err
			}
			tagged.Value = m
		}
		return tagged, nil
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return convert(n.Content[0])
	case yaml.MappingNode:
		return convertMapping(n)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := convert(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.AliasNode:
		return convert(n.Alias)
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}

func convertMapping(n *yaml.Node) (*OrderedMap, error) {
	m := newOrderedMap()
	for i := 0; i+1 < len(n.Content); i += 2 {
		v, err := convert(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		m.set(n.Content[i].Value, v)
	}
	return m, nil
}

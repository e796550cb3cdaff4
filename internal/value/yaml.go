package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToYAMLNode converts v into a YAML node tree. Scalars carry explicit tags so
// that a string such as "true" never reads back as a boolean.
func ToYAMLNode(v Value, sortKeys bool) *yaml.Node {
	switch v.kind {
	case Null:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case Bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case Number:
		tag := "!!int"
		if strings.ContainsAny(v.s, ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.s}
	case String:
		n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.s}
		switch {
		case literalSafe(v.s):
			n.Style = yaml.LiteralStyle
		case strings.ContainsAny(v.s, "\r\n"):
			n.Style = yaml.DoubleQuotedStyle
		}
		return n
	case Array:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(v.items) == 0 {
			n.Style = yaml.FlowStyle
		}
		for _, item := range v.items {
			n.Content = append(n.Content, ToYAMLNode(item, sortKeys))
		}
		return n
	case Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if len(v.members) == 0 {
			n.Style = yaml.FlowStyle
		}
		for _, m := range orderedMembers(v.members, sortKeys) {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.Key},
				ToYAMLNode(m.Value, sortKeys),
			)
		}
		return n
	default:
		panic(fmt.Sprintf("value: unhandled kind %v", v.kind))
	}
}

// literalSafe reports whether s reads back unchanged from a literal block.
// Leading whitespace, runs of trailing newlines and carriage returns do not
// survive the block header yaml.v3 emits for them, so such strings stay
// double-quoted.
func literalSafe(s string) bool {
	if !strings.Contains(s, "\n") || strings.ContainsRune(s, '\r') {
		return false
	}
	switch s[0] {
	case ' ', '\t', '\n':
		return false
	}
	return !strings.HasSuffix(s, "\n\n")
}

// FromYAMLNode converts a decoded YAML node tree into a Value. Aliases are
// expanded; an alias that refers to one of its own ancestors is an error.
func FromYAMLNode(n *yaml.Node) (Value, error) {
	return fromYAMLNode(n, map[*yaml.Node]bool{})
}

func fromYAMLNode(n *yaml.Node, expanding map[*yaml.Node]bool) (Value, error) {
	if n == nil || n.Kind == 0 {
		return NullValue(), nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NullValue(), nil
		}
		return fromYAMLNode(n.Content[0], expanding)
	case yaml.AliasNode:
		if expanding[n.Alias] {
			return Value{}, fmt.Errorf("value: line %d: alias %q refers to itself", n.Line, n.Value)
		}
		expanding[n.Alias] = true
		defer delete(expanding, n.Alias)
		return fromYAMLNode(n.Alias, expanding)
	case yaml.SequenceNode:
		out := Value{kind: Array, items: make([]Value, 0, len(n.Content))}
		for _, child := range n.Content {
			v, err := fromYAMLNode(child, expanding)
			if err != nil {
				return Value{}, err
			}
			out.items = append(out.items, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := Value{kind: Object, members: make([]Member, 0, len(n.Content)/2)}
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode := n.Content[i]
			if keyNode.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("value: line %d: mapping key must be a scalar", keyNode.Line)
			}
			v, err := fromYAMLNode(n.Content[i+1], expanding)
			if err != nil {
				return Value{}, err
			}
			out.members = setMember(out.members, keyNode.Value, v)
		}
		return out, nil
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	default:
		return Value{}, fmt.Errorf("value: line %d: unsupported YAML node kind %d", n.Line, n.Kind)
	}
}

func scalarFromYAML(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return NullValue(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("value: line %d: %w", n.Line, err)
		}
		return BoolValue(b), nil
	case "!!int", "!!float":
		if v, err := NumberValue(n.Value); err == nil {
			return v, nil
		}
		// Non-JSON spellings such as 0x1F or 1_000 are normalized.
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("value: line %d: %w", n.Line, err)
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return Value{}, fmt.Errorf("value: line %d: %q has no JSON representation", n.Line, n.Value)
		}
		return NumberValue(strconv.FormatFloat(f, 'g', -1, 64))
	default:
		return StringValue(n.Value), nil
	}
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return ToYAMLNode(v, false), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	decoded, err := FromYAMLNode(n)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// Package fixture stores golden AST fixtures, one file per fixture, each
// holding exactly an "sql" string and the "ast" the dump tool produced for it.
package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/electwix/astconform/internal/value"
)

// Field names of a fixture record.
const (
	FieldSQL = "sql"
	FieldAST = "ast"
)

// ErrFixtureDecode marks a stored fixture file that cannot be read back.
var ErrFixtureDecode = errors.New("fixture decode error")

// ErrInvalidName is returned for names that cannot be used as a file stem.
var ErrInvalidName = errors.New("invalid fixture name")

// Fixture is one golden record.
type Fixture struct {
	Name string
	SQL  string
	AST  value.Value
}

// Format is an on-disk encoding.
type Format string

const (
	// FormatJSON writes <name>.json with two-space indentation.
	FormatJSON Format = "json"
	// FormatYAML writes <name>.yaml with two-space indentation.
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported fixture format %q (want json or yaml)", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// DecodeError reports a malformed fixture file.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Path, ErrFixtureDecode, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrFixtureDecode }

// ValidateName rejects names that are empty, contain path separators, or
// would escape the fixture directory.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidName, name)
	}
	return nil
}

// EncodeOptions tunes Marshal.
type EncodeOptions struct {
	// SortKeys orders AST object members by key instead of tool order.
	SortKeys bool
}

// Marshal encodes f. Output is deterministic for a given fixture and options
// and always ends with a newline.
func Marshal(f Fixture, format Format, opts EncodeOptions) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return marshalJSON(f, opts), nil
	case FormatYAML:
		return marshalYAML(f, opts)
	default:
		return nil, fmt.Errorf("unsupported fixture format %q", format)
	}
}

func marshalJSON(f Fixture, opts EncodeOptions) []byte {
	jsonOpts := value.EncodeOptions{Indent: "  ", SortKeys: opts.SortKeys}
	var buf bytes.Buffer
	buf.WriteString("{\n  \"" + FieldSQL + "\": ")
	value.WriteJSON(&buf, value.StringValue(f.SQL), jsonOpts, 1)
	buf.WriteString(",\n  \"" + FieldAST + "\": ")
	value.WriteJSON(&buf, f.AST, jsonOpts, 1)
	buf.WriteString("\n}\n")
	return buf.Bytes()
}

func marshalYAML(f Fixture, opts EncodeOptions) ([]byte, error) {
	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: FieldSQL},
			value.ToYAMLNode(value.StringValue(f.SQL), false),
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: FieldAST},
			value.ToYAMLNode(f.AST, opts.SortKeys),
		},
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a fixture record. The name is taken from the caller since
// it lives in the file name, not the record.
func Unmarshal(name string, data []byte, format Format) (Fixture, error) {
	var (
		record value.Value
		err    error
	)
	switch format {
	case FormatJSON, "":
		record, err = value.DecodeJSON(data)
	case FormatYAML:
		record, err = decodeYAML(data)
	default:
		return Fixture{}, fmt.Errorf("unsupported fixture format %q", format)
	}
	if err != nil {
		return Fixture{}, err
	}
	return fromRecord(name, record)
}

func decodeYAML(data []byte) (value.Value, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return value.Value{}, err
	}
	return value.FromYAMLNode(&node)
}

func fromRecord(name string, record value.Value) (Fixture, error) {
	if record.Kind() != value.Object {
		return Fixture{}, fmt.Errorf("record must be an object, got %s", record.Kind())
	}
	for _, m := range record.Members() {
		if m.Key != FieldSQL && m.Key != FieldAST {
			return Fixture{}, fmt.Errorf("unexpected field %q", m.Key)
		}
	}
	sql, ok := record.Get(FieldSQL)
	if !ok {
		return Fixture{}, fmt.Errorf("missing field %q", FieldSQL)
	}
	if sql.Kind() != value.String {
		return Fixture{}, fmt.Errorf("field %q must be a string, got %s", FieldSQL, sql.Kind())
	}
	ast, ok := record.Get(FieldAST)
	if !ok {
		return Fixture{}, fmt.Errorf("missing field %q", FieldAST)
	}
	return Fixture{Name: name, SQL: sql.Str(), AST: ast}, nil
}

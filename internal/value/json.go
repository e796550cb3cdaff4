package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// ErrTrailingData is returned when a JSON document holds more than one value.
var ErrTrailingData = errors.New("value: trailing data after JSON value")

// EncodeOptions controls JSON output.
type EncodeOptions struct {
	// Indent is repeated once per nesting level. Empty means compact output.
	Indent string
	// SortKeys orders object members by key instead of insertion order.
	SortKeys bool
}

// DecodeJSON parses exactly one JSON value from data. Surrounding whitespace
// is allowed; anything else after the value is an error.
func DecodeJSON(data []byte) (Value, error) {
	return DecodeJSONReader(bytes.NewReader(data))
}

// DecodeJSONReader parses exactly one JSON value from r.
func DecodeJSONReader(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, errors.New("value: empty JSON input")
		}
		return Value{}, err
	}
	v, err := decodeToken(dec, tok)
	if err != nil {
		return Value{}, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrTrailingData, err)
		}
		return Value{}, ErrTrailingData
	}
	return v, nil
}

func decodeNext(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		return NumberValue(t.String())
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return Value{}, fmt.Errorf("value: unexpected delimiter %q", rune(t))
	default:
		return Value{}, fmt.Errorf("value: unexpected JSON token %T", tok)
	}
}

func decodeObject(dec *json.Decoder) (Value, error) {
	out := Value{kind: Object, members: []Member{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("value: object key must be a string, got %T", tok)
		}
		v, err := decodeNext(dec)
		if err != nil {
			return Value{}, err
		}
		out.members = setMember(out.members, key, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return out, nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	out := Value{kind: Array, items: []Value{}}
	for dec.More() {
		v, err := decodeNext(dec)
		if err != nil {
			return Value{}, err
		}
		out.items = append(out.items, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return out, nil
}

// EncodeJSON serializes v. The output has no trailing newline.
func EncodeJSON(v Value, opts EncodeOptions) []byte {
	var buf bytes.Buffer
	writeJSON(&buf, v, opts, 0)
	return buf.Bytes()
}

// WriteJSON appends the serialization of v to buf at the given nesting depth.
// Used by encoders that wrap a value inside a larger document.
func WriteJSON(buf *bytes.Buffer, v Value, opts EncodeOptions, depth int) {
	writeJSON(buf, v, opts, depth)
}

func writeJSON(buf *bytes.Buffer, v Value, opts EncodeOptions, depth int) {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(v.s)
	case String:
		writeQuoted(buf, v.s)
	case Array:
		if len(v.items) == 0 {
			buf.WriteString("[]")
			return
		}
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			newline(buf, opts.Indent, depth+1)
			writeJSON(buf, item, opts, depth+1)
		}
		newline(buf, opts.Indent, depth)
		buf.WriteByte(']')
	case Object:
		if len(v.members) == 0 {
			buf.WriteString("{}")
			return
		}
		buf.WriteByte('{')
		for i, m := range orderedMembers(v.members, opts.SortKeys) {
			if i > 0 {
				buf.WriteByte(',')
			}
			newline(buf, opts.Indent, depth+1)
			writeQuoted(buf, m.Key)
			buf.WriteByte(':')
			if opts.Indent != "" {
				buf.WriteByte(' ')
			}
			writeJSON(buf, m.Value, opts, depth+1)
		}
		newline(buf, opts.Indent, depth)
		buf.WriteByte('}')
	}
}

func newline(buf *bytes.Buffer, indent string, depth int) {
	if indent == "" {
		return
	}
	buf.WriteByte('\n')
	buf.WriteString(strings.Repeat(indent, depth))
}

// writeQuoted emits s as a JSON string without HTML escaping.
func writeQuoted(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	buf.Truncate(buf.Len() - 1)
}

func orderedMembers(members []Member, sorted bool) []Member {
	if !sorted {
		return members
	}
	out := append([]Member(nil), members...)
	slices.SortStableFunc(out, func(a, b Member) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// MarshalJSON implements json.Marshaler with compact output.
func (v Value) MarshalJSON() ([]byte, error) {
	return EncodeJSON(v, EncodeOptions{}), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// Render returns an indented, key-sorted JSON rendering suitable for humans
// and for line diffs.
func Render(v Value) string {
	return string(EncodeJSON(v, EncodeOptions{Indent: "  ", SortKeys: true}))
}

// String implements fmt.Stringer with compact JSON.
func (v Value) String() string {
	return string(EncodeJSON(v, EncodeOptions{}))
}

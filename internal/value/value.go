// Package value models the structured output of the AST dump tool as a
// tagged variant so that comparison and serialization stay exhaustive.
package value

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// Null is the JSON null literal. The zero Value is Null.
	Null Kind = iota
	// Bool is true or false.
	Bool
	// Number is a decimal number kept alongside its literal text.
	Number
	// String is a Unicode string.
	String
	// Array is an ordered sequence of values.
	Array
	// Object is a mapping from string keys to values.
	Object
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable structured value. Objects remember member order for
// serialization, but equality does not depend on it.
type Value struct {
	kind    Kind
	b       bool
	s       string // string contents, or the literal text of a number
	num     decimal.Decimal
	items   []Value
	members []Member
}

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: String, s: s} }

// IntValue wraps an integer.
func IntValue(n int64) Value {
	return Value{kind: Number, s: strconv.FormatInt(n, 10), num: decimal.NewFromInt(n)}
}

// NumberValue parses a JSON number literal.
func NumberValue(lit string) (Value, error) {
	if !isJSONNumber(lit) {
		return Value{}, fmt.Errorf("value: invalid number literal %q", lit)
	}
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return Value{}, fmt.Errorf("value: invalid number literal %q: %w", lit, err)
	}
	return Value{kind: Number, s: lit, num: d}, nil
}

// MustNumber is NumberValue that panics on malformed input. Intended for
// literals in tests and tables.
func MustNumber(lit string) Value {
	v, err := NumberValue(lit)
	if err != nil {
		panic(err)
	}
	return v
}

// ArrayValue builds an array from the given items.
func ArrayValue(items ...Value) Value {
	return Value{kind: Array, items: append([]Value(nil), items...)}
}

// ObjectValue builds an object. A repeated key replaces the earlier value but
// keeps the earlier position.
func ObjectValue(members ...Member) Value {
	out := Value{kind: Object, members: make([]Member, 0, len(members))}
	for _, m := range members {
		out.members = setMember(out.members, m.Key, m.Value)
	}
	return out
}

// M is shorthand for constructing a Member.
func M(key string, v Value) Member { return Member{Key: key, Value: v} }

func setMember(members []Member, key string, v Value) []Member {
	for i := range members {
		if members[i].Key == key {
			members[i].Value = v
			return members
		}
	}
	return append(members, Member{Key: key, Value: v})
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == Null }

// Bool returns the boolean payload; false for other kinds.
func (v Value) Bool() bool { return v.kind == Bool && v.b }

// Str returns the string payload; empty for other kinds.
func (v Value) Str() string {
	if v.kind != String {
		return ""
	}
	return v.s
}

// Decimal returns the numeric payload; zero for other kinds.
func (v Value) Decimal() decimal.Decimal {
	if v.kind != Number {
		return decimal.Zero
	}
	return v.num
}

// Literal returns the number literal as it was decoded or constructed.
func (v Value) Literal() string {
	if v.kind != Number {
		return ""
	}
	return v.s
}

// Len returns the number of items or members; zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.items)
	case Object:
		return len(v.members)
	default:
		return 0
	}
}

// Items returns a copy of the array items.
func (v Value) Items() []Value {
	if v.kind != Array {
		return nil
	}
	return append([]Value(nil), v.items...)
}

// Index returns the i-th array item.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != Array || i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// Members returns a copy of the object members in insertion order.
func (v Value) Members() []Member {
	if v.kind != Object {
		return nil
	}
	return append([]Member(nil), v.members...)
}

// Get looks up an object member by key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Equal reports deep structural equality. Object member order is ignored,
// array order is not, numbers compare by exact decimal value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Number:
		return a.num.Equal(b.num)
	case String:
		return a.s == b.s
	case Array:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.members) != len(b.members) {
			return false
		}
		for _, m := range a.members {
			other, ok := b.Get(m.Key)
			if !ok || !Equal(m.Value, other) {
				return false
			}
		}
		return true
	default:
		panic(fmt.Sprintf("value: unhandled kind %v", a.kind))
	}
}

// Equal reports whether v and other are deeply equal.
func (v Value) Equal(other Value) bool { return Equal(v, other) }

// isJSONNumber validates the RFC 8259 number grammar.
func isJSONNumber(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	if i >= len(s) {
		return false
	}
	switch {
	case s[i] == '0':
		i++
	case s[i] >= '1' && s[i] <= '9':
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	default:
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

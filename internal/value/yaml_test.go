package value

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestYAMLRoundTrip(t *testing.T) {
	v := ObjectValue(
		M("op", StringValue("SELECT")),
		M("looks_like_bool", StringValue("true")),
		M("looks_like_int", StringValue("123")),
		M("looks_like_null", StringValue("null")),
		M("multiline", StringValue("SELECT 1\nFROM t\n")),
		M("only_newline", StringValue("\n")),
		M("only_newlines", StringValue("\n\n")),
		M("leading_newline", StringValue("\nx")),
		M("leading_space", StringValue("  x\ny")),
		M("trailing_newlines", StringValue("x\n\n")),
		M("crlf", StringValue("a\r\nb")),
		M("flags", ArrayValue(BoolValue(true), BoolValue(false), NullValue())),
		M("nums", ArrayValue(IntValue(0), MustNumber("-1.5"), MustNumber("1e3"))),
		M("empty_list", ArrayValue()),
		M("empty_map", ObjectValue()),
		M("nested", ObjectValue(M("args", ArrayValue(ObjectValue(M("op", StringValue("ID"))))))),
	)

	for _, sorted := range []bool{false, true} {
		out, err := yaml.Marshal(ToYAMLNode(v, sorted))
		if err != nil {
			t.Fatalf("yaml.Marshal() error = %v", err)
		}

		var node yaml.Node
		if err := yaml.Unmarshal(out, &node); err != nil {
			t.Fatalf("yaml.Unmarshal() error = %v\n%s", err, out)
		}
		back, err := FromYAMLNode(&node)
		if err != nil {
			t.Fatalf("FromYAMLNode() error = %v", err)
		}
		if diff := Diff(v, back); diff != "" {
			t.Errorf("YAML round trip mismatch (sorted=%v, -want +got):\n%s\nyaml:\n%s", sorted, diff, out)
		}
	}
}

func TestToYAMLNodeStringStyle(t *testing.T) {
	tests := []struct {
		in      string
		literal bool
	}{
		{"SELECT 1", false},
		{"SELECT 1\nFROM t\n", true},
		{"SELECT 1\nFROM t", true},
		{"\n", false},
		{"\nSELECT 1", false},
		{" SELECT\n1", false},
		{"SELECT 1\n\n", false},
		{"a\r\nb", false},
	}
	for _, tt := range tests {
		n := ToYAMLNode(StringValue(tt.in), false)
		if got := n.Style == yaml.LiteralStyle; got != tt.literal {
			t.Errorf("ToYAMLNode(%q) literal = %v, want %v", tt.in, got, tt.literal)
		}
	}
}

func TestFromYAMLScalars(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Value
	}{
		{"plain string", "hello", StringValue("hello")},
		{"int", "42", IntValue(42)},
		{"float", "2.5", MustNumber("2.5")},
		{"hex int", "0x1F", IntValue(31)},
		{"bool", "false", BoolValue(false)},
		{"tilde null", "~", NullValue()},
		{"empty document", "", NullValue()},
		{"quoted number", `"42"`, StringValue("42")},
		{"alias", "a: &x [1]\nb: *x\n", ObjectValue(M("a", ArrayValue(IntValue(1))), M("b", ArrayValue(IntValue(1))))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var node yaml.Node
			if err := yaml.Unmarshal([]byte(tt.src), &node); err != nil {
				t.Fatalf("yaml.Unmarshal() error = %v", err)
			}
			got, err := FromYAMLNode(&node)
			if err != nil {
				t.Fatalf("FromYAMLNode() error = %v", err)
			}
			if !Equal(tt.want, got) {
				t.Fatalf("FromYAMLNode(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestFromYAMLRejects(t *testing.T) {
	for _, src := range []string{".inf", "[.nan]", "? [a]\n: b\n"} {
		var node yaml.Node
		if err := yaml.Unmarshal([]byte(src), &node); err != nil {
			t.Fatalf("yaml.Unmarshal(%q) error = %v", src, err)
		}
		if _, err := FromYAMLNode(&node); err == nil {
			t.Errorf("FromYAMLNode(%q) succeeded, want error", src)
		}
	}
}

func TestValueYAMLInterfaces(t *testing.T) {
	type envelope struct {
		SQL string `yaml:"sql"`
		AST Value  `yaml:"ast"`
	}

	in := envelope{SQL: "SELECT 1", AST: ObjectValue(M("op", StringValue("SELECT")))}
	out, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if !strings.Contains(string(out), "op: SELECT") {
		t.Fatalf("unexpected YAML:\n%s", out)
	}

	var back envelope
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if back.SQL != in.SQL || !Equal(back.AST, in.AST) {
		t.Fatalf("round trip = %+v", back)
	}
}

func TestFromYAMLRecursiveAlias(t *testing.T) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("a: &x [1, *x]\n"), &node); err != nil {
		t.Skipf("yaml parser rejected the document itself: %v", err)
	}
	if _, err := FromYAMLNode(&node); err == nil {
		t.Fatal("FromYAMLNode() succeeded on a self-referential alias")
	}
}

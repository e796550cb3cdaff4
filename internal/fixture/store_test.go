package fixture

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/electwix/astconform/internal/value"
)

func selectLiteral() Fixture {
	return Fixture{
		Name: "select_literal",
		SQL:  "SELECT 1",
		AST: value.ObjectValue(
			value.M("op", value.StringValue("SELECT")),
			value.M("columns", value.ArrayValue(value.ObjectValue(
				value.M("op", value.StringValue("INTEGER")),
				value.M("value", value.IntValue(1)),
			))),
		),
	}
}

const selectLiteralJSON = `{
  "sql": "SELECT 1",
  "ast": {
    "op": "SELECT",
    "columns": [
      {
        "op": "INTEGER",
        "value": 1
      }
    ]
  }
}
`

func TestSaveWritesStableJSON(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Save(selectLiteral()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(store.Dir(), "select_literal.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if diff := cmp.Diff(selectLiteralJSON, string(data)); diff != "" {
		t.Fatalf("fixture file mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveSortKeys(t *testing.T) {
	store := NewStore(t.TempDir(), WithSortKeys(true))
	if err := store.Save(selectLiteral()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(store.Path("select_literal"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if strings.Index(string(data), `"columns"`) > strings.Index(string(data), `"op": "SELECT"`) {
		t.Fatalf("keys not sorted:\n%s", data)
	}
	if !strings.HasPrefix(string(data), "{\n  \"sql\": ") {
		t.Fatalf("sql must stay the first field:\n%s", data)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			store := NewStore(t.TempDir(), WithFormat(format))
			want := selectLiteral()
			want.SQL = "SELECT a,\n  \"quoted\" -- comment\nFROM t"

			if err := store.Save(want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := store.Load(want.Name)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Name != want.Name || got.SQL != want.SQL {
				t.Fatalf("Load() = %q %q, want %q %q", got.Name, got.SQL, want.Name, want.SQL)
			}
			if diff := value.Diff(want.AST, got.AST); diff != "" {
				t.Fatalf("AST mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoundTripLeadingNewlines(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			store := NewStore(t.TempDir(), WithFormat(format))
			want := Fixture{
				Name: "leading_newline",
				SQL:  "\nSELECT 1\n",
				AST: value.ArrayValue(
					value.StringValue("\n"),
					value.StringValue("\n\n"),
					value.StringValue("\nx"),
					value.StringValue("x\n\n"),
					value.StringValue("  indented\nx"),
				),
			}

			if err := store.Save(want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := store.Load(want.Name)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.SQL != want.SQL {
				t.Fatalf("SQL = %q, want %q", got.SQL, want.SQL)
			}
			if diff := value.Diff(want.AST, got.AST); diff != "" {
				t.Fatalf("AST mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOSWriterMkdirError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := NewStore(blocker).Save(selectLiteral())
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("Save() error = %v, want WriteError", err)
	}
	if n := strings.Count(err.Error(), "mkdir "); n != 1 {
		t.Fatalf("Save() error = %q, want a single mkdir prefix", err)
	}
}

func TestIdempotentRegeneration(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			store := NewStore(t.TempDir(), WithFormat(format))
			if err := store.Save(selectLiteral()); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			first, err := os.ReadFile(store.Path("select_literal"))
			if err != nil {
				t.Fatal(err)
			}

			reloaded, err := store.Load("select_literal")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if err := store.Save(reloaded); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			second, err := os.ReadFile(store.Path("select_literal"))
			if err != nil {
				t.Fatal(err)
			}
			if string(first) != string(second) {
				t.Fatalf("regeneration changed the file:\n%s\n---\n%s", first, second)
			}
			if !strings.HasSuffix(string(second), "\n") {
				t.Fatalf("missing trailing newline")
			}
		})
	}
}

func TestNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "c.yaml", "notes.txt", ".json", ".hidden.json", ".astconform-123", "z.json.bak"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "d.json"), 0o750); err != nil {
		t.Fatal(err)
	}

	names, err := NewStore(dir).Names()
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Fatalf("Names() mismatch (-want +got):\n%s", diff)
	}

	yamlNames, err := NewStore(dir, WithFormat(FormatYAML)).Names()
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if diff := cmp.Diff([]string{"c"}, yamlNames); diff != "" {
		t.Fatalf("Names() yaml mismatch (-want +got):\n%s", diff)
	}
}

func TestNamesMissingDir(t *testing.T) {
	names, err := NewStore(filepath.Join(t.TempDir(), "absent")).Names()
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("Names() = %v, want empty", names)
	}
}

func TestMatch(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, name := range []string{"select_literal", "select_star", "join_inner"} {
		f := selectLiteral()
		f.Name = name
		if err := store.Save(f); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name     string
		patterns []string
		want     []string
		wantErr  any
	}{
		{"all", nil, []string{"join_inner", "select_literal", "select_star"}, nil},
		{"prefix", []string{"select_*"}, []string{"select_literal", "select_star"}, nil},
		{"overlap dedup", []string{"select_*", "*_star"}, []string{"select_literal", "select_star"}, nil},
		{"exact", []string{"join_inner"}, []string{"join_inner"}, nil},
		{"no match", []string{"select_*", "update_*"}, nil, &NoMatchError{}},
		{"bad pattern", []string{"[a-"}, nil, &PatternError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Match(tt.patterns)
			switch want := tt.wantErr.(type) {
			case *NoMatchError:
				if !errors.As(err, want) {
					t.Fatalf("error = %v, want NoMatchError", err)
				}
				if diff := cmp.Diff([]string{"update_*"}, want.Patterns); diff != "" {
					t.Fatalf("missing patterns mismatch:\n%s", diff)
				}
				return
			case *PatternError:
				if !errors.As(err, want) {
					t.Fatalf("error = %v, want PatternError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Match() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "SELECT 1"},
		{"truncated", `{"sql": "SELECT 1", "ast": {`},
		{"array record", `[1]`},
		{"missing ast", `{"sql": "SELECT 1"}`},
		{"missing sql", `{"ast": null}`},
		{"sql not string", `{"sql": 1, "ast": null}`},
		{"extra field", `{"sql": "SELECT 1", "ast": null, "note": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(t.TempDir())
			if err := os.WriteFile(store.Path("broken"), []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := store.Load("broken")
			if !errors.Is(err, ErrFixtureDecode) {
				t.Fatalf("Load() error = %v, want ErrFixtureDecode", err)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) || decodeErr.Path != store.Path("broken") {
				t.Fatalf("Load() error = %#v", err)
			}
		})
	}
}

func TestLoadNullAST(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := os.WriteFile(store.Path("null_ast"), []byte(`{"sql": "SELECT 1", "ast": null}`), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := store.Load("null_ast")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !f.AST.IsNull() {
		t.Fatalf("AST = %s, want null", f.AST)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := NewStore(t.TempDir()).Load("absent")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load() error = %v, want ErrNotExist", err)
	}
	if errors.Is(err, ErrFixtureDecode) {
		t.Fatalf("missing file reported as decode error")
	}
}

type failingWriter struct{ err error }

func (w failingWriter) WriteFile(string, []byte) error { return w.err }

func TestSaveWriterFailure(t *testing.T) {
	boom := errors.New("disk full")
	store := NewStore(t.TempDir(), WithWriter(failingWriter{err: boom}))

	err := store.Save(selectLiteral())
	var writeErr *WriteError
	if !errors.As(err, &writeErr) || !errors.Is(err, boom) {
		t.Fatalf("Save() error = %v, want WriteError wrapping %v", err, boom)
	}
	if _, statErr := os.Stat(store.Path("select_literal")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("fixture file exists after failed save")
	}
}

func TestAtomicWriterLeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "fixtures")
	store := NewStore(dir)
	if err := store.Save(selectLiteral()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "select_literal.json" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestRemove(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save(selectLiteral()); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove("select_literal"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := store.Remove("select_literal"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("second Remove() error = %v, want ErrNotExist", err)
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../x", "nul\x00"} {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
	for _, name := range []string{"select_literal", "a.b", "join-inner", "ünïcode"} {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v", name, err)
		}
	}

	store := NewStore(t.TempDir())
	bad := selectLiteral()
	bad.Name = "../escape"
	if err := store.Save(bad); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Save() error = %v, want ErrInvalidName", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yaml": FormatYAML, "yml": FormatYAML}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Error("ParseFormat(toml) succeeded")
	}
}

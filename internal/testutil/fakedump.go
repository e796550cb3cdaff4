package testutil

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/electwix/astconform/internal/invoker"
	"github.com/electwix/astconform/internal/value"
)

const fakeDumpEnv = "ASTCONFORM_FAKE_DUMP_AST"

// Queries with special meaning to the fake dump tool.
const (
	// QueryHang never finishes on its own.
	QueryHang = "SELECT sleep_forever()"
	// QueryGarbage exits 0 after printing text that is not JSON.
	QueryGarbage = "SELECT garbage_output()"
	// QueryNondeterministic embeds the current time in its AST.
	QueryNondeterministic = "SELECT random()"
)

// RunFakeDumpASTIfRequested turns the current test binary into the fake dump
// tool when it was started by FakeDumpAST. Call it first thing in TestMain.
func RunFakeDumpASTIfRequested() {
	if os.Getenv(fakeDumpEnv) != "1" {
		return
	}
	os.Exit(FakeDumpASTMain(os.Args[1:], os.Stdout, os.Stderr))
}

// FakeDumpAST returns a command that re-executes the test binary as the fake
// dump tool. The calling package must invoke RunFakeDumpASTIfRequested from
// its TestMain.
func FakeDumpAST(t testing.TB) invoker.Command {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("locate test binary: %v", err)
	}
	return invoker.Command{Path: exe, Env: []string{fakeDumpEnv + "=1"}}
}

// FakeDumpASTPath marks the test's environment so that children of the test
// binary act as the fake dump tool, and returns the binary's path. Use it when
// the command is assembled from configuration rather than FakeDumpAST.
func FakeDumpASTPath(t testing.TB) string {
	t.Helper()
	cmd := FakeDumpAST(t)
	t.Setenv(fakeDumpEnv, "1")
	return cmd.Path
}

// FakeDumpASTMain mimics the contract of the real tool for a toy grammar:
// "SELECT term[, term...]" where a term is an integer or an identifier.
// Anything else is rejected on stderr with exit status 1.
func FakeDumpASTMain(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: dump_ast 'SQL query'")
		return 1
	}
	sql := args[0]

	switch sql {
	case QueryHang:
		time.Sleep(time.Hour)
		return 0
	case QueryGarbage:
		_, _ = fmt.Fprintln(stdout, `{"op": "SELECT", `)
		return 0
	}

	ast, err := fakeParse(sql)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Parse error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "%s\n", value.EncodeJSON(ast, value.EncodeOptions{Indent: "  "}))
	return 0
}

// FakeAST returns the AST the fake tool prints for sql.
func FakeAST(sql string) (value.Value, error) {
	return fakeParse(sql)
}

func fakeParse(sql string) (value.Value, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	keyword, rest, _ := strings.Cut(trimmed, " ")
	if !strings.EqualFold(keyword, "SELECT") {
		if keyword == "" {
			return value.Value{}, fmt.Errorf("incomplete input")
		}
		return value.Value{}, fmt.Errorf("near %q: syntax error", keyword)
	}

	distinct := false
	if head, tail, ok := strings.Cut(strings.TrimSpace(rest), " "); ok && strings.EqualFold(head, "DISTINCT") {
		distinct = true
		rest = tail
	}
	if strings.TrimSpace(rest) == "" {
		return value.Value{}, fmt.Errorf("incomplete input")
	}

	var columns []value.Value
	for _, raw := range strings.Split(rest, ",") {
		term := strings.TrimSpace(raw)
		expr, err := fakeTerm(term)
		if err != nil {
			return value.Value{}, err
		}
		columns = append(columns, value.ObjectValue(
			value.M("expr", expr),
			value.M("alias", value.NullValue()),
		))
	}

	return value.ObjectValue(
		value.M("op", value.StringValue("SELECT")),
		value.M("distinct", value.BoolValue(distinct)),
		value.M("columns", value.ArrayValue(columns...)),
		value.M("from", value.NullValue()),
		value.M("where", value.NullValue()),
	), nil
}

func fakeTerm(term string) (value.Value, error) {
	if term == "" {
		return value.Value{}, fmt.Errorf("near \",\": syntax error")
	}
	if n, err := strconv.ParseInt(term, 10, 64); err == nil {
		return value.ObjectValue(
			value.M("op", value.StringValue("INTEGER")),
			value.M("value", value.IntValue(n)),
		), nil
	}
	if name, ok := strings.CutSuffix(term, "()"); ok && isIdent(name) {
		fn := value.ObjectValue(
			value.M("op", value.StringValue("FUNCTION")),
			value.M("name", value.StringValue(name)),
			value.M("args", value.ArrayValue()),
		)
		if strings.EqualFold(name, "random") {
			fn = value.ObjectValue(
				value.M("op", value.StringValue("FUNCTION")),
				value.M("name", value.StringValue(name)),
				value.M("seed", value.IntValue(time.Now().UnixNano())),
			)
		}
		return fn, nil
	}
	if isIdent(term) {
		return value.ObjectValue(
			value.M("op", value.StringValue("ID")),
			value.M("name", value.StringValue(term)),
		), nil
	}
	return value.Value{}, fmt.Errorf("near %q: syntax error", term)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

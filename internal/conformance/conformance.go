// Package conformance replays stored fixtures through the dump tool and
// checks that the tool still produces exactly the recorded AST.
package conformance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/electwix/astconform/internal/fixture"
	"github.com/electwix/astconform/internal/invoker"
	"github.com/electwix/astconform/internal/value"
)

// ErrFixtureMismatch marks a fixture whose AST differs from the tool's output.
var ErrFixtureMismatch = errors.New("fixture mismatch")

// ErrNondeterministic marks a query whose output changed between invocations.
var ErrNondeterministic = errors.New("nondeterministic parser output")

// Parser produces the AST for one query.
type Parser interface {
	Parse(ctx context.Context, query string) (value.Value, error)
}

// Source lists and loads fixtures.
type Source interface {
	Names() ([]string, error)
	Load(name string) (fixture.Fixture, error)
}

// Case is one fixture to check. LoadErr is set when the fixture file could
// not be decoded; such a case fails on its own without affecting others.
type Case struct {
	Name     string
	SQL      string
	Expected value.Value
	LoadErr  error
}

// Cases derives one case per fixture in name order. Only a failure to list
// the fixtures is returned as an error.
func Cases(src Source) ([]Case, error) {
	names, err := src.Names()
	if err != nil {
		return nil, err
	}
	return CasesFor(src, names), nil
}

// CasesFor derives cases for the given names, in the order given.
func CasesFor(src Source, names []string) []Case {
	cases := make([]Case, 0, len(names))
	for _, name := range names {
		f, err := src.Load(name)
		if err != nil {
			cases = append(cases, Case{Name: name, LoadErr: err})
			continue
		}
		cases = append(cases, Case{Name: name, SQL: f.SQL, Expected: f.AST})
	}
	return cases
}

// InvocationError reports that the tool failed on a fixture's query.
type InvocationError struct {
	Name string
	SQL  string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("dump_ast failed for: %s\nstderr: %s", e.SQL, invoker.Diagnostic(e.Err))
}

func (e *InvocationError) Unwrap() error { return e.Err }

// MismatchError carries both ASTs of a failed comparison.
type MismatchError struct {
	Name     string
	SQL      string
	Expected value.Value
	Actual   value.Value
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "AST mismatch for: %s\n", e.SQL)
	fmt.Fprintf(&b, "Expected:\n%s\n", value.Render(e.Expected))
	fmt.Fprintf(&b, "Actual:\n%s\n", value.Render(e.Actual))
	fmt.Fprintf(&b, "Diff (-expected +actual):\n%s", e.Diff())
	return b.String()
}

// Diff returns a line diff of the canonical renderings.
func (e *MismatchError) Diff() string {
	return value.Diff(e.Expected, e.Actual)
}

func (e *MismatchError) Is(target error) bool { return target == ErrFixtureMismatch }

// Check invokes the parser on c's query and compares the result to the
// recorded AST.
func Check(ctx context.Context, p Parser, c Case) error {
	if c.LoadErr != nil {
		return c.LoadErr
	}
	actual, err := p.Parse(ctx, c.SQL)
	if err != nil {
		return &InvocationError{Name: c.Name, SQL: c.SQL, Err: err}
	}
	if !value.Equal(c.Expected, actual) {
		return &MismatchError{Name: c.Name, SQL: c.SQL, Expected: c.Expected, Actual: actual}
	}
	return nil
}

// CheckDeterminism invokes the parser n times (at least twice) on sql and
// fails if any output differs from the first.
func CheckDeterminism(ctx context.Context, p Parser, sql string, n int) error {
	if n < 2 {
		n = 2
	}
	first, err := p.Parse(ctx, sql)
	if err != nil {
		return &InvocationError{SQL: sql, Err: err}
	}
	for i := 1; i < n; i++ {
		next, err := p.Parse(ctx, sql)
		if err != nil {
			return &InvocationError{SQL: sql, Err: err}
		}
		if !value.Equal(first, next) {
			return fmt.Errorf("%w: run %d of %q differs from run 1:\n%s", ErrNondeterministic, i+1, sql, value.Diff(first, next))
		}
	}
	return nil
}

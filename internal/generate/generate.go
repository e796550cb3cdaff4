// Package generate records golden fixtures by running the dump tool once per
// query and storing whatever it prints.
package generate

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/electwix/astconform/internal/fixture"
	"github.com/electwix/astconform/internal/logging"
	"github.com/electwix/astconform/internal/value"
)

// maxLineBytes bounds a single batch line.
const maxLineBytes = 4 << 20

// Parser produces the AST for one query.
type Parser interface {
	Parse(ctx context.Context, query string) (value.Value, error)
}

// Store persists generated fixtures.
type Store interface {
	Save(f fixture.Fixture) error
}

// Generator runs the parser and saves fixtures. Progress lines go to the
// output stream ("  OK name: sql") and failures to the error stream
// ("FAIL name: diagnostic").
type Generator struct {
	parser Parser
	store  Store
	logger logging.Logger
	stdout io.Writer
	stderr io.Writer
}

// Option customizes a Generator.
type Option func(*Generator)

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) Option {
	return func(g *Generator) { g.logger = logging.OrNop(l) }
}

// WithOutput sets the operator-visible streams.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(g *Generator) {
		g.stdout = stdout
		g.stderr = stderr
	}
}

// New returns a Generator.
func New(parser Parser, store Store, opts ...Option) *Generator {
	g := &Generator{
		parser: parser,
		store:  store,
		logger: logging.NewNopLogger(),
		stdout: io.Discard,
		stderr: io.Discard,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate invokes the parser once for sql and stores the result under name,
// replacing any existing fixture. On failure nothing is written.
func (g *Generator) Generate(ctx context.Context, name, sql string) error {
	if err := g.generate(ctx, name, sql); err != nil {
		_, _ = fmt.Fprintf(g.stderr, "FAIL %s: %s\n", name, strings.TrimSpace(err.Error()))
		return fmt.Errorf("generate %s: %w", name, err)
	}
	_, _ = fmt.Fprintf(g.stdout, "  OK %s: %s\n", name, sql)
	return nil
}

func (g *Generator) generate(ctx context.Context, name, sql string) error {
	if err := fixture.ValidateName(name); err != nil {
		return err
	}
	ast, err := g.parser.Parse(ctx, sql)
	if err != nil {
		g.logger.Debug("parse failed", "name", name, "err", err)
		return err
	}
	if err := g.store.Save(fixture.Fixture{Name: name, SQL: sql, AST: ast}); err != nil {
		return err
	}
	g.logger.Debug("fixture written", "name", name)
	return nil
}

// Item is one line of batch input.
type Item struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// Outcome records what happened to one batch line.
type Outcome struct {
	Line int
	Item Item
	Err  error
}

// Report summarizes a batch run.
type Report struct {
	RunID    string
	Outcomes []Outcome
}

// Succeeded counts items written.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the outcomes that did not produce a fixture.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// ErrBadBatchLine marks an input line that is not a usable {"name","sql"} object.
var ErrBadBatchLine = errors.New("bad batch line")

// Batch reads newline-delimited JSON objects {"name": ..., "sql": ...} from r
// and generates each independently. Blank lines are skipped. A failing item
// is reported and processing continues with the next line. The returned error
// is non-nil only when r itself cannot be read or ctx is cancelled.
func (g *Generator) Batch(ctx context.Context, r io.Reader) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	logger := g.logger.With("run_id", report.RunID)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return report, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		item, err := parseItem(line)
		if err != nil {
			label := fmt.Sprintf("line %d", lineNo)
			_, _ = fmt.Fprintf(g.stderr, "FAIL %s: %v\n", label, err)
			report.Outcomes = append(report.Outcomes, Outcome{Line: lineNo, Err: err})
			continue
		}

		err = g.Generate(ctx, item.Name, item.SQL)
		report.Outcomes = append(report.Outcomes, Outcome{Line: lineNo, Item: item, Err: err})
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read batch input: %w", err)
	}

	logger.Info("batch finished", "items", len(report.Outcomes), "ok", report.Succeeded(), "failed", len(report.Failed()))
	return report, nil
}

func parseItem(line string) (Item, error) {
	var raw struct {
		Name *string `json:"name"`
		SQL  *string `json:"sql"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrBadBatchLine, err)
	}
	switch {
	case raw.Name == nil:
		return Item{}, fmt.Errorf("%w: missing \"name\"", ErrBadBatchLine)
	case raw.SQL == nil:
		return Item{}, fmt.Errorf("%w: missing \"sql\"", ErrBadBatchLine)
	}
	return Item{Name: *raw.Name, SQL: *raw.SQL}, nil
}

package conformance

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/electwix/astconform/internal/logging"
)

// RunOptions tunes Run.
type RunOptions struct {
	// Parallel marks every subtest with t.Parallel.
	Parallel bool
}

// Run registers one subtest per fixture, named after the fixture. Subtests
// fail independently; a fixture that cannot be decoded fails only its own
// subtest.
func Run(t *testing.T, p Parser, src Source, opts RunOptions) {
	t.Helper()
	cases, err := Cases(src)
	if err != nil {
		t.Fatalf("collect fixtures: %v", err)
	}
	if len(cases) == 0 {
		t.Skip("no fixtures found")
	}
	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			if opts.Parallel {
				t.Parallel()
			}
			if err := Check(t.Context(), p, c); err != nil {
				t.Fatal(err)
			}
		})
	}
}

// Result is the outcome of verifying one case.
type Result struct {
	Name     string
	SQL      string
	Err      error
	Duration time.Duration
}

// Passed reports whether the case succeeded.
func (r Result) Passed() bool { return r.Err == nil }

// VerifyOptions tunes Verify.
type VerifyOptions struct {
	// Jobs bounds concurrent invocations. Values below one mean one.
	Jobs int
	// Repeat, when at least two, additionally requires the tool to produce
	// the same AST on that many consecutive runs.
	Repeat int
	Logger logging.Logger
}

// Verify checks every case and returns results in case order. Failures are
// recorded per case and never stop the others.
func Verify(ctx context.Context, p Parser, cases []Case, opts VerifyOptions) []Result {
	logger := logging.OrNop(opts.Logger)
	results := make([]Result, len(cases))

	var g errgroup.Group
	g.SetLimit(max(opts.Jobs, 1))
	for i, c := range cases {
		g.Go(func() error {
			start := time.Now()
			err := Check(ctx, p, c)
			if err == nil && opts.Repeat >= 2 {
				err = CheckDeterminism(ctx, p, c.SQL, opts.Repeat)
			}
			results[i] = Result{Name: c.Name, SQL: c.SQL, Err: err, Duration: time.Since(start)}
			if err != nil {
				logger.Debug("fixture failed", "name", c.Name, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Counts returns how many results passed and failed.
func Counts(results []Result) (passed, failed int) {
	for _, r := range results {
		if r.Passed() {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

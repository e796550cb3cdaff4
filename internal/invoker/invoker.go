// Package invoker runs the external AST dump tool and decodes its output.
//
// Each call starts exactly one process with the SQL text as its final
// argument, waits for it under a wall-clock timeout, and never retries.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/electwix/astconform/internal/logging"
	"github.com/electwix/astconform/internal/value"
)

// DefaultTimeout bounds a single invocation of the tool.
const DefaultTimeout = 10 * time.Second

// waitDelay bounds how long Wait blocks on pipes held open by grandchildren
// after the tool itself has been killed.
const waitDelay = 500 * time.Millisecond

// Command describes how to start the tool.
type Command struct {
	// Path is the executable.
	Path string
	// Args are placed before the query argument.
	Args []string
	// Env is appended to the inherited environment.
	Env []string
}

// Result is the raw outcome of one invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Invoker runs a Command for each query.
type Invoker struct {
	cmd     Command
	timeout time.Duration
	logger  logging.Logger
}

// Option customizes an Invoker.
type Option func(*Invoker)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithLogger sets the logger used for per-invocation debug records.
func WithLogger(l logging.Logger) Option {
	return func(i *Invoker) { i.logger = logging.OrNop(l) }
}

// New returns an Invoker for cmd.
func New(cmd Command, opts ...Option) *Invoker {
	inv := &Invoker{
		cmd:     cmd,
		timeout: DefaultTimeout,
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Timeout returns the per-invocation deadline.
func (i *Invoker) Timeout() time.Duration { return i.timeout }

// Command returns the configured command.
func (i *Invoker) Command() Command { return i.cmd }

// Run starts the tool once and captures its streams. A nonzero exit status is
// reported in the Result, not as an error; errors are limited to spawn
// failures, timeouts and context cancellation.
func (i *Invoker) Run(ctx context.Context, query string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	args := append(append([]string(nil), i.cmd.Args...), query)
	cmd := exec.CommandContext(ctx, i.cmd.Path, args...)
	if len(i.cmd.Env) > 0 {
		cmd.Env = append(os.Environ(), i.cmd.Env...)
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return Result{}, i.abortError(ctx, query)
		}
		return Result{}, &SpawnError{Path: i.cmd.Path, Err: err}
	}
	err := cmd.Wait()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		i.logger.Debug("invocation aborted", "elapsed", elapsed, "err", ctxErr)
		return Result{}, i.abortError(ctx, query)
	}

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Result{}, &SpawnError{Path: i.cmd.Path, Err: err}
		}
		res.ExitCode = exitErr.ExitCode()
	}

	i.logger.Debug("invocation finished", "exit_code", res.ExitCode, "elapsed", elapsed, "stdout_bytes", len(res.Stdout))
	return res, nil
}

// abortError maps a finished context to the error reported for the query.
func (i *Invoker) abortError(ctx context.Context, query string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Query: query, Timeout: i.timeout}
	}
	return ctx.Err()
}

// Parse invokes the tool and decodes its standard output. It returns
// *RejectedError for a nonzero exit status and *MalformedOutputError when
// stdout is not exactly one JSON value.
func (i *Invoker) Parse(ctx context.Context, query string) (value.Value, error) {
	res, err := i.Run(ctx, query)
	if err != nil {
		return value.Value{}, err
	}
	if res.ExitCode != 0 {
		return value.Value{}, &RejectedError{Query: query, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	v, err := value.DecodeJSON([]byte(res.Stdout))
	if err != nil {
		return value.Value{}, &MalformedOutputError{Query: query, Stdout: res.Stdout, Err: err}
	}
	return v, nil
}

package invoker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvocationTimeout means the tool did not exit within the timeout.
	ErrInvocationTimeout = errors.New("invocation timed out")
	// ErrProcessSpawn means the tool could not be started at all.
	ErrProcessSpawn = errors.New("process spawn failed")
	// ErrParserRejected means the tool exited with a nonzero status.
	ErrParserRejected = errors.New("parser rejected query")
	// ErrMalformedOutput means the tool succeeded but stdout was not a JSON value.
	ErrMalformedOutput = errors.New("malformed parser output")
)

// TimeoutError reports a query whose invocation exceeded the deadline.
type TimeoutError struct {
	Query   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v after %s", ErrInvocationTimeout, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrInvocationTimeout }

// SpawnError wraps the failure to start the executable.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrProcessSpawn, e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrProcessSpawn }

// RejectedError carries the diagnostic the tool printed on stderr.
type RejectedError struct {
	Query    string
	ExitCode int
	Stderr   string
}

func (e *RejectedError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%v: exit status %d", ErrParserRejected, e.ExitCode)
	}
	return msg
}

func (e *RejectedError) Is(target error) bool { return target == ErrParserRejected }

// MalformedOutputError carries the decode failure and the raw stdout text.
type MalformedOutputError struct {
	Query  string
	Stdout string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("invalid JSON: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

func (e *MalformedOutputError) Is(target error) bool { return target == ErrMalformedOutput }

// Diagnostic returns the text worth showing an operator for err: the tool's
// stderr for rejections, the raw stdout for malformed output, and the error
// message otherwise.
func Diagnostic(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return strings.TrimSpace(rejected.Stderr)
	}
	var malformed *MalformedOutputError
	if errors.As(err, &malformed) {
		return fmt.Sprintf("%v\nstdout: %s", malformed.Err, malformed.Stdout)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

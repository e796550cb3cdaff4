// Package testutil provides helpers shared by package tests.
package testutil

import (
	"log/slog"
	"testing"

	"github.com/electwix/astconform/internal/logging"
)

// NewTestLogger returns a logger that writes to t.Log.
// Records only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) logging.Logger {
	t.Helper()
	return logging.NewSlogAdapter(slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

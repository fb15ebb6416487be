// Package dblog provides the categorised-message sink the engine emits
// to (spec §1: "the logging facility — the core emits categorised
// messages to an abstract sink"). Modeled on the teacher's
// internal/debug package, but as an engine-scoped interface rather than
// package-level globals (see spec §9's design note on singletons).
package dblog

import (
	"fmt"
	"log/slog"
	"os"
)

// Category classifies a log line the way the engine's callers (the
// executor, the buffer pool, the WAL) tag their own diagnostics.
type Category string

const (
	CategoryExec       Category = "exec"
	CategoryStorage    Category = "storage"
	CategoryBTree      Category = "btree"
	CategoryCatalog    Category = "catalog"
	CategoryConstraint Category = "constraint"
	CategoryWAL        Category = "wal"
)

// Sink is the abstract collaborator the core logs to. The REPL, a test
// harness, or a daemon can each supply their own implementation.
type Sink interface {
	Debug(cat Category, format string, args ...any)
	Info(cat Category, format string, args ...any)
	Warn(cat Category, format string, args ...any)
	Error(cat Category, format string, args ...any)
}

// slogSink adapts log/slog to the Sink interface; this is the default
// used by engine.Open when the caller doesn't supply one.
type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink builds a Sink backed by a text slog.Logger writing to
// os.Stderr at the given minimum level.
func NewSlogSink(level slog.Level) Sink {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &slogSink{logger: slog.New(h)}
}

func (s *slogSink) Debug(cat Category, format string, args ...any) {
	s.logger.Debug(fmt.Sprintf(format, args...), "category", string(cat))
}
func (s *slogSink) Info(cat Category, format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...), "category", string(cat))
}
func (s *slogSink) Warn(cat Category, format string, args ...any) {
	s.logger.Warn(fmt.Sprintf(format, args...), "category", string(cat))
}
func (s *slogSink) Error(cat Category, format string, args ...any) {
	s.logger.Error(fmt.Sprintf(format, args...), "category", string(cat))
}

// Discard is a Sink that drops every message; useful for tests.
type discardSink struct{}

func (discardSink) Debug(Category, string, ...any) {}
func (discardSink) Info(Category, string, ...any)  {}
func (discardSink) Warn(Category, string, ...any)  {}
func (discardSink) Error(Category, string, ...any) {}

// Discard is the shared no-op Sink.
var Discard Sink = discardSink{}

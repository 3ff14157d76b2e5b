package logging

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that records every entry, at every level, for
// assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a recording logger. Entries are kept unencoded, so
// redaction is not applied; AssertNoSecrets checks what callers passed in.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

// All returns every recorded entry.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message equals msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Reset drops recorded entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

func (t *TestLogger) matching(level zapcore.Level, snippet string) int {
	return t.observed.FilterLevelExact(level).FilterMessageSnippet(snippet).Len()
}

// AssertLogged fails tb unless an entry at level contains snippet.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if t.matching(level, snippet) == 0 {
		tb.Errorf("no %v entry containing %q; got %s", level, snippet, t.summary())
	}
}

// AssertNotLogged fails tb if an entry at level contains snippet.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if n := t.matching(level, snippet); n > 0 {
		tb.Errorf("found %d unexpected %v entries containing %q", n, level, snippet)
	}
}

// AssertField fails tb unless an entry with message msg carries key=expected.
// Context fields such as run.id are included.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected interface{}) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		if got, ok := entry.ContextMap()[key]; ok && fmt.Sprint(got) == fmt.Sprint(expected) {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v; got %s", msg, key, expected, t.summary())
}

// AssertNoSecrets fails tb if a recorded message or string field matches
// one of the default redaction patterns, or a sensitive key holds an
// unredacted value.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	rules := NewDefaultConfig().Redaction
	sensitive := make(map[string]bool, len(rules.Fields))
	for _, k := range rules.Fields {
		sensitive[strings.ToLower(k)] = true
	}
	patterns := make([]*regexp.Regexp, 0, len(rules.Patterns))
	for _, p := range rules.Patterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	leaks := func(s string) bool {
		for _, re := range patterns {
			if re.MatchString(s) {
				return true
			}
		}
		return false
	}

	for _, entry := range t.observed.All() {
		if leaks(entry.Message) {
			tb.Errorf("secret in message %q", entry.Message)
		}
		for _, f := range entry.Context {
			if f.Type != zapcore.StringType || f.String == "" {
				continue
			}
			if sensitive[strings.ToLower(f.Key)] && !redactedValue.MatchString(f.String) {
				tb.Errorf("sensitive field %q not redacted: %q", f.Key, f.String)
			}
			if leaks(f.String) {
				tb.Errorf("secret in field %q: %q", f.Key, f.String)
			}
		}
	}
}

var redactedValue = regexp.MustCompile(`^\[REDACTED(:\w+)?\]$`)

func (t *TestLogger) summary() string {
	entries := t.observed.All()
	msgs := make([]string, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, e.Level.String()+": "+e.Message)
	}
	return fmt.Sprintf("%q", msgs)
}

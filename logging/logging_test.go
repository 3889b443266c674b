package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		description   string
		input         string
		expected      zerolog.Level
		shouldBeError bool
	}{
		{description: "none", input: "none", expected: zerolog.Disabled},
		{description: "error", input: "error", expected: zerolog.ErrorLevel},
		{description: "warn", input: "warn", expected: zerolog.WarnLevel},
		{description: "info", input: "info", expected: zerolog.InfoLevel},
		{description: "debug with spaces and capitals", input: " DEBUG ", expected: zerolog.DebugLevel},
		{description: "unknown", input: "verbose", expected: zerolog.Disabled, shouldBeError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			l, err := ParseLevel(tc.input)
			if (err != nil) != tc.shouldBeError {
				t.Fatalf("expected error status of %v but got %v with error %v", tc.shouldBeError, err != nil, err)
			}
			if l != tc.expected {
				t.Errorf("expected level %v but got %v", tc.expected, l)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(LevelError)

	SetLevel(LevelDebug)
	if log.Logger.GetLevel() != zerolog.DebugLevel {
		t.Errorf("expected the debug level but got %v", log.Logger.GetLevel())
	}

	SetLevel("nonsense")
	if log.Logger.GetLevel() != zerolog.Disabled {
		t.Errorf("expected logging to be disabled but got %v", log.Logger.GetLevel())
	}
}

func TestKeyValueLogger(t *testing.T) {
	orig := log.Logger
	defer func() { log.Logger = orig }()

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf).Level(zerolog.InfoLevel)

	k := KeyValueLogger{Component: "vtom"}
	k.Debug("dropped", "a", 1)
	k.Warn("retrying", "attempt", 2, "url", "https://x", "dangling")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("expected a single JSON line but got %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":     "warn",
		"component": "vtom",
		"message":   "retrying",
		"attempt":   float64(2),
		"url":       "https://x",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected log line (-want +got):\n%s", diff)
	}
}

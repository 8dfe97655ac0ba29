package logging

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be a no-op when no level is configured")
	}
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer SetLogger(nil)

	core := GetLogger().Core()
	if !core.Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled")
	}
	if core.Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
}

func TestInitialize_UnknownLevel(t *testing.T) {
	if err := Initialize("verbose"); err == nil {
		t.Error("Initialize(verbose) should fail")
	}
}

func TestLogSubmissionResult(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogSubmission("contact", "https://formspree.io/f/test", url.Values{"email": {"a@b.c"}}, 1)
	LogSubmissionResult("contact", 1, 200, 10*time.Millisecond, nil)
	LogSubmissionResult("contact", 2, 422, 10*time.Millisecond, errors.New("Invalid email"))

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Message != "Submitting form" {
		t.Errorf("entry[0] = %q", entries[0].Message)
	}
	for _, f := range entries[0].Context {
		if f.Key == "fields" {
			continue
		}
		if f.String == "a@b.c" {
			t.Error("field values must not be logged")
		}
	}
	if entries[2].Level != zapcore.ErrorLevel {
		t.Errorf("failed submission logged at %v, want error", entries[2].Level)
	}
}

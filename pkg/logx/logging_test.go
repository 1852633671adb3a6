package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "poller"))

	log.Info("check #1", Uint64("check", 1), Strings("venues", []string{"a", "b"}), Err(nil))
	log.Warn("Error checking Alpha", Err(errors.New("boom")))

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if lines[0]["comp"] != "poller" || lines[0]["message"] != "check #1" || lines[0]["check"] != float64(1) {
		t.Fatalf("first line = %v", lines[0])
	}
	if _, ok := lines[0]["err"]; ok {
		t.Fatalf("nil error should not be logged: %v", lines[0])
	}
	if lines[1]["level"] != "warn" || lines[1]["err"] != "boom" {
		t.Fatalf("second line = %v", lines[1])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Debug("hidden")
	log.Info("hidden")
	log.Error("shown")

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 1 || lines[0]["message"] != "shown" {
		t.Fatalf("lines = %v", lines)
	}
	if log.Enabled(LevelInfo) || !log.Enabled(LevelError) {
		t.Fatal("Enabled disagrees with configured level")
	}
}

func TestZeroAndNopLoggers(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	zero.Info("dropped")
	if Nop().IsZero() {
		t.Fatal("Nop is an explicit logger, not the zero value")
	}
	Nop().With(String("k", "v")).Error("dropped")
}

func TestServiceFileSinkAndApply(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: first}})
	defer svc.Close()
	derived := log.With(String("comp", "app"))
	derived.Info("to first")

	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: second}})
	derived.Info("to second")
	derived.Debug("below level")

	b1, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if l := decodeLines(t, b1); len(l) != 1 || l[0]["message"] != "to first" {
		t.Fatalf("first = %v", l)
	}
	if l := decodeLines(t, b2); len(l) != 1 || l[0]["message"] != "to second" || l[0]["comp"] != "app" {
		t.Fatalf("second = %v", l)
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"", "info", "DEBUG", " warning ", "trace", "error"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	for _, s := range []string{"verbose", "fatal", "2"} {
		if ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = true", s)
		}
	}
}

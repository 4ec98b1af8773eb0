package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetLogger() {
	mu.Lock()
	defer mu.Unlock()
	global = nil
	atomicLevel = zap.NewAtomicLevel()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{"json info", "info", "json", zapcore.InfoLevel, false},
		{"console debug", "debug", "console", zapcore.DebugLevel, false},
		{"default format", "warn", "", zapcore.WarnLevel, false},
		{"invalid level", "loud", "json", 0, true},
		{"invalid format", "info", "xml", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, lvl, err := New(tt.level, tt.format, &buf)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if l == nil || lvl.Level() != tt.wantLevel {
				t.Fatalf("level = %v, want %v", lvl.Level(), tt.wantLevel)
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New("info", "json", &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Debug("hidden")
	l.Info("entity created", zap.String("full_code", "000000000001"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above debug, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "entity created" || entry["full_code"] != "000000000001" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestInitAndSetLevel(t *testing.T) {
	resetLogger()
	if err := Init("info", "json", &bytes.Buffer{}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if GetLevel() != zapcore.InfoLevel {
		t.Fatalf("GetLevel() = %v", GetLevel())
	}
	if err := SetLevel("error"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if GetLevel() != zapcore.ErrorLevel {
		t.Fatalf("GetLevel() = %v, want error", GetLevel())
	}
	if err := SetLevel("bogus"); err == nil {
		t.Fatalf("SetLevel(bogus) should fail")
	}
	if err := Init("nope", "json", &bytes.Buffer{}); err == nil {
		t.Fatalf("Init with bad level should fail")
	}
}

func TestLWithoutInit(t *testing.T) {
	resetLogger()
	if L() == nil {
		t.Fatalf("L() returned nil")
	}
	if err := Sync(); err != nil {
		t.Fatalf("Sync() on nil logger error = %v", err)
	}
}

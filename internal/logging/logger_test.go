package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSetAndGetLogger(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	customLogger := slog.New(slog.NewJSONHandler(&buf, nil))

	SetLogger(customLogger)

	if got := Logger(); got != customLogger {
		t.Error("Logger() did not return the logger set by SetLogger()")
	}
}

func TestSetOutput(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetOutput(&buf)

	Info("stake refreshed", "count", 3)

	output := buf.String()
	if !strings.Contains(output, "stake refreshed") {
		t.Errorf("expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, `"count"`) {
		t.Errorf("expected output to contain key, got: %s", output)
	}

	buf.Reset()
	Debug("should not appear")
	if buf.Len() > 0 {
		t.Error("Debug messages should not appear at Info level")
	}
}

func TestConfigure(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	tests := []struct {
		name      string
		level     string
		format    string
		wantText  string
		wantDebug bool
	}{
		{"json info", "info", "json", `"msg":"hello"`, false},
		{"text debug", "debug", "text", "msg=hello", true},
		{"unknown format falls back to json", "warn", "xml", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Configure(&buf, tt.level, tt.format); err != nil {
				t.Fatalf("Configure: %v", err)
			}

			Info("hello")
			if tt.wantText != "" && !strings.Contains(buf.String(), tt.wantText) {
				t.Errorf("expected %q in output, got: %s", tt.wantText, buf.String())
			}

			buf.Reset()
			Debug("dbg")
			if got := buf.Len() > 0; got != tt.wantDebug {
				t.Errorf("debug emitted = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := Configure(&buf, "loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogLevels(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetTextOutput(&buf)

	tests := []struct {
		name    string
		logFunc func(string, ...any)
		level   string
	}{
		{"Debug", Debug, "DEBUG"},
		{"Info", Info, "INFO"},
		{"Warn", Warn, "WARN"},
		{"Error", Error, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc(tt.name+" test message", "key", "val")
			output := buf.String()
			if !strings.Contains(output, tt.name+" test message") {
				t.Errorf("expected output to contain message, got: %s", output)
			}
			if !strings.Contains(output, tt.level) {
				t.Errorf("expected output to contain level %s, got: %s", tt.level, output)
			}
		})
	}
}

func TestWith(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetTextOutput(&buf)

	With(Component("ledger")).Info("with context")
	output := buf.String()
	if !strings.Contains(output, "component=ledger") {
		t.Errorf("expected output to contain component, got: %s", output)
	}
}

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		attr slog.Attr
		key  string
		val  string
	}{
		{Account("0xabc"), "account", "0xabc"},
		{TxHash("0xdef"), "tx_hash", "0xdef"},
		{Method("totalStaked"), "method", "totalStaked"},
		{Component("stats"), "component", "stats"},
		{Err(errors.New("boom")), "error", "boom"},
		{Err(nil), "error", ""},
	}
	for _, tt := range tests {
		if tt.attr.Key != tt.key {
			t.Errorf("key = %s, want %s", tt.attr.Key, tt.key)
		}
		if tt.attr.Value.String() != tt.val {
			t.Errorf("%s value = %s, want %s", tt.key, tt.attr.Value.String(), tt.val)
		}
	}
}

func TestAudit(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetOutput(&buf)

	hash := "0x" + strings.Repeat("ab", 32)
	Audit(AuditEvent{Operation: "claim", Account: "0x1", Target: "2", Result: "confirmed", TxHashes: []string{hash, hash}})

	output := buf.String()
	for _, want := range []string{`"audit":true`, `"operation":"claim"`, `"result":"confirmed"`, `"tx_hashes":"` + hash + "," + hash + `"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestConcurrentLogging(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf syncBuffer
	SetOutput(&buf)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			Info("concurrent message", "goroutine", n)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if buf.Len() == 0 {
		t.Error("expected some log output from concurrent logging")
	}
}

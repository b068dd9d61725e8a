package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewRedactingHandler(slog.NewJSONHandler(buf, nil)))
}

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestRedact_NormalValuesPassThrough(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).Info("stake", "amount", "100", "days", 30)

	out := buf.String()
	if !strings.Contains(out, `"amount":"100"`) || !strings.Contains(out, `"days":30`) {
		t.Errorf("normal values should pass through, got: %s", out)
	}
}

func TestRedact_SensitiveFieldNames(t *testing.T) {
	for _, key := range []string{"password", "wallet_password", "private_key", "keystore_passphrase"} {
		var buf bytes.Buffer
		newTestLogger(&buf).Info("x", key, "hunter2")
		if strings.Contains(buf.String(), "hunter2") {
			t.Errorf("%s should be redacted, got: %s", key, buf.String())
		}
	}
}

func TestRedact_PrivateKeyInValue(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).Info("import", "detail", "key=0x"+testKey)

	out := buf.String()
	if strings.Contains(out, testKey) {
		t.Errorf("private key leaked: %s", out)
	}
	if !strings.Contains(out, "0x4c08...2318") {
		t.Errorf("expected masked key, got: %s", out)
	}
}

func TestRedact_TxHashKeysKept(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).Info("mined", "tx_hash", "0x"+testKey)

	if !strings.Contains(buf.String(), testKey) {
		t.Errorf("tx hash should not be redacted, got: %s", buf.String())
	}
}

func TestRedact_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).With("password", "s3cret").Info("connect")

	if strings.Contains(buf.String(), "s3cret") {
		t.Errorf("WithAttrs should redact, got: %s", buf.String())
	}
}

func TestRedact_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).WithGroup("wallet").Info("connect", "password", "s3cret")

	out := buf.String()
	if strings.Contains(out, "s3cret") {
		t.Errorf("grouped attr should be redacted, got: %s", out)
	}
	if !strings.Contains(out, `"wallet"`) {
		t.Errorf("expected group name in output, got: %s", out)
	}
}

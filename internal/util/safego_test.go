package util

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dsistake/dsistake/internal/logging"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSafeGoWithName(t *testing.T) {
	done := make(chan struct{})
	SafeGoWithName("test-goroutine", func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SafeGoWithName did not execute the function")
	}
}

func TestSafeGoWithNamePanicIsLogged(t *testing.T) {
	var out lockedBuffer
	logging.SetOutput(&out)
	defer logging.SetOutput(&bytes.Buffer{})

	finished := make(chan struct{})
	SafeGoWithName("stats-poller", func() {
		defer close(finished)
		panic("boom")
	})

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine did not finish")
	}

	// The recover runs after the deferred close; poll briefly for the log line.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), "stats-poller") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected panic log naming the goroutine, got %q", out.String())
}

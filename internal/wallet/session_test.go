package wallet

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.yaml")
	forgot := 0
	store := &SessionStore{path: path, forget: func() error { forgot++; return nil }}

	empty, err := store.Load()
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if empty.CachedProvider {
		t.Error("missing session should not have a cached provider")
	}

	connected := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := SessionState{CachedProvider: true, Account: "0xabc", ConnectedAt: connected}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.CachedProvider || got.Account != "0xabc" || !got.ConnectedAt.Equal(connected) {
		t.Errorf("Load = %+v", got)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("session file should be removed")
	}
	if forgot != 1 {
		t.Errorf("stored password removed %d times, want 1", forgot)
	}

	// Clearing twice is fine.
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestSessionStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	writeFile(t, path, "cached_provider: [")
	if _, err := NewSessionStore(path).Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

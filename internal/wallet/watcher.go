package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fsnotify/fsnotify"

	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/util"
)

// EventKind identifies what changed.
type EventKind int

const (
	// AccountsChanged: the keystore now holds a different set of accounts.
	AccountsChanged EventKind = iota
	// ChainChanged: the configured chain id changed.
	ChainChanged
	// Disconnected: the keystore is empty.
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case AccountsChanged:
		return "accounts_changed"
	case ChainChanged:
		return "chain_changed"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is a wallet notification.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  int64
}

// ChainIDFunc re-reads the configured chain id after the config file changes.
type ChainIDFunc func() (int64, error)

// Watcher reports keystore and config changes as Events.
type Watcher struct {
	keystoreDir string
	configPath  string
	chainID     ChainIDFunc

	fs     *fsnotify.Watcher
	events chan Event
	done   chan struct{}

	accounts    []common.Address
	lastChainID int64

	closeOnce sync.Once
}

// NewWatcher watches keystoreDir and, when configPath is set, the config
// file's directory. chainID may be nil if chain changes are not of interest.
func NewWatcher(keystoreDir, configPath string, chainID ChainIDFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fw.Add(keystoreDir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch keystore: %w", err)
	}
	if configPath != "" {
		if err := fw.Add(filepath.Dir(configPath)); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch config directory: %w", err)
		}
	}

	w := &Watcher{
		keystoreDir: keystoreDir,
		configPath:  filepath.Clean(configPath),
		chainID:     chainID,
		fs:          fw,
		events:      make(chan Event, 8),
		done:        make(chan struct{}),
	}
	w.accounts, _ = ListAccounts(keystoreDir)
	if chainID != nil {
		w.lastChainID, _ = chainID()
	}
	return w, nil
}

// Events returns the notification channel. It is closed when the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start runs the watch loop until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	util.SafeGoWithName("wallet-watcher", func() {
		defer close(w.events)
		w.loop(ctx)
	})
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if out, ok := w.handle(ev); ok {
				select {
				case w.events <- out:
				case <-ctx.Done():
					return
				case <-w.done:
					return
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warn("wallet watcher error", logging.Component("watcher"), logging.Err(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) (Event, bool) {
	name := filepath.Clean(ev.Name)

	if w.configPath != "." && name == w.configPath {
		if w.chainID == nil || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
			return Event{}, false
		}
		id, err := w.chainID()
		if err != nil {
			logging.Warn("failed to reload chain id", logging.Component("watcher"), logging.Err(err))
			return Event{}, false
		}
		if id == w.lastChainID {
			return Event{}, false
		}
		w.lastChainID = id
		return Event{Kind: ChainChanged, ChainID: id}, true
	}

	if filepath.Dir(name) != filepath.Clean(w.keystoreDir) {
		return Event{}, false
	}
	accounts, err := ListAccounts(w.keystoreDir)
	if err != nil {
		logging.Warn("failed to list keystore accounts", logging.Component("watcher"), logging.Err(err))
		return Event{}, false
	}
	if slices.Equal(accounts, w.accounts) {
		return Event{}, false
	}
	w.accounts = accounts
	if len(accounts) == 0 {
		return Event{Kind: Disconnected}, true
	}
	return Event{Kind: AccountsChanged, Accounts: accounts}, true
}

// ListAccounts returns the addresses of the key files in dir without
// decrypting them. Files that are not keystore JSON are skipped.
func ListAccounts(dir string) ([]common.Address, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var accounts []common.Address
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var key struct {
			Address string `json:"address"`
		}
		if json.Unmarshal(data, &key) != nil || !common.IsHexAddress(key.Address) {
			continue
		}
		accounts = append(accounts, common.HexToAddress(key.Address))
	}
	sort.Slice(accounts, func(i, j int) bool { return bytes.Compare(accounts[i][:], accounts[j][:]) < 0 })
	return accounts, nil
}

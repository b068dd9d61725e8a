// Package wallet owns the local signing identity: the encrypted keystore, the
// stored keystore password, the persisted session flag and the file watcher
// that reports account and network changes.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoWallet is returned when the keystore directory holds no account.
var ErrNoWallet = errors.New("no wallet found")

// Scrypt parameters for new keys. Tests lower these.
var (
	scryptN = keystore.StandardScryptN
	scryptP = keystore.StandardScryptP
)

// Manager wraps a single-account keystore directory.
type Manager struct {
	keystore *keystore.KeyStore
	dir      string
	address  common.Address

	mu         sync.Mutex
	privateKey *ecdsa.PrivateKey
}

func openKeystore(dir string) (*keystore.KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return keystore.NewKeyStore(dir, scryptN, scryptP), nil
}

// Load opens the first account in dir. It returns ErrNoWallet when the
// directory is empty.
func Load(dir string) (*Manager, error) {
	ks, err := openKeystore(dir)
	if err != nil {
		return nil, err
	}
	accounts := ks.Accounts()
	if len(accounts) == 0 {
		return nil, ErrNoWallet
	}
	return &Manager{keystore: ks, dir: dir, address: accounts[0].Address}, nil
}

// Create generates a new key in dir. It refuses to add a second account.
func Create(dir, password string) (*Manager, error) {
	ks, err := openKeystore(dir)
	if err != nil {
		return nil, err
	}
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("wallet already exists in %s", dir)
	}

	account, err := ks.NewAccount(password)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return &Manager{keystore: ks, dir: dir, address: account.Address}, nil
}

// Import stores a hex private key (with or without 0x) as the wallet in dir.
func Import(dir, privKeyHex, password string) (*Manager, error) {
	ks, err := openKeystore(dir)
	if err != nil {
		return nil, err
	}
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("wallet already exists in %s", dir)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	account, err := ks.ImportECDSA(key, password)
	if err != nil {
		return nil, fmt.Errorf("failed to import key: %w", err)
	}
	return &Manager{keystore: ks, dir: dir, address: account.Address}, nil
}

// Address returns the wallet address
func (m *Manager) Address() common.Address {
	return m.address
}

// Dir returns the keystore directory
func (m *Manager) Dir() string {
	return m.dir
}

// PrivateKey decrypts the key with password and caches it until ClearCachedKey.
func (m *Manager) PrivateKey(password string) (*ecdsa.PrivateKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.privateKey != nil {
		return m.privateKey, nil
	}

	accounts := m.keystore.Accounts()
	if len(accounts) == 0 {
		return nil, ErrNoWallet
	}
	account := accounts[0]
	keyJSON, err := os.ReadFile(account.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	m.privateKey = key.PrivateKey
	return key.PrivateKey, nil
}

// ClearCachedKey zeros and drops the cached private key.
func (m *Manager) ClearCachedKey() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.privateKey != nil {
		m.privateKey.D.SetUint64(0)
		m.privateKey = nil
	}
}

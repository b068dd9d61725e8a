package wallet

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/99designs/keyring"
)

const (
	keyringServiceName = "dsistake"
	walletPasswordKey  = "wallet-password"
)

// StorePassword saves the keystore password in the platform keyring, falling
// back to the Linux kernel keyring. It returns the backend used.
func StorePassword(password string) (string, error) {
	ring, backend, err := openKeyring()
	if err == nil {
		err = ring.Set(keyring.Item{
			Key:         walletPasswordKey,
			Data:        []byte(password),
			Label:       "DSI Staking Wallet Password",
			Description: "Password for the dsistake wallet keystore",
		})
		if err == nil {
			return backend, nil
		}
	}

	if kerr := storeKernelKeyring(password); kerr != nil {
		return "", fmt.Errorf("no password store available: %w", errors.Join(err, kerr))
	}
	return "kernel keyring", nil
}

// RetrievePassword returns the stored password, or "" when none is stored.
func RetrievePassword() (string, error) {
	ring, _, err := openKeyring()
	if err == nil {
		item, gerr := ring.Get(walletPasswordKey)
		switch {
		case gerr == nil:
			return string(item.Data), nil
		case !errors.Is(gerr, keyring.ErrKeyNotFound):
			err = gerr
		}
	}

	pw, kerr := retrieveKernelKeyring()
	if kerr == nil {
		return pw, nil
	}
	if err != nil {
		return "", err
	}
	return "", nil
}

// DeletePassword removes the stored password from every backend.
func DeletePassword() error {
	var errs []error
	if ring, _, err := openKeyring(); err == nil {
		if rerr := ring.Remove(walletPasswordKey); rerr != nil && !errors.Is(rerr, keyring.ErrKeyNotFound) {
			errs = append(errs, rerr)
		}
	}
	if err := deleteKernelKeyring(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func openKeyring() (keyring.Keyring, string, error) {
	backends := platformKeyringBackends()
	if len(backends) == 0 {
		return nil, "", fmt.Errorf("no keyring backend available on %s", runtime.GOOS)
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:                    keyringServiceName,
		AllowedBackends:                backends,
		KeychainTrustApplication:       true,
		KeychainAccessibleWhenUnlocked: true,
		KeychainSynchronizable:         false,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open keyring: %w", err)
	}
	return ring, keyringBackendName(), nil
}

func platformKeyringBackends() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		return []keyring.BackendType{keyring.KeychainBackend}
	case "linux":
		return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend}
	default:
		return nil
	}
}

func keyringBackendName() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "linux":
		return "Secret Service"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "system keyring"
	}
}

package wallet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dsistake/dsistake/internal/config"
	"github.com/dsistake/dsistake/internal/logging"
)

// ErrNoPassword is returned when no source yields a keystore password.
var ErrNoPassword = errors.New("wallet password not available")

// PasswordSource lists where to look for the keystore password, in order:
// environment, password file, keyring, then the interactive prompt.
type PasswordSource struct {
	File       string
	UseKeyring bool
	Prompt     func() (string, error)
}

// ResolvePassword returns the first password found in src.
func ResolvePassword(src PasswordSource) (string, error) {
	if pw, ok := config.PasswordFromEnv(); ok && pw != "" {
		return pw, nil
	}

	if src.File != "" {
		data, err := os.ReadFile(src.File)
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		if pw := strings.TrimRight(string(data), "\r\n"); pw != "" {
			return pw, nil
		}
	}

	if src.UseKeyring {
		pw, err := RetrievePassword()
		if err != nil {
			logging.Debug("keyring unavailable", logging.Err(err))
		} else if pw != "" {
			return pw, nil
		}
	}

	if src.Prompt != nil {
		return src.Prompt()
	}
	return "", ErrNoPassword
}

//go:build linux

package wallet

import (
	"fmt"
	"os/exec"
	"strings"
)

const kernelKeyName = "dsistake-wallet"

// The kernel keyring holds the password in the user session keyring until
// reboot. It needs the keyctl binary from keyutils.
func storeKernelKeyring(password string) error {
	cmd := exec.Command("keyctl", "padd", "user", kernelKeyName, "@u")
	cmd.Stdin = strings.NewReader(password)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("keyctl padd failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func retrieveKernelKeyring() (string, error) {
	out, err := exec.Command("keyctl", "search", "@u", "user", kernelKeyName).Output()
	if err != nil {
		return "", fmt.Errorf("keyctl search failed: %w", err)
	}
	out, err = exec.Command("keyctl", "pipe", strings.TrimSpace(string(out))).Output()
	if err != nil {
		return "", fmt.Errorf("keyctl pipe failed: %w", err)
	}
	return string(out), nil
}

func deleteKernelKeyring() error {
	out, err := exec.Command("keyctl", "search", "@u", "user", kernelKeyName).Output()
	if err != nil {
		return nil
	}
	_, err = exec.Command("keyctl", "unlink", strings.TrimSpace(string(out)), "@u").Output()
	return err
}

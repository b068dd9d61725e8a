//go:build !linux

package wallet

import "errors"

var errNoKernelKeyring = errors.New("kernel keyring is only available on Linux")

func storeKernelKeyring(string) error { return errNoKernelKeyring }

func retrieveKernelKeyring() (string, error) { return "", errNoKernelKeyring }

func deleteKernelKeyring() error { return nil }

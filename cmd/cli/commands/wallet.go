package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dsistake/dsistake/internal/config"
	"github.com/dsistake/dsistake/internal/wallet"
)

// NewWalletCmd creates the wallet command group
func NewWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the local signing wallet",
		Long: `Manage the Ethereum wallet used to approve, stake and claim.

The wallet is stored as an encrypted keystore file (geth V3 format).

The wallet password is stored in your platform keyring:
  macOS:          Keychain
  Linux (desktop): GNOME Keyring / KDE Wallet
  Linux (server):  kernel keyring (volatile, lost on reboot)

It can also come from the ` + config.PasswordEnvVar + ` environment
variable or wallet.password_file in config.yaml.

Examples:
  dsistake wallet create   # Generate a new wallet
  dsistake wallet import   # Import from a private key
  dsistake wallet show     # Show address and keystore path`,
	}

	cmd.AddCommand(newWalletCreateCmd())
	cmd.AddCommand(newWalletImportCmd())
	cmd.AddCommand(newWalletShowCmd())
	cmd.AddCommand(newWalletForgetPasswordCmd())

	return cmd
}

// existingWallet returns the wallet in dir, or nil when there is none.
func existingWallet(dir string) (*wallet.Manager, error) {
	wm, err := wallet.Load(dir)
	if errors.Is(err, wallet.ErrNoWallet) {
		return nil, nil
	}
	return wm, err
}

// storePasswordInKeyring saves the password for unattended unlocks, or
// explains the alternatives when no keyring is available.
func storePasswordInKeyring(password string) {
	if backend, err := wallet.StorePassword(password); err == nil {
		fmt.Printf("  Password saved to %s\n", backend)
		fmt.Println("  The wallet will be unlocked automatically.")
		return
	}

	fmt.Println("  Could not store password in system keyring.")
	fmt.Println("  For automatic wallet unlock, set one of:")
	fmt.Println("    - " + config.PasswordEnvVar + " environment variable")
	fmt.Println("    - wallet.password_file in config.yaml")
}

// readNewPassword prompts for a password and its confirmation.
func readNewPassword() (string, error) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Fprint(os.Stderr, "Enter wallet password: ")
		password, err := readPasswordNoEcho()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		if len(password) < 8 {
			Warning("Password must be at least 8 characters. Try again.")
			continue
		}

		fmt.Fprint(os.Stderr, "Confirm wallet password: ")
		confirm, err := readPasswordNoEcho()
		if err != nil {
			return "", fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		if password != confirm {
			Warning("Passwords do not match. Try again.")
			continue
		}
		return password, nil
	}
	return "", fmt.Errorf("too many failed attempts")
}

func newWalletCreateCmd() *cobra.Command {
	var keystore string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new wallet",
		Long:  "Create a new Ethereum wallet with a password-encrypted keystore file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			wm, err := existingWallet(keystore)
			if err != nil {
				return fmt.Errorf("failed to check keystore: %w", err)
			}
			if wm != nil {
				return fmt.Errorf("wallet already exists at %s (address: %s)", keystore, wm.Address().Hex())
			}

			password, err := readNewPassword()
			if err != nil {
				return err
			}
			wm, err = wallet.Create(keystore, password)
			if err != nil {
				return fmt.Errorf("failed to create wallet: %w", err)
			}

			fmt.Println()
			Success("Wallet created!")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", wm.Address().Hex()},
				{"Keystore", keystore},
			}))
			storePasswordInKeyring(password)
			fmt.Println()
			Warning("Back up your keystore directory and remember your password.")
			fmt.Println(Hint("If you lose either, your staked funds are unrecoverable."))
			return nil
		},
	}

	cmd.Flags().StringVar(&keystore, "keystore", keystoreDir(), "Path to keystore directory")

	return cmd
}

func newWalletImportCmd() *cobra.Command {
	var keystore string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a wallet from a private key",
		Long:  "Import an existing Ethereum private key into an encrypted keystore file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			wm, err := existingWallet(keystore)
			if err != nil {
				return fmt.Errorf("failed to check keystore: %w", err)
			}
			if wm != nil {
				return fmt.Errorf("wallet already exists at %s (address: %s)", keystore, wm.Address().Hex())
			}

			// Prompt for private key with retry
			const maxAttempts = 3
			var privKeyHex string
			for attempt := 1; attempt <= maxAttempts; attempt++ {
				fmt.Fprint(os.Stderr, "Enter private key (hex, with or without 0x prefix): ")
				input, err := readPasswordNoEcho()
				if err != nil {
					return fmt.Errorf("failed to read private key: %w", err)
				}
				fmt.Fprintln(os.Stderr)

				input = strings.TrimPrefix(strings.TrimSpace(input), "0x")
				if len(input) != 64 {
					Warning(fmt.Sprintf("Private key must be 64 hex characters (32 bytes), got %d. Try again.", len(input)))
					continue
				}
				privKeyHex = input
				break
			}
			if privKeyHex == "" {
				return fmt.Errorf("too many failed attempts")
			}

			password, err := readNewPassword()
			if err != nil {
				return err
			}
			wm, err = wallet.Import(keystore, privKeyHex, password)
			if err != nil {
				return fmt.Errorf("failed to import wallet: %w", err)
			}

			fmt.Println()
			Success("Wallet imported!")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", wm.Address().Hex()},
				{"Keystore", keystore},
			}))
			storePasswordInKeyring(password)
			return nil
		},
	}

	cmd.Flags().StringVar(&keystore, "keystore", keystoreDir(), "Path to keystore directory")

	return cmd
}

func newWalletShowCmd() *cobra.Command {
	var keystore string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show wallet address and keystore path",
		Long:  "Display the wallet address and keystore directory. No password needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := wallet.ListAccounts(keystore)
			if err != nil {
				return fmt.Errorf("failed to read keystore: %w", err)
			}
			if len(accounts) == 0 {
				Info("No wallet found.")
				fmt.Println(Hint("Create one with: dsistake wallet create"))
				return nil
			}

			pwStatus := "not stored (manual unlock required)"
			if pw, err := wallet.RetrievePassword(); err == nil && pw != "" {
				pwStatus = "stored in keyring"
			} else if _, ok := config.PasswordFromEnv(); ok {
				pwStatus = "from " + config.PasswordEnvVar
			}

			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", accounts[0].Hex()},
				{"Keystore", keystore},
				{"Password", pwStatus},
			}))

			return nil
		},
	}

	cmd.Flags().StringVar(&keystore, "keystore", keystoreDir(), "Path to keystore directory")

	return cmd
}

func newWalletForgetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget-password",
		Short: "Remove the wallet password from the system keyring",
		Long: `Remove the stored wallet password from the platform and kernel keyrings.

After this, commands that sign will ask for the password again unless it
is provided through the environment or a password file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wallet.DeletePassword(); err != nil {
				return fmt.Errorf("failed to remove stored password: %w", err)
			}
			Success("Stored password removed")
			return nil
		},
	}
}

// readPasswordNoEcho reads a line from stdin with echo disabled.
func readPasswordNoEcho() (string, error) {
	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	return string(password), nil
}

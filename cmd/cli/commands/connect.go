package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dsistake/dsistake/internal/staking"
	"github.com/dsistake/dsistake/internal/wallet"
)

// NewConnectCmd creates the connect command.
func NewConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect the local wallet",
		Long: `Unlock the local wallet, load its balance, the minimum stake and its stakes.

The connection is remembered: status, stakes and watch reconnect silently
on the next run until you run 'dsistake disconnect'.`,
		RunE: runConnect,
	}
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := WithSpinner("Connecting wallet", func() error { return app.connect(ctx) }); err != nil {
		return err
	}

	snap := app.Session.Snapshot()
	Success("Wallet connected")
	fmt.Println(StatusBox("Wallet", accountFields(app, snap)))
	return nil
}

// NewDisconnectCmd creates the disconnect command.
func NewDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the cached connection",
		Long: `Remove the cached session and any stored wallet password.

The keystore itself is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionFile := ""
			if cfg := loadConfigQuiet(); cfg != nil {
				sessionFile = cfg.Wallet.SessionFile
			}
			if sessionFile == "" {
				return fmt.Errorf("cannot determine session file from %s", ConfigPath)
			}
			if err := wallet.NewSessionStore(sessionFile).Clear(); err != nil {
				return err
			}
			Success("Disconnected")
			return nil
		},
	}
}

// accountFields are the per-account lines shared by connect and status.
func accountFields(app *App, snap staking.SessionSnapshot) [][2]string {
	minimum := "unavailable"
	if snap.MinimumStake != nil {
		minimum = FormatDSI(snap.MinimumStake)
	}
	balance := "unavailable"
	if snap.Balance != nil {
		balance = FormatDSI(snap.Balance)
	}
	return [][2]string{
		{"Address", snap.Account.Hex()},
		{"Network", app.Network.Name},
		{"Balance", balance},
		{"Minimum stake", minimum},
		{"Staked", FormatDSI(snap.Ledger.TotalUnclaimed)},
		{"Active power", FormatPower(snap.Ledger.ActivePower)},
		{"Claimable", fmt.Sprintf("%d stakes", len(snap.Ledger.Claimable))},
	}
}

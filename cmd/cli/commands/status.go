package commands

import (
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/staking"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show protocol stats and your position",
		Long: `Show total staked, stakers, active power holders and total active power.

When a connection is cached, your balance, active power, share of the
total and tier are shown as well.`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	connected := false
	err = WithSpinner("Loading", func() error {
		var rerr error
		connected, rerr = app.resume(ctx)
		if rerr != nil {
			logging.Warn("cached session could not be resumed", logging.Err(rerr))
		}
		app.Stats.Refresh(ctx)
		return nil
	})
	if err != nil {
		return err
	}

	snap := app.Session.Snapshot()
	fmt.Println(StatusBox("DSI Staking", statsFields(snap.Stats)))

	if !connected {
		fmt.Println(Hint("Connect a wallet to see your position: dsistake connect"))
		return nil
	}
	fields := append(accountFields(app, snap),
		[2]string{"Share", FormatPercent(snap.SharePercent)},
		[2]string{"Tier", tierLabel(snap.Tier)},
	)
	fmt.Println(StatusBox("Your position", fields))
	return nil
}

func statsFields(s staking.GlobalStats) [][2]string {
	updated := "never"
	if !s.UpdatedAt.IsZero() {
		updated = s.UpdatedAt.Format(time.Kitchen)
	}
	return [][2]string{
		{"Total staked", optional(s.TotalStaked, FormatDSI)},
		{"Stakers", optional(s.TotalStakers, countString)},
		{"Power holders", optional(s.ActiveHolders, countString)},
		{"Active power", optional(s.TotalActivePower, FormatPower)},
		{"Updated", updated},
	}
}

func optional[T any](v *T, format func(*T) string) string {
	if v == nil {
		return "unavailable"
	}
	return format(v)
}

func tierLabel(tier int) string {
	if tier == 0 {
		return "none"
	}
	return fmt.Sprintf("%d / 5", tier)
}

func countString(x *big.Int) string {
	return addThousandsSep(x.String())
}

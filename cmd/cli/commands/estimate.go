package commands

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dsistake/dsistake/internal/power"
	"github.com/dsistake/dsistake/internal/staking"
)

// NewEstimateCmd creates the power preview command.
func NewEstimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <amount> <days>",
		Short: "Preview the DSI Power of a stake",
		Long: `Preview the DSI Power a stake would earn, with the bonus multiplier over a
flat amount x days baseline. The contract's own figure is shown when it
can be reached. Only the first 365 days earn power.`,
		Args: cobra.ExactArgs(2),
		RunE: runEstimate,
	}
}

func runEstimate(cmd *cobra.Command, args []string) error {
	amount, days, err := parseStakeArgs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	est := app.Session.Estimate(ctx, amount, days)
	fmt.Println(StatusBox("Estimate", estimateFields(est)))
	if est.ExceedsCap {
		Warning(capWarning())
	}
	return nil
}

func estimateFields(est staking.Estimate) [][2]string {
	contract := "unavailable"
	if est.Remote != nil {
		contract = FormatPower(est.Remote)
	}
	return [][2]string{
		{"Amount", FormatDSI(est.Amount)},
		{"Duration", fmt.Sprintf("%d days", est.Days)},
		{"DSI Power", FormatPower(est.Local)},
		{"Contract", contract},
		{"Baseline", FormatPower(est.Normal)},
		{"Multiplier", est.Multiplier.StringFixed(2) + "x"},
	}
}

func capWarning() string {
	return fmt.Sprintf("Only the first %d days earn DSI Power; the rest of the lock adds none.", power.MaxRewardedDays)
}

// parseStakeArgs parses "<amount> <days>".
func parseStakeArgs(args []string) (*big.Int, uint64, error) {
	amount, err := staking.ParseAmount(args[0])
	if err != nil {
		return nil, 0, err
	}
	days, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid duration %q: must be a whole number of days", args[1])
	}
	return amount, days, nil
}

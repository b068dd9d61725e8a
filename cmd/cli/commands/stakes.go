package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dsistake/dsistake/internal/staking"
)

var stakesShowAll bool

// NewStakesCmd creates the stakes listing command.
func NewStakesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stakes",
		Short: "List your stakes",
		Long: `List the connected account's stakes with their power and unlock time.

Claimed stakes are hidden unless --all is given. The index column is what
'dsistake claim' takes.`,
		RunE: runStakes,
	}

	cmd.Flags().BoolVarP(&stakesShowAll, "all", "a", false, "Include claimed stakes")

	return cmd
}

func runStakes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := WithSpinner("Loading stakes", func() error { return app.connect(ctx) }); err != nil {
		return err
	}

	view := app.Session.Snapshot().Ledger
	fmt.Println(SectionHeader("Stakes of " + view.Owner.Hex()))
	fmt.Println(renderStakes(view, time.Now(), stakesShowAll))
	fmt.Println(KeyValue("Staked", FormatDSI(view.TotalUnclaimed)))
	fmt.Println(KeyValue("Active power", FormatPower(view.ActivePower)))
	if n := len(view.Claimable); n > 0 {
		fmt.Println(Hint(fmt.Sprintf("%d stakes ready. Claim them with: dsistake claim-all", n)))
	}
	return nil
}

// renderStakes lays out the stake table. Claimed stakes are skipped unless all is set.
func renderStakes(view staking.LedgerView, now time.Time, all bool) string {
	headers := []string{"#", "Amount", "DSI Power", "Days", "Unlocks", "Status", "Time left"}
	var rows [][]string
	for _, s := range view.Stakes {
		if s.Claimed && !all {
			continue
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.Index),
			FormatDSI(s.Amount),
			FormatPower(s.DSIPower),
			fmt.Sprintf("%d", s.DurationDays()),
			s.End().Format("2006-01-02 15:04"),
			stakeStatus(s, now),
			timeLeft(s, now),
		})
	}
	if len(rows) == 0 {
		return Hint("No stakes yet. Create one with: dsistake stake <amount> <days>")
	}
	return RenderTable(headers, rows)
}

func stakeStatus(s staking.Stake, now time.Time) string {
	switch {
	case s.Claimed:
		return "claimed"
	case s.IsClaimable(now):
		return "claimable"
	default:
		return "locked"
	}
}

func timeLeft(s staking.Stake, now time.Time) string {
	if s.Claimed {
		return "-"
	}
	return s.TimeLeft(now)
}

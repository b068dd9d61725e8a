package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dsistake/dsistake/internal/staking"
)

// NewStakeCmd creates the stake command.
func NewStakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stake <amount> <days>",
		Short: "Stake DSI tokens",
		Long: `Lock DSI tokens for a number of days to earn DSI Power.

Two transactions are sent: an approval for exactly the amount, then the
stake itself. Each is waited on until it is included.

Examples:
  dsistake stake 100 30     # 100 DSI for 30 days
  dsistake stake 2.5 365 -y # no confirmation prompt`,
		Args: cobra.ExactArgs(2),
		RunE: runStake,
	}
}

func runStake(cmd *cobra.Command, args []string) error {
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

	if err := WithSpinner("Connecting wallet", func() error { return app.connect(ctx) }); err != nil {
		return err
	}

	req := staking.StakeRequest{Amount: amount, Days: days}
	if err := staking.ValidateStake(req, app.Session.Limits()); err != nil {
		return err
	}

	est := app.Session.Estimate(ctx, amount, days)
	fmt.Println(StatusBox("Stake", estimateFields(est)))
	if est.ExceedsCap {
		Warning(capWarning())
	}
	ok, err := confirm(fmt.Sprintf("Stake %s for %d days?", FormatDSI(amount), days))
	if err != nil {
		return err
	}
	if !ok {
		Info("Cancelled")
		return nil
	}

	watchSteps(app)
	return renderResult(app, app.Session.Stake(ctx, req))
}

// NewClaimCmd creates the single-stake claim command.
func NewClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <index>",
		Short: "Claim one unlocked stake",
		Long: `Claim the stake shown at <index> by 'dsistake stakes'.

The stake is looked up again just before claiming, so a claim still lands
on the right record if earlier stakes were claimed in the meantime.`,
		Args: cobra.ExactArgs(1),
		RunE: runClaim,
	}
}

func runClaim(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil || index < 0 {
		return fmt.Errorf("invalid stake index %q", args[0])
	}

	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := WithSpinner("Connecting wallet", func() error { return app.connect(ctx) }); err != nil {
		return err
	}

	target, ok := app.Session.StakeAt(index)
	if !ok {
		return fmt.Errorf("no stake at index %d", index)
	}

	watchSteps(app)
	return renderResult(app, app.Session.Claim(ctx, target))
}

// NewClaimAllCmd creates the claim-all command.
func NewClaimAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim-all",
		Short: "Claim every unlocked stake",
		Long: `Claim every unlocked stake, one transaction at a time.

Each claim is waited on before the next is sent. The first failure stops
the run; stakes already claimed stay claimed.`,
		Args: cobra.NoArgs,
		RunE: runClaimAll,
	}
}

func runClaimAll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := WithSpinner("Connecting wallet", func() error { return app.connect(ctx) }); err != nil {
		return err
	}

	watchSteps(app)
	return renderResult(app, app.Session.ClaimAll(ctx))
}

var stepLabels = map[staking.State]string{
	staking.StateApproving:    "Approving token spend",
	staking.StateStaking:      "Submitting stake",
	staking.StateFindingStake: "Looking up stakes",
	staking.StateClaiming:     "Claiming",
	staking.StateRefreshing:   "Refreshing balances",
}

// watchSteps prints each step of the running action.
func watchSteps(app *App) {
	orch := app.Session.Orchestrator()
	if orch == nil {
		return
	}
	orch.OnStateChange(func(_ staking.Action, s staking.State) {
		if label, ok := stepLabels[s]; ok {
			fmt.Println(Hint(label + "..."))
		}
	})
}

// renderResult prints an action's transactions and outcome. Failures become
// the command's error.
func renderResult(app *App, res staking.ActionResult) error {
	for _, h := range res.TxHashes {
		link := app.Network.TxURL(h.Hex())
		if link == "" {
			link = h.Hex()
		}
		fmt.Println(KeyValue("Transaction", link))
	}

	switch res.Kind {
	case staking.ResultSuccess:
		Success(res.Message)
		return nil
	case staking.ResultInfo:
		Info(res.Message)
		return nil
	default:
		return errors.New(res.Message)
	}
}

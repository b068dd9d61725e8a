package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dsistake/dsistake/cmd/cli/commands"
	"github.com/dsistake/dsistake/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "dsistake",
	Short:         "DSI token staking client",
	Long:          "Stake DSI tokens for DSI Power, track your stakes and claim them when they unlock.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Add global persistent flags
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", config.DefaultConfigPath(), "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&commands.MockMode, "mock", false, "Use an in-memory contract instead of the chain")
	rootCmd.PersistentFlags().StringVar(&commands.RPCURL, "rpc-url", "", "Wallet node endpoint used for signing (default: the network's RPC URLs)")
	rootCmd.PersistentFlags().BoolVarP(&commands.AssumeYes, "yes", "y", false, "Answer yes to confirmations and network switch prompts")
}

func main() {
	// Register commands
	rootCmd.AddCommand(commands.NewConnectCmd())
	rootCmd.AddCommand(commands.NewDisconnectCmd())
	rootCmd.AddCommand(commands.NewStatusCmd())
	rootCmd.AddCommand(commands.NewStakesCmd())
	rootCmd.AddCommand(commands.NewEstimateCmd())
	rootCmd.AddCommand(commands.NewStakeCmd())
	rootCmd.AddCommand(commands.NewClaimCmd())
	rootCmd.AddCommand(commands.NewClaimAllCmd())
	rootCmd.AddCommand(commands.NewWatchCmd())
	rootCmd.AddCommand(commands.NewNetworkCmd())
	rootCmd.AddCommand(commands.NewConfigCmd())
	rootCmd.AddCommand(commands.NewWalletCmd())
	rootCmd.AddCommand(commands.NewCompletionCmd())
	rootCmd.AddCommand(commands.NewVersionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

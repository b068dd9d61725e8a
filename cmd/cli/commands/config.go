package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dsistake/dsistake/internal/config"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(ConfigPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var (
		stakingAddress string
		force          bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a BSC testnet configuration with the given staking contract.

The token address is read from the staking contract and is not configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(ConfigPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", ConfigPath)
			}

			cfg := config.DefaultConfig()
			cfg.Contracts.StakingAddress = stakingAddress
			cfg.Mock = MockMode
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(ConfigPath); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			Success("Configuration written")
			fmt.Println(KeyValue("Path", ConfigPath))
			fmt.Println(Hint("Next: dsistake wallet create"))
			return nil
		},
	}

	cmd.Flags().StringVar(&stakingAddress, "staking-address", "", "Deployed staking contract address")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

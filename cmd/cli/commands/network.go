package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dsistake/dsistake/internal/config"
)

var networkParamsFormat string

// NewNetworkCmd creates the network command group.
func NewNetworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Show the configured network",
		Long: `Show the network the client is bound to.

'network params' prints the add-network payload a wallet expects
(wallet_addEthereumChain), for wallets that do not know the chain yet.`,
		RunE: runNetworkShow,
	}

	params := &cobra.Command{
		Use:   "params",
		Short: "Print the add-network parameters",
		RunE:  runNetworkParams,
	}
	params.Flags().StringVarP(&networkParamsFormat, "format", "f", "json", "Output format: json or yaml")
	cmd.AddCommand(params)

	return cmd
}

func networkConfig() (config.NetworkConfig, error) {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return config.NetworkConfig{}, err
	}
	return cfg.Network, nil
}

func runNetworkShow(cmd *cobra.Command, args []string) error {
	nc, err := networkConfig()
	if err != nil {
		return err
	}
	n := networkFromConfig(nc)
	explorer := "-"
	if len(n.ExplorerURLs) > 0 {
		explorer = n.ExplorerURLs[0]
	}
	fmt.Println(StatusBox("Network", [][2]string{
		{"Name", n.Name},
		{"Chain ID", fmt.Sprintf("%d (%s)", n.ChainID, "0x"+strconv.FormatInt(n.ChainID, 16))},
		{"Currency", fmt.Sprintf("%s (%d decimals)", n.Currency, n.Decimals)},
		{"RPC", strings.Join(n.RPCURLs, ", ")},
		{"Explorer", explorer},
	}))
	return nil
}

func runNetworkParams(cmd *cobra.Command, args []string) error {
	nc, err := networkConfig()
	if err != nil {
		return err
	}
	params := networkFromConfig(nc).AddChainParams()

	var out []byte
	switch networkParamsFormat {
	case "json":
		out, err = json.MarshalIndent(params, "", "  ")
	case "yaml":
		out, err = yaml.Marshal(params)
	default:
		return fmt.Errorf("unknown format %q: use json or yaml", networkParamsFormat)
	}
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimRight(string(out), "\n"))
	return nil
}

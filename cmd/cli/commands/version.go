package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func NewVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the version of the DSI staking CLI and build information.",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), GetVersion())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), StatusBox("DSI Staking CLI", [][2]string{
				{"Version", GetVersion()},
				{"Commit", GetCommit()},
				{"Build Date", BuildDate},
				{"Go Version", GetGoVersion()},
				{"OS/Arch", runtime.GOOS + "/" + runtime.GOARCH},
			}))
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")

	return cmd
}

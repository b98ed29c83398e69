// agencyd is the agency orchestration daemon. It serves the HTTP API over a
// supervisor wired from a YAML config file.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agencyd",
	Short: "Agency orchestration daemon",
	Long: `agencyd runs an agency of autonomous conversational agents behind an
HTTP API. Agents share a model backend and a tool registry; agency state is
snapshotted on stop and can be resumed later.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "privacyctl",
	Short: "Operator tasks for the privacy policy backend",
	Long: `Operator tasks that run against the same database as the API.

Available subcommands:
  migrate         - Create or update the schema
  promote         - Change a user's role
  export-users    - Write the users CSV to a file or stdout
  cleanup-tokens  - Delete expired verification and reset tokens`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

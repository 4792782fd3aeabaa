package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "lmsctl",
		Short:         "Operator tooling for the LMS auth API",
		Long:          "Run database migrations, purge expired OTP state and inspect session tokens using the same environment as the API server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newMigrateCmd(), newSweepCmd(), newTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		printErr(rootCmd, err)
		os.Exit(1)
	}
}

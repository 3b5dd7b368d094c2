// Package cli wires the migration engine to cobra commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ida",
		Short: "IDA - legacy catalog migration from MongoDB to SQL",
		Long: `IDA migrates a company's legacy catalog (categories, price guide options,
up-charges and measure sheet items) from MongoDB into the relational schema.
Imports run in resumable batches inside migration sessions that can be
previewed and rolled back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(
		newSchemaCmd(),
		newSessionCmd(),
		newImportCmd(),
		newRollbackCmd(),
		newFormulaCmd(),
	)
	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	return exitCode(err)
}

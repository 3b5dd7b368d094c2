package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BartekS5/ida/internal/etl"
)

type rollbackOptions struct {
	apply bool
	yes   bool
}

type rollbackSummary struct {
	Mode      string             `json:"mode"`
	SessionID string             `json:"sessionId"`
	Total     int                `json:"total"`
	Stats     *etl.RollbackStats `json:"stats"`
}

// checkRollbackFlags runs before anything connects.
func checkRollbackFlags(opts rollbackOptions) error {
	if opts.apply && !opts.yes {
		return withCode(exitSafetyNet, fmt.Errorf("refusing to rollback without --yes"))
	}
	return nil
}

func newRollbackCmd() *cobra.Command {
	var opts rollbackOptions

	cmd := &cobra.Command{
		Use:   "rollback <session-id>",
		Short: "Preview or delete everything a session imported",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return checkRollbackFlags(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			sessionID := args[0]
			if !opts.apply {
				stats, err := a.engine.PreviewRollback(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rollbackSummary{Mode: "dry_run", SessionID: sessionID, Total: stats.Total(), Stats: stats})
			}

			stats, err := a.engine.Rollback(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rollbackSummary{Mode: "applied", SessionID: sessionID, Total: stats.Total(), Stats: stats})
		},
	}

	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply rollback (default is dry-run)")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Confirm destructive rollback")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recast/internal/logging"
)

var (
	sessionsFormat string
	rollbackFormat string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List backup sessions",
	Long: `List every recorded backup session, newest first.

Each rewrite and rename that touches the filesystem records a session with
pre-edit snapshots of every affected file. Committed sessions can be rolled
back with "recast rollback <session-id>" until their snapshots are pruned.`,
	RunE: runSessions,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <session-id>",
	Short: "Restore the files of a session to their pre-edit content",
	Long: `Restore every file recorded in a session from its snapshot.

Rollback attempts every file even when some fail. A partial rollback marks
the session unusable so a later retry cannot silently restore a subset.`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsFormat, "format", "human", "Output format (json, human)")
	rollbackCmd.Flags().StringVar(&rollbackFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(rollbackCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	logger := newCLILogger(logging.HumanFormat)

	ws, err := openWorkspace(logger)
	if err != nil {
		return err
	}
	defer ws.close()

	sessions, err := ws.backups.List()
	if err != nil {
		return err
	}
	return printResponse(sessions, sessionsFormat)
}

func runRollback(cmd *cobra.Command, args []string) error {
	logger := newCLILogger(logging.HumanFormat)

	ws, err := openWorkspace(logger)
	if err != nil {
		return err
	}
	defer ws.close()

	report, restoreErr := ws.backups.Restore(args[0])
	if report != nil {
		if err := printResponse(report, rollbackFormat); err != nil {
			return err
		}
	}
	if restoreErr != nil {
		return fmt.Errorf("rollback failed: %w", restoreErr)
	}
	return nil
}

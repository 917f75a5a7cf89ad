package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"recast/internal/logging"
	"recast/internal/paths"
	"recast/internal/rename"
)

var (
	renameFile       string
	renameOffset     int
	renameOldName    string
	renameNewName    string
	renameUnresolved bool
	renameLabel      string
	renameDryRun     bool
	renameFormat     string
)

var renameCmd = &cobra.Command{
	Use:   "rename [paths...]",
	Short: "Rename a symbol with scope-aware conflict checking",
	Long: `Rename a symbol to --new-name. The target is either the binding at
--file/--offset (anchored mode) or every binding of --old-name in the listed
paths.

Occurrences are resolved through a scope tree, so shadowed bindings with the
same name are left alone. The rename is refused (state "blocked") when the
new name would collide with an existing binding, capture a reference from an
enclosing scope, or be captured by an inner shadowing declaration.

For module-scope targets, --include-unresolved extends the rename to
matching unresolved references in the listed paths, covering cross-file
usage.

Examples:
  recast rename --file=src/api.py --offset=120 --new-name=fetch_items
  recast rename --old-name=fetchItems --new-name=fetch_items '**/*.py'
  recast rename --file=lib/util.js --offset=44 --new-name=clamp --dry-run
  recast rename --file=pkg/m.go --offset=88 --new-name=Render --include-unresolved '**/*.go'`,
	RunE: runRename,
}

func init() {
	renameCmd.Flags().StringVar(&renameFile, "file", "", "File containing an occurrence of the symbol (anchored mode)")
	renameCmd.Flags().IntVar(&renameOffset, "offset", -1, "Byte offset of the occurrence (anchored mode)")
	renameCmd.Flags().StringVar(&renameOldName, "old-name", "", "Rename every binding of this name in the listed paths")
	renameCmd.Flags().StringVar(&renameNewName, "new-name", "", "New symbol name (required)")
	renameCmd.Flags().BoolVar(&renameUnresolved, "include-unresolved", false, "Extend module-scope renames to unresolved references in the listed paths")
	renameCmd.Flags().StringVar(&renameLabel, "label", "", "Human-readable label recorded on the backup session")
	renameCmd.Flags().BoolVar(&renameDryRun, "dry-run", false, "Show unified diffs without writing anything")
	renameCmd.Flags().StringVar(&renameFormat, "format", "human", "Output format (json, human)")
	renameCmd.MarkFlagRequired("new-name")
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	logger := newCLILogger(logging.HumanFormat)

	ws, err := openWorkspace(logger)
	if err != nil {
		return err
	}
	defer ws.close()

	if renameOldName == "" && (renameFile == "" || renameOffset < 0) {
		return fmt.Errorf("either --old-name or both --file and --offset are required")
	}
	file := renameFile
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(ws.root, file)
	}
	extra, err := paths.ResolveTargets(ws.root, args)
	if err != nil {
		return err
	}

	coordinator := rename.NewCoordinator(ws.engine, logger)
	req := rename.Request{
		File:              file,
		Offset:            renameOffset,
		OldName:           renameOldName,
		NewName:           renameNewName,
		Paths:             extra,
		IncludeUnresolved: renameUnresolved || ws.cfg.Rename.IncludeUnresolved,
		Label:             renameLabel,
	}

	ctx := context.Background()
	var outcome *rename.Outcome
	if renameDryRun {
		outcome, err = coordinator.Preview(ctx, req)
	} else {
		outcome, err = coordinator.Rename(ctx, req)
	}
	if err != nil {
		return err
	}
	if err := printResponse(outcome, renameFormat); err != nil {
		return err
	}
	if outcome.State == rename.StateBlocked {
		return fmt.Errorf("rename blocked by %d conflict(s)", len(outcome.Conflicts))
	}
	return nil
}

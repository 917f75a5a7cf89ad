package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"recast/internal/apply"
	"recast/internal/backup"
	"recast/internal/config"
	"recast/internal/lang"
	"recast/internal/logging"
	"recast/internal/version"
)

var (
	// rootFlag is the workspace root; defaults to the current directory.
	rootFlag string
	// verboseFlag enables debug logging.
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "recast",
	Short: "recast - safe structural code rewriting",
	Long: `recast matches structural patterns over syntax trees and applies
multi-file rewrites and scope-aware renames atomically, with per-session
backups and rollback. It also runs as an MCP stdio server so tool-calling
clients can drive the same operations.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("recast version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Workspace root (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}

// workspaceRoot resolves the effective workspace root.
func workspaceRoot() (string, error) {
	if rootFlag != "" {
		return filepath.Abs(rootFlag)
	}
	return os.Getwd()
}

// newCLILogger builds the logger CLI commands share. Logs go to stderr
// so command output stays pipeable.
func newCLILogger(format logging.Format) *logging.Logger {
	level := logging.InfoLevel
	if verboseFlag {
		level = logging.DebugLevel
	}
	return logging.NewLogger(logging.Config{
		Format: format,
		Level:  level,
		Output: os.Stderr,
	})
}

// workspace bundles everything a command needs to operate on one root.
type workspace struct {
	root    string
	cfg     *config.Config
	backups *backup.Manager
	engine  *apply.Engine
	logger  *logging.Logger
}

// openWorkspace loads configuration, applies language overrides, and
// opens the backup store for the resolved root.
func openWorkspace(logger *logging.Logger) (*workspace, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := lang.LoadOverrides(cfg.LanguagesPath()); err != nil {
		return nil, err
	}
	backups, err := backup.Open(cfg.BackupDir(), cfg.Backup.Compress, logger)
	if err != nil {
		return nil, err
	}
	return &workspace{
		root:    root,
		cfg:     cfg,
		backups: backups,
		engine:  apply.NewEngine(backups, cfg.Apply.Workers, logger),
		logger:  logger,
	}, nil
}

func (w *workspace) close() {
	if err := w.backups.Close(); err != nil {
		w.logger.Warn("failed to close backup store", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

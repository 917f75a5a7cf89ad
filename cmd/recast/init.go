package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"recast/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize recast configuration",
	Long:  "Creates a .recast/ directory with default configuration in the workspace root",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Force reinitialization (removes existing .recast directory)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}

	recastDir := filepath.Join(root, ".recast")
	if _, statErr := os.Stat(recastDir); statErr == nil {
		if !initForce {
			// Idempotent behavior: already initialized is success (CI-friendly)
			fmt.Println("recast already initialized.")
			fmt.Printf("Configuration at: %s\n", filepath.Join(recastDir, "config.json"))
			fmt.Println("\nRun 'recast init --force' to reinitialize.")
			return nil
		}
		if removeErr := os.RemoveAll(recastDir); removeErr != nil {
			return fmt.Errorf("failed to remove existing .recast directory: %w", removeErr)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Root = root
	if err := cfg.Save(root); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	fmt.Println("Initialized recast.")
	fmt.Printf("Configuration at: %s\n", filepath.Join(recastDir, "config.json"))
	fmt.Println("\nNext steps:")
	fmt.Println("  recast rewrite --language=<lang> --pattern='...' --replacement='...' --dry-run")
	fmt.Println("  recast mcp   # expose the tools to an MCP client")
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recast/internal/lang"
	"recast/internal/logging"
	"recast/internal/version"
)

var (
	statusFormat    string
	languagesFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace and backup store state",
	RunE:  runStatus,
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages and their scope behavior",
	RunE:  runLanguages,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (json, human)")
	languagesCmd.Flags().StringVar(&languagesFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(languagesCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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
	byState := map[string]int{}
	for _, s := range sessions {
		byState[s.State]++
	}

	if statusFormat == string(FormatJSON) {
		return printResponse(map[string]interface{}{
			"version":         version.Version,
			"root":            ws.root,
			"backupDir":       ws.cfg.BackupDir(),
			"compressBackups": ws.cfg.Backup.Compress,
			"applyWorkers":    ws.cfg.Apply.Workers,
			"sessions":        byState,
			"totalSessions":   len(sessions),
		}, statusFormat)
	}

	fmt.Printf("recast %s\n", version.Version)
	fmt.Printf("Root:        %s\n", ws.root)
	fmt.Printf("Backups:     %s (compress=%v)\n", ws.cfg.BackupDir(), ws.cfg.Backup.Compress)
	fmt.Printf("Workers:     %d\n", ws.cfg.Apply.Workers)
	fmt.Printf("Sessions:    %d total", len(sessions))
	for state, n := range byState {
		fmt.Printf(", %d %s", n, state)
	}
	fmt.Println()
	return nil
}

func runLanguages(cmd *cobra.Command, args []string) error {
	type languageInfo struct {
		Language   string   `json:"language"`
		Extensions []string `json:"extensions"`
		Hoisted    bool     `json:"hoisted"`
	}
	infos := make([]languageInfo, 0, len(lang.All()))
	for _, l := range lang.All() {
		spec, err := lang.Spec(l)
		if err != nil {
			return err
		}
		infos = append(infos, languageInfo{
			Language:   string(l),
			Extensions: lang.Extensions(l),
			Hoisted:    spec.Hoisted,
		})
	}

	if languagesFormat == string(FormatJSON) {
		return printResponse(infos, languagesFormat)
	}
	for _, info := range infos {
		hoisting := "declaration-before-use"
		if info.Hoisted {
			hoisting = "hoisted"
		}
		fmt.Printf("%-11s %-28s %s\n", info.Language, hoisting, info.Extensions)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"recast/internal/lang"
	"recast/internal/logging"
	"recast/internal/match"
	"recast/internal/rewrite"
)

var (
	rewriteLanguage string
	rewritePattern  string
	rewriteTemplate string
	rewriteRules    string
	rewriteLabel    string
	rewriteDryRun   bool
	rewriteFormat   string
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [paths...]",
	Short: "Apply a structural pattern rewrite",
	Long: `Match a structural pattern against source files and replace every
match with the rendered template. All edits land atomically: every file is
snapshotted before the first write, and any failure restores the originals.

Patterns use $NAME metavariables (one named syntax node each, repeated names
must match identical text) and $_ as an anonymous wildcard. The template may
reference any named metavariable from the pattern.

Paths may be literal files or glob patterns relative to the workspace root;
omitted paths scan the whole workspace.

Examples:
  recast rewrite --language=go --pattern='errors.New(fmt.Sprintf($ARGS))' --replacement='fmt.Errorf($ARGS)'
  recast rewrite --language=python --pattern='print($X)' --replacement='log.info($X)' '**/*.py'
  recast rewrite --rules=cleanup.yaml --dry-run
  recast rewrite --language=js --pattern='$F.bind(this)' --replacement='$F' --dry-run`,
	RunE: runRewrite,
}

func init() {
	rewriteCmd.Flags().StringVar(&rewriteLanguage, "language", "", "Source language (go, javascript, typescript, tsx, python, rust, java, kotlin)")
	rewriteCmd.Flags().StringVar(&rewritePattern, "pattern", "", "Structural pattern with $NAME metavariables")
	rewriteCmd.Flags().StringVar(&rewriteTemplate, "replacement", "", "Replacement template")
	rewriteCmd.Flags().StringVar(&rewriteRules, "rules", "", "YAML rule file to run instead of --pattern/--replacement")
	rewriteCmd.Flags().StringVar(&rewriteLabel, "label", "", "Human-readable label recorded on the backup session")
	rewriteCmd.Flags().BoolVar(&rewriteDryRun, "dry-run", false, "Show unified diffs without writing anything")
	rewriteCmd.Flags().StringVar(&rewriteFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(rewriteCmd)
}

func runRewrite(cmd *cobra.Command, args []string) error {
	logger := newCLILogger(logging.HumanFormat)

	ws, err := openWorkspace(logger)
	if err != nil {
		return err
	}
	defer ws.close()

	rewriter := rewrite.NewRewriter(ws.engine, logger)
	base := rewrite.Request{
		Paths:            args,
		Root:             ws.root,
		Label:            rewriteLabel,
		MaxFileSizeBytes: int64(ws.cfg.Apply.MaxFileSizeBytes),
		Workers:          ws.cfg.Apply.Workers,
	}
	ctx := context.Background()

	if rewriteRules != "" {
		return runRuleFile(ctx, rewriter, base)
	}

	if rewritePattern == "" || rewriteLanguage == "" {
		return fmt.Errorf("either --rules or both --language and --pattern are required")
	}
	l, ok := lang.Parse(rewriteLanguage)
	if !ok {
		return fmt.Errorf("unsupported language %q", rewriteLanguage)
	}
	base.Language = l
	base.Pattern = rewritePattern
	base.Template = rewriteTemplate

	var resp interface{}
	if rewriteDryRun {
		resp, err = rewriter.Preview(ctx, base)
	} else {
		resp, err = rewriter.Run(ctx, base)
	}
	if err != nil {
		return err
	}
	return printResponse(resp, rewriteFormat)
}

func runRuleFile(ctx context.Context, rewriter *rewrite.Rewriter, base rewrite.Request) error {
	if rewriteDryRun {
		return fmt.Errorf("--dry-run is not supported with --rules; preview rules one at a time with --pattern")
	}
	data, err := os.ReadFile(rewriteRules)
	if err != nil {
		return fmt.Errorf("failed to read rule file: %w", err)
	}
	rules, err := match.ParseRules(data)
	if err != nil {
		return err
	}
	results, err := rewriter.RunRules(ctx, rules, base)
	if err != nil {
		return err
	}
	return printResponse(results, rewriteFormat)
}

// printResponse formats and writes a CLI response to stdout.
func printResponse(resp interface{}, format string) error {
	output, err := FormatResponse(resp, OutputFormat(format))
	if err != nil {
		return err
	}
	fmt.Println(output)
	return nil
}

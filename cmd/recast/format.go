package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"recast/internal/backup"
	"recast/internal/rename"
	"recast/internal/rewrite"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman renders the handful of CLI response shapes in a terse
// terminal form; anything else falls back to JSON.
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *rewrite.Result:
		return formatRewriteHuman(v), nil
	case *rewrite.PreviewResult:
		return formatRewritePreviewHuman(v), nil
	case []rewrite.RuleResult:
		return formatRuleResultsHuman(v), nil
	case *rename.Outcome:
		return formatRenameHuman(v), nil
	case []backup.SessionInfo:
		return formatSessionsHuman(v), nil
	case *backup.RestoreReport:
		return formatRestoreHuman(v), nil
	default:
		return formatJSON(resp)
	}
}

func formatRewriteHuman(r *rewrite.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scanned %d files, matched %d files (%d matches)\n",
		r.FilesScanned, r.FilesMatched, r.MatchCount)
	if r.MatchCount == 0 {
		sb.WriteString("No changes.")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Applied %d edits across %d files\n", r.EditsApplied, r.FilesChanged)
	fmt.Fprintf(&sb, "Session: %s", r.SessionID)
	return sb.String()
}

func formatRewritePreviewHuman(r *rewrite.PreviewResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scanned %d files, matched %d files (%d matches)\n",
		r.FilesScanned, r.FilesMatched, r.MatchCount)
	if r.Preview == nil || len(r.Preview.Files) == 0 {
		sb.WriteString("No changes.")
		return sb.String()
	}
	for _, f := range r.Preview.Files {
		sb.WriteString(f.Diff)
	}
	fmt.Fprintf(&sb, "%d edits across %d files (dry run, nothing written)",
		r.Preview.TotalEdits, len(r.Preview.Files))
	return sb.String()
}

func formatRuleResultsHuman(results []rewrite.RuleResult) string {
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "%s: %d matches", r.RuleID, r.MatchCount)
		if r.SessionID != "" {
			fmt.Fprintf(&sb, " (session %s)", r.SessionID)
		}
		if r.Message != "" {
			fmt.Fprintf(&sb, " - %s", r.Message)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "%d rules run", len(results))
	return sb.String()
}

func formatRenameHuman(out *rename.Outcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rename %s -> %s: %s\n", out.OldName, out.NewName, out.State)
	for _, w := range out.Warnings {
		fmt.Fprintf(&sb, "  warning: %s\n", w)
	}
	for _, c := range out.Conflicts {
		fmt.Fprintf(&sb, "  conflict (%s) at %s:%d-%d: %s\n",
			c.Kind, c.File, c.StartByte, c.EndByte, c.Message)
	}
	if out.Preview != nil {
		for _, f := range out.Preview.Files {
			sb.WriteString(f.Diff)
		}
	}
	if out.State == rename.StateCommitted {
		fmt.Fprintf(&sb, "%d edits across %d files", out.EditsApplied, out.FilesChanged)
		if out.SessionID != "" {
			fmt.Fprintf(&sb, " (session %s)", out.SessionID)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSessionsHuman(sessions []backup.SessionInfo) string {
	if len(sessions) == 0 {
		return "No sessions."
	}
	var sb strings.Builder
	for _, s := range sessions {
		fmt.Fprintf(&sb, "%s  %-11s %-8s %2d files  %s",
			s.ID, s.State, s.Operation, s.FileCount,
			s.CreatedAt.Format("2006-01-02 15:04:05"))
		if s.Label != "" {
			fmt.Fprintf(&sb, "  %q", s.Label)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatRestoreHuman(r *backup.RestoreReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rolled back session %s\n", r.SessionID)
	for _, f := range r.Files {
		status := "restored"
		if !f.Restored {
			status = "FAILED: " + f.Error
		}
		fmt.Fprintf(&sb, "  %s  %s\n", f.Path, status)
	}
	if r.Failed > 0 {
		fmt.Fprintf(&sb, "%d file(s) could not be restored; session marked unusable", r.Failed)
	} else {
		fmt.Fprintf(&sb, "%d file(s) restored", len(r.Files))
	}
	return sb.String()
}

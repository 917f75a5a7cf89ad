package mcp

import (
	"context"

	"recast/internal/backup"
	"recast/internal/envelope"
	"recast/internal/errors"
	"recast/internal/lang"
	"recast/internal/paths"
	"recast/internal/rename"
	"recast/internal/rewrite"
	"recast/internal/version"
)

// handleRewrite applies a structural pattern rewrite.
func (s *MCPServer) handleRewrite(params map[string]interface{}) (*envelope.Response, error) {
	req, err := s.rewriteRequest(params)
	if err != nil {
		return nil, err
	}
	req.Label = stringParam(params, "label")

	result, err := rewrite.NewRewriter(s.engine, s.logger).Run(context.Background(), req)
	if err != nil {
		return nil, err
	}

	b := envelope.New().Data(result)
	if result.MatchCount == 0 {
		b.Warning("no-matches", "pattern matched nothing; no session was created")
	} else {
		b.Suggest("rollbackSession", "undo this rewrite if the result is wrong",
			map[string]interface{}{"sessionId": result.SessionID})
	}
	return b.Build(), nil
}

// handlePreviewRewrite dry-runs a rewrite and returns diffs.
func (s *MCPServer) handlePreviewRewrite(params map[string]interface{}) (*envelope.Response, error) {
	req, err := s.rewriteRequest(params)
	if err != nil {
		return nil, err
	}

	result, err := rewrite.NewRewriter(s.engine, s.logger).Preview(context.Background(), req)
	if err != nil {
		return nil, err
	}

	b := envelope.New().Data(result)
	if result.MatchCount > 0 {
		b.Suggest("rewrite", "apply these edits", map[string]interface{}{
			"language":    string(req.Language),
			"pattern":     req.Pattern,
			"replacement": req.Template,
		})
	}
	return b.Build(), nil
}

// rewriteRequest parses the shared rewrite/previewRewrite parameters.
func (s *MCPServer) rewriteRequest(params map[string]interface{}) (rewrite.Request, error) {
	language, ok := lang.Parse(stringParam(params, "language"))
	if !ok {
		return rewrite.Request{}, errors.Newf(errors.InputError,
			"unknown language %q", stringParam(params, "language"))
	}
	return rewrite.Request{
		Language:         language,
		Pattern:          stringParam(params, "pattern"),
		Template:         stringParam(params, "replacement"),
		Paths:            stringSliceParam(params, "paths"),
		Root:             s.root,
		MaxFileSizeBytes: int64(s.cfg.Apply.MaxFileSizeBytes),
		Workers:          s.cfg.Apply.Workers,
	}, nil
}

// handleRenameSymbol runs a scope-aware rename (or its preview).
func (s *MCPServer) handleRenameSymbol(params map[string]interface{}) (*envelope.Response, error) {
	file := stringParam(params, "file")
	oldName := stringParam(params, "oldName")
	offset, hasOffset := intParam(params, "offset")
	if oldName == "" && (file == "" || !hasOffset) {
		return nil, errors.New(errors.InputError,
			"either oldName or both file and offset are required", nil)
	}
	includeUnresolved := s.cfg.Rename.IncludeUnresolved
	if v, ok := params["includeUnresolved"].(bool); ok {
		includeUnresolved = v
	}

	// Path parameters may be globs.
	var extraPaths []string
	if patterns := stringSliceParam(params, "paths"); len(patterns) > 0 {
		resolved, err := paths.ResolveTargets(s.root, patterns)
		if err != nil {
			return nil, errors.New(errors.InputError, "failed to resolve target paths", err)
		}
		extraPaths = resolved
	}

	req := rename.Request{
		Offset:            offset,
		OldName:           oldName,
		NewName:           stringParam(params, "newName"),
		Paths:             extraPaths,
		IncludeUnresolved: includeUnresolved,
		Label:             stringParam(params, "label"),
	}
	if file != "" {
		req.File = s.resolveInRoot(file)
	}

	var outcome *rename.Outcome
	var err error
	if dry, _ := params["dryRun"].(bool); dry {
		outcome, err = s.coordinator.Preview(context.Background(), req)
	} else {
		outcome, err = s.coordinator.Rename(context.Background(), req)
	}
	if err != nil {
		return nil, err
	}

	if outcome.State == rename.StateBlocked {
		blocked := errors.Newf(errors.ConflictBlocked,
			"rename of %s to %s is blocked by %d conflict(s)",
			outcome.OldName, outcome.NewName, len(outcome.Conflicts)).
			WithDetails(map[string]interface{}{"conflicts": outcome.Conflicts})
		return envelope.New().Data(outcome).Error(blocked).Build(), nil
	}

	b := envelope.New().Data(outcome)
	for _, w := range outcome.Warnings {
		b.Warning("unresolved-included", w)
	}
	if outcome.SessionID != "" {
		b.Suggest("rollbackSession", "undo this rename if the result is wrong",
			map[string]interface{}{"sessionId": outcome.SessionID})
	}
	return b.Build(), nil
}

// handleRollbackSession restores a session's files.
func (s *MCPServer) handleRollbackSession(params map[string]interface{}) (*envelope.Response, error) {
	sessionID := stringParam(params, "sessionId")
	if sessionID == "" {
		return nil, errors.New(errors.InputError, "sessionId is required", nil)
	}
	report, err := s.backups.Restore(sessionID)
	if err != nil {
		// A partial restore still carries per-file detail worth returning.
		if report != nil {
			return envelope.New().Data(report).Error(err).Build(), nil
		}
		return nil, err
	}
	return envelope.New().Data(report).Build(), nil
}

// handleListSessions lists recorded sessions, most recent first.
func (s *MCPServer) handleListSessions(params map[string]interface{}) (*envelope.Response, error) {
	sessions, err := s.backups.List()
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []backup.SessionInfo{}
	}
	return envelope.New().Data(map[string]interface{}{
		"sessions": sessions,
	}).Build(), nil
}

// handleListLanguages reports the supported languages and their scope
// settings as currently configured.
func (s *MCPServer) handleListLanguages(params map[string]interface{}) (*envelope.Response, error) {
	type languageInfo struct {
		Language   string   `json:"language"`
		Extensions []string `json:"extensions"`
		Hoisted    bool     `json:"hoisted"`
	}
	infos := make([]languageInfo, 0, len(lang.All()))
	for _, l := range lang.All() {
		spec, err := lang.Spec(l)
		if err != nil {
			return nil, err
		}
		infos = append(infos, languageInfo{
			Language:   string(l),
			Extensions: lang.Extensions(l),
			Hoisted:    spec.Hoisted,
		})
	}
	return envelope.New().Data(map[string]interface{}{
		"languages": infos,
	}).Build(), nil
}

// handleGetStatus reports server and workspace state.
func (s *MCPServer) handleGetStatus(params map[string]interface{}) (*envelope.Response, error) {
	sessions, err := s.backups.List()
	if err != nil {
		return nil, err
	}
	byState := map[string]int{}
	for _, session := range sessions {
		byState[session.State]++
	}
	return envelope.New().Data(map[string]interface{}{
		"version":         version.Version,
		"root":            s.root,
		"backupDir":       s.cfg.BackupDir(),
		"compressBackups": s.cfg.Backup.Compress,
		"applyWorkers":    s.cfg.Apply.Workers,
		"sessions":        byState,
		"totalSessions":   len(sessions),
	}).Build(), nil
}

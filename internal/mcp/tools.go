package mcp

import "recast/internal/envelope"

// Tool represents a recast tool exposed via MCP
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolHandler is a function that handles a tool call and returns an envelope response.
type ToolHandler func(params map[string]interface{}) (*envelope.Response, error)

// GetToolDefinitions returns all tool definitions
func (s *MCPServer) GetToolDefinitions() []Tool {
	pathsProp := map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": "Files or glob patterns relative to the workspace root (default: whole workspace)",
	}
	labelProp := map[string]interface{}{
		"type":        "string",
		"description": "Human-readable label recorded on the backup session",
	}

	return []Tool{
		{
			Name:        "rewrite",
			Description: "Apply a structural pattern rewrite across files. Matches are syntax-tree nodes, edits are applied atomically with a rollback session.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Language tag (go, javascript, typescript, tsx, python, rust, java, kotlin)",
					},
					"pattern": map[string]interface{}{
						"type":        "string",
						"description": "Structural pattern with $NAME metavariables, e.g. print($ARG)",
					},
					"replacement": map[string]interface{}{
						"type":        "string",
						"description": "Replacement template referencing captured metavariables",
					},
					"paths": pathsProp,
					"label": labelProp,
				},
				"required": []string{"language", "pattern", "replacement"},
			},
		},
		{
			Name:        "previewRewrite",
			Description: "Dry-run a structural rewrite: returns unified diffs without writing any file or creating a session.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Language tag",
					},
					"pattern": map[string]interface{}{
						"type":        "string",
						"description": "Structural pattern with $NAME metavariables",
					},
					"replacement": map[string]interface{}{
						"type":        "string",
						"description": "Replacement template",
					},
					"paths": pathsProp,
				},
				"required": []string{"language", "pattern", "replacement"},
			},
		},
		{
			Name:        "renameSymbol",
			Description: "Scope-aware symbol rename. Target either one binding precisely (file + byte offset of an occurrence) or every binding of oldName in the listed paths; conflicting renames are blocked with a full conflict report.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file": map[string]interface{}{
						"type":        "string",
						"description": "File containing an occurrence of the symbol (anchored mode)",
					},
					"offset": map[string]interface{}{
						"type":        "integer",
						"description": "Byte offset of the occurrence (anchored mode)",
					},
					"oldName": map[string]interface{}{
						"type":        "string",
						"description": "Rename every binding of this name in paths instead of anchoring by file/offset",
					},
					"newName": map[string]interface{}{
						"type":        "string",
						"description": "The new identifier",
					},
					"paths": pathsProp,
					"includeUnresolved": map[string]interface{}{
						"type":        "boolean",
						"description": "Also rename unresolved cross-file occurrences of a module-level symbol",
					},
					"dryRun": map[string]interface{}{
						"type":        "boolean",
						"default":     false,
						"description": "Preview the rename as diffs without applying",
					},
					"label": labelProp,
				},
				"required": []string{"newName"},
			},
		},
		{
			Name:        "rollbackSession",
			Description: "Restore every file recorded in a backup session to its pre-edit content.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sessionId": map[string]interface{}{
						"type":        "string",
						"description": "The session id returned by a previous rewrite or rename",
					},
				},
				"required": []string{"sessionId"},
			},
		},
		{
			Name:        "listSessions",
			Description: "List backup sessions, most recent first, with state and file counts.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "listLanguages",
			Description: "List supported languages with their file extensions and scope settings.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "getStatus",
			Description: "Get server status: version, workspace root, configuration, and session counts.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// RegisterTools wires every tool name to its handler.
func (s *MCPServer) RegisterTools() {
	s.tools["rewrite"] = s.handleRewrite
	s.tools["previewRewrite"] = s.handlePreviewRewrite
	s.tools["renameSymbol"] = s.handleRenameSymbol
	s.tools["rollbackSession"] = s.handleRollbackSession
	s.tools["listSessions"] = s.handleListSessions
	s.tools["listLanguages"] = s.handleListLanguages
	s.tools["getStatus"] = s.handleGetStatus
}

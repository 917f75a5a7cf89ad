package main

import (
	"github.com/spf13/cobra"

	"recast/internal/logging"
	"recast/internal/mcp"
	"recast/internal/version"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP stdio server",
	Long: `Start the Model Context Protocol (MCP) server.

The server communicates over stdio using JSON-RPC 2.0 and exposes the
rewrite, previewRewrite, renameSymbol, rollbackSession, listSessions,
listLanguages, and getStatus tools. All logging goes to stderr; stdout
carries only protocol frames.

This command is typically invoked by MCP clients and not directly by
users.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout belongs to the protocol; logs must go to stderr.
	logger := newCLILogger(logging.JSONFormat)

	ws, err := openWorkspace(logger)
	if err != nil {
		return err
	}
	defer ws.close()

	server := mcp.NewMCPServer(version.Version, ws.root, ws.cfg, ws.backups, ws.engine, logger)
	if err := server.Start(); err != nil {
		logger.Error("MCP server error", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// Package mcp implements the MCP stdio server: a line-delimited JSON-RPC
// 2.0 loop exposing the rewrite, rename, and session tools. Logging goes
// to stderr only; stdout carries nothing but protocol frames.
package mcp

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"recast/internal/apply"
	"recast/internal/backup"
	"recast/internal/config"
	"recast/internal/logging"
	"recast/internal/rename"
)

// MCPServer represents the MCP server
type MCPServer struct {
	stdin   io.Reader
	stdout  io.Writer
	scanner *bufio.Scanner
	logger  *logging.Logger
	version string
	tools   map[string]ToolHandler

	root        string
	cfg         *config.Config
	engine      *apply.Engine
	coordinator *rename.Coordinator
	backups     *backup.Manager
}

// NewMCPServer creates a new MCP server over the given workspace root.
func NewMCPServer(version, root string, cfg *config.Config, backups *backup.Manager, engine *apply.Engine, logger *logging.Logger) *MCPServer {
	server := &MCPServer{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		logger:      logger,
		version:     version,
		root:        root,
		cfg:         cfg,
		engine:      engine,
		coordinator: rename.NewCoordinator(engine, logger),
		backups:     backups,
		tools:       make(map[string]ToolHandler),
	}

	server.RegisterTools()
	return server
}

// Start starts the MCP server and begins processing messages
func (s *MCPServer) Start() error {
	s.logger.Info("MCP server starting", map[string]interface{}{
		"version": s.version,
		"root":    s.root,
	})

	// Main message loop
	for {
		msg, err := s.readMessage()
		if err != nil {
			if err == io.EOF {
				s.logger.Info("MCP server shutting down (EOF)", nil)
				return nil
			}
			s.logger.Error("Error reading message", map[string]interface{}{
				"error": err.Error(),
			})

			// Try to send error response if we can extract an ID
			if msg != nil && msg.Id != nil {
				_ = s.writeError(msg.Id, ParseError, fmt.Sprintf("Failed to parse message: %v", err))
			}
			continue
		}

		// Process the message
		response := s.handleMessage(msg)

		// Notifications don't generate responses
		if response != nil {
			if err := s.writeMessage(response); err != nil {
				s.logger.Error("Error writing response", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

// SetStdin sets the input stream (for testing)
func (s *MCPServer) SetStdin(r io.Reader) {
	s.stdin = r
	s.scanner = nil // Reset scanner so it will be recreated with new reader
}

// SetStdout sets the output stream (for testing)
func (s *MCPServer) SetStdout(w io.Writer) {
	s.stdout = w
}

// Package errors defines the stable error codes surfaced by every recast
// operation, CLI command, and MCP tool.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// InputError indicates a malformed pattern, rule, or unknown language.
	// Rejected before any file is touched.
	InputError ErrorCode = "INPUT_ERROR"
	// PlanConflict indicates overlapping edits within one file's plan.
	// Rejected before any file is touched.
	PlanConflict ErrorCode = "PLAN_CONFLICT"
	// StaleMatch indicates a file changed between matching and applying.
	// The whole batch is aborted with nothing written.
	StaleMatch ErrorCode = "STALE_MATCH"
	// BackupFailure indicates a snapshot could not be persisted.
	// The session is marked unusable and no writes proceed.
	BackupFailure ErrorCode = "BACKUP_FAILURE"
	// PartialApplyRecovered indicates a write failed mid-batch and every
	// already-written file was restored before returning.
	PartialApplyRecovered ErrorCode = "PARTIAL_APPLY_RECOVERED"
	// SessionNotFound indicates an unknown backup session id.
	SessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// SessionUnusable indicates a session whose snapshots are incomplete.
	SessionUnusable ErrorCode = "SESSION_UNUSABLE"
	// ConflictBlocked indicates a rename was blocked by naming conflicts.
	// Terminal state with actionable detail, not a failure.
	ConflictBlocked ErrorCode = "CONFLICT_BLOCKED"
	// InternalError indicates an unexpected error.
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Command     string `json:"command,omitempty"`
	Safe        bool   `json:"safe,omitempty"`
	Description string `json:"description,omitempty"`
}

// RecastError represents a recast error with code, message, and suggestions
type RecastError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new RecastError
func New(code ErrorCode, message string, cause error) *RecastError {
	return &RecastError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes(code),
	}
}

// Newf creates a new RecastError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *RecastError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *RecastError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *RecastError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *RecastError) WithDetails(details interface{}) *RecastError {
	e.Details = details
	return e
}

// CodeOf extracts the error code from err, or INTERNAL_ERROR if err is not
// a RecastError.
func CodeOf(err error) ErrorCode {
	var re *RecastError
	if errors.As(err, &re) {
		return re.Code
	}
	return InternalError
}

// As delegates to the standard library for matching wrapped errors.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	var re *RecastError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// errorActions maps error codes to suggested fix actions
var errorActions = map[ErrorCode][]FixAction{
	StaleMatch: {
		{
			Command:     "re-run the operation",
			Safe:        true,
			Description: "Source changed since matching; re-match against current content",
		},
	},
	SessionUnusable: {
		{
			Command:     "recast sessions list",
			Safe:        true,
			Description: "Inspect session state; begin a new operation to get a fresh session",
		},
	},
	BackupFailure: {
		{
			Command:     "recast sessions list",
			Safe:        true,
			Description: "Check backup storage health and free disk space",
		},
	},
}

// suggestedFixes returns suggested fixes for an error code
func suggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := errorActions[code]; ok {
		return fixes
	}
	return nil
}

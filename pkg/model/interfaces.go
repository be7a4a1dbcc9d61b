package model

import (
	"context"
)

// SinkInfo contains metadata about a sink implementation
type SinkInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Doc represents a document to be written to a sink
type Doc struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Body any    `json:"body"`
}

// WriteResult contains information about a write operation
type WriteResult struct {
	SuccessCount int      `json:"success_count"`
	ErrorCount   int      `json:"error_count"`
	Errors       []string `json:"errors,omitempty"`
}

// Sink defines the interface for snapshot and action archives
type Sink interface {
	// Info returns metadata about the sink
	Info() SinkInfo

	// Open initializes the sink connection
	Open(ctx context.Context) error

	// Write writes documents to the sink
	Write(ctx context.Context, docs []Doc) (WriteResult, error)

	// Close closes the sink connection
	Close(ctx context.Context) error
}

// DocumentIDGenerator generates document IDs for archived documents
type DocumentIDGenerator interface {
	// GenerateSnapshotID generates ID for dashboard_snapshot documents
	GenerateSnapshotID(doc *SnapshotDoc) (string, error)

	// GenerateActionID generates ID for operator_action documents
	GenerateActionID(doc *ActionDoc) (string, error)
}

// AuthManager handles authentication against the dashboard API
type AuthManager interface {
	// RefreshToken exchanges the refresh token for a new token pair
	RefreshToken(ctx context.Context) error

	// GetAccessToken returns the current access token, refreshing it if needed
	GetAccessToken(ctx context.Context) (string, error)

	// IsTokenValid checks if the current token is valid
	IsTokenValid(ctx context.Context) bool

	// Clear drops all stored credentials
	Clear()
}

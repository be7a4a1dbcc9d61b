package model

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var errNilDocument = errors.New("document is nil")

const (
	// timestampFormat is the standard timestamp format used for document IDs
	timestampFormat = "2006-01-02T15:04:05Z"
)

// IDGenerator implements document ID generation
// IDs are generated as:
//   - dashboard_snapshot: snapshot:collected_at:hash(devices,season)
//   - operator_action: the action's own ID, or a fresh UUID when unset
type IDGenerator struct{}

// NewIDGenerator creates a new ID generator
func NewIDGenerator() DocumentIDGenerator {
	return &IDGenerator{}
}

// GenerateSnapshotID generates a deterministic ID for dashboard_snapshot documents
// Format: snapshot:collected_at:hash(season,devices)
func (g *IDGenerator) GenerateSnapshotID(doc *SnapshotDoc) (string, error) {
	if doc == nil {
		return "", errNilDocument
	}

	collectedAtStr := doc.CollectedAt.UTC().Format(timestampFormat)
	stateHash, err := g.hashState(doc.Season, doc.Devices)
	if err != nil {
		return "", fmt.Errorf("hashing snapshot state: %w", err)
	}
	return fmt.Sprintf("snapshot:%s:%s", collectedAtStr, stateHash), nil
}

// GenerateActionID returns the action's ID, assigning a UUID if it has none
func (g *IDGenerator) GenerateActionID(doc *ActionDoc) (string, error) {
	if doc == nil {
		return "", errNilDocument
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	return doc.ID, nil
}

// hashState creates a hash of the season and device table
func (g *IDGenerator) hashState(season string, devices map[string]string) (string, error) {
	state := map[string]any{
		"season":  season,
		"devices": devices,
	}
	stateBytes, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshaling state for hash: %w", err)
	}
	hash := sha256.Sum256(stateBytes)
	return fmt.Sprintf("%x", hash)[:16], nil // Use first 16 characters
}

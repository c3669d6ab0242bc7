// internal/models/collection.go
package models

import "time"

type CollectionState string

const (
	CollectionIdle       CollectionState = "idle"
	CollectionCollecting CollectionState = "collecting"
	CollectionCollected  CollectionState = "collected"
	CollectionSubmitting CollectionState = "submitting"
)

// CollectionView is the externally visible data collection state.
type CollectionView struct {
	State            CollectionState `json:"state"`
	Terrain          string          `json:"terrain,omitempty"`
	DataType         string          `json:"data_type,omitempty"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	DurationSeconds  int64           `json:"duration_seconds"`
	Distance         float64         `json:"distance"`
	DataKB           int64           `json:"data_kb"`
	Position         Position        `json:"position"`
	Heading          Direction       `json:"heading"`
	LastStep         Direction       `json:"last_step"`
	LocationName     string          `json:"location_name"`
	EarnedKAIKA      *int64          `json:"earned_kaika,omitempty"`
	SubmissionStatus string          `json:"submission_status,omitempty"`
	Transferring     bool            `json:"transferring"`
}

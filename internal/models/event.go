// internal/models/event.go
package models

import "time"

type EventType string

const (
	EventDeviceStatus       EventType = "device.status"
	EventDeviceModal        EventType = "device.modal"
	EventPurchaseStatus     EventType = "purchase.status"
	EventTransaction        EventType = "ledger.transaction"
	EventBalances           EventType = "ledger.balances"
	EventPlaybackSelected   EventType = "playback.selected"
	EventPlaybackState      EventType = "playback.state"
	EventPlaybackZone       EventType = "playback.zone"
	EventCollectionState    EventType = "collection.state"
	EventCollectionStep     EventType = "collection.step"
	EventCollectionDuration EventType = "collection.duration"
	EventSubmissionStatus   EventType = "collection.submission"
	EventWallet             EventType = "wallet.updated"
	EventSessionClosed      EventType = "session.closed"
)

// Event is a state change pushed to subscribers of a session.
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

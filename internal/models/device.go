// internal/models/device.go
package models

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusFailed       ConnectionStatus = "failed"
)

// HapticZones are the insole regions lit while a feeling plays.
var HapticZones = []string{"zone1", "zone2", "zone3", "zone4"}

// DeviceView is the externally visible device state.
type DeviceView struct {
	Status    ConnectionStatus `json:"status"`
	HapticOn  bool             `json:"haptic_on"`
	ModalOpen bool             `json:"modal_open"`
}

// PlaybackView is the externally visible playback state.
type PlaybackView struct {
	SelectedID string `json:"selected_feeling_id,omitempty"`
	LoadingID  string `json:"loading_feeling_id,omitempty"`
	Playing    bool   `json:"playing"`
	ActiveZone string `json:"active_zone,omitempty"`
	Intensity  int    `json:"intensity"`
}

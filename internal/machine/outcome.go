// internal/machine/outcome.go
package machine

// Reason names the precondition that made an operation a no-op.
type Reason string

const (
	ReasonAlreadyConnected   Reason = "already_connected"
	ReasonConnectInFlight    Reason = "connect_in_flight"
	ReasonConnectCancelled   Reason = "connect_cancelled"
	ReasonUnknownFeeling     Reason = "unknown_feeling"
	ReasonAlreadyOwned       Reason = "already_owned"
	ReasonNotOwned           Reason = "not_owned"
	ReasonBusy               Reason = "operation_in_flight"
	ReasonWalletNotReady     Reason = "wallet_not_ready"
	ReasonInsufficientFunds  Reason = "insufficient_funds"
	ReasonDeviceNotConnected Reason = "device_not_connected"
	ReasonNoSelection        Reason = "no_selection"
	ReasonWrongState         Reason = "wrong_state"
	ReasonNoTerrain          Reason = "no_terrain"
	ReasonUnknownTerrain     Reason = "unknown_terrain"
	ReasonNoReward           Reason = "no_reward"
	ReasonInvalidIntensity   Reason = "invalid_intensity"
)

// Outcome is the result of a state changing request. Rejections are not errors.
type Outcome struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason,omitempty"`
	Notice   string `json:"notice,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
}

func Accept() Outcome {
	return Outcome{Accepted: true}
}

func Ignore(reason Reason, notice string) Outcome {
	return Outcome{Reason: reason, Notice: notice}
}

// internal/config/tuning.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes as "1500ms" in YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var ms int64
		if err2 := json.Unmarshal(data, &ms); err2 != nil {
			return fmt.Errorf("duration must be a string like \"800ms\": %w", err)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Tuning carries every simulated delay, probability and reward constant.
type Tuning struct {
	Device     DeviceTuning     `yaml:"device" json:"device"`
	Purchase   PurchaseTuning   `yaml:"purchase" json:"purchase"`
	Collection CollectionTuning `yaml:"collection" json:"collection"`
	Playback   PlaybackTuning   `yaml:"playback" json:"playback"`
	Ledger     LedgerTuning     `yaml:"ledger" json:"ledger"`
	Notices    NoticeTuning     `yaml:"notices" json:"notices"`
	Scene      SceneTuning      `yaml:"scene" json:"scene"`
}

type DeviceTuning struct {
	ConnectBase        Duration `yaml:"connect_base" json:"connect_base"`
	ConnectJitter      Duration `yaml:"connect_jitter" json:"connect_jitter"`
	SuccessProbability float64  `yaml:"success_probability" json:"success_probability"`
	ModalCloseDelay    Duration `yaml:"modal_close_delay" json:"modal_close_delay"`
}

type PurchaseTuning struct {
	PrepareDelay       Duration `yaml:"prepare_delay" json:"prepare_delay"`
	SignDelay          Duration `yaml:"sign_delay" json:"sign_delay"`
	ConfirmDelay       Duration `yaml:"confirm_delay" json:"confirm_delay"`
	ConfirmJitter      Duration `yaml:"confirm_jitter" json:"confirm_jitter"`
	SuccessProbability float64  `yaml:"success_probability" json:"success_probability"`
	RewardFraction     float64  `yaml:"reward_fraction" json:"reward_fraction"`
}

type CollectionTuning struct {
	RewardPerSecond   float64  `yaml:"reward_per_second" json:"reward_per_second"`
	RewardPerDistance float64  `yaml:"reward_per_distance" json:"reward_per_distance"`
	MinReward         int64    `yaml:"min_reward" json:"min_reward"`
	MovementInterval  Duration `yaml:"movement_interval" json:"movement_interval"`
	DurationInterval  Duration `yaml:"duration_interval" json:"duration_interval"`
	TurnProbability   float64  `yaml:"turn_probability" json:"turn_probability"`
	MaxTurn           float64  `yaml:"max_turn" json:"max_turn"`
	BaseSpeed         float64  `yaml:"base_speed" json:"base_speed"`
	SpeedJitter       float64  `yaml:"speed_jitter" json:"speed_jitter"`
	DistanceScale     float64  `yaml:"distance_scale" json:"distance_scale"`
	MaxDataIncrement  int64    `yaml:"max_data_increment" json:"max_data_increment"`
	LandmarkRadius    float64  `yaml:"landmark_radius" json:"landmark_radius"`
	PackageDelay      Duration `yaml:"package_delay" json:"package_delay"`
	UploadDelay       Duration `yaml:"upload_delay" json:"upload_delay"`
	ConfirmDelay      Duration `yaml:"confirm_delay" json:"confirm_delay"`
	ConfirmJitter     Duration `yaml:"confirm_jitter" json:"confirm_jitter"`
	ClearDelay        Duration `yaml:"clear_delay" json:"clear_delay"`
	TransferFallback  Duration `yaml:"transfer_fallback" json:"transfer_fallback"`
}

type PlaybackTuning struct {
	LoadDelay        Duration `yaml:"load_delay" json:"load_delay"`
	ZoneInterval     Duration `yaml:"zone_interval" json:"zone_interval"`
	ZonePulse        Duration `yaml:"zone_pulse" json:"zone_pulse"`
	DefaultIntensity int      `yaml:"default_intensity" json:"default_intensity"`
}

type LedgerTuning struct {
	InitialUSDC  float64 `yaml:"initial_usdc" json:"initial_usdc"`
	InitialKAIKA int64   `yaml:"initial_kaika" json:"initial_kaika"`
}

// NoticeTuning controls how long transient status lines stay visible.
type NoticeTuning struct {
	DeviceRequired Duration `yaml:"device_required" json:"device_required"`
	Precondition   Duration `yaml:"precondition" json:"precondition"`
	PurchaseResult Duration `yaml:"purchase_result" json:"purchase_result"`
}

type SceneTuning struct {
	LayoutSeed uint64 `yaml:"layout_seed" json:"layout_seed"`
}

func ms(n int) Duration { return Duration(time.Duration(n) * time.Millisecond) }

// DefaultTuning returns the values the demo shipped with.
func DefaultTuning() Tuning {
	return Tuning{
		Device: DeviceTuning{
			ConnectBase:        ms(2000),
			ConnectJitter:      ms(1000),
			SuccessProbability: 0.85,
			ModalCloseDelay:    ms(1200),
		},
		Purchase: PurchaseTuning{
			PrepareDelay:       ms(500),
			SignDelay:          ms(1500),
			ConfirmDelay:       ms(3000),
			ConfirmJitter:      ms(2000),
			SuccessProbability: 0.85,
			RewardFraction:     0.5,
		},
		Collection: CollectionTuning{
			RewardPerSecond:   0.3,
			RewardPerDistance: 0.5,
			MinReward:         5,
			MovementInterval:  ms(800),
			DurationInterval:  ms(1000),
			TurnProbability:   0.1,
			MaxTurn:           0.39269908169872414, // pi/8
			BaseSpeed:         0.7,
			SpeedJitter:       0.2,
			DistanceScale:     0.2,
			MaxDataIncrement:  5,
			LandmarkRadius:    15,
			PackageDelay:      ms(1000),
			UploadDelay:       ms(1500),
			ConfirmDelay:      ms(2000),
			ConfirmJitter:     ms(1000),
			ClearDelay:        ms(2500),
			TransferFallback:  ms(5000),
		},
		Playback: PlaybackTuning{
			LoadDelay:        ms(800),
			ZoneInterval:     ms(1500),
			ZonePulse:        ms(500),
			DefaultIntensity: 50,
		},
		Ledger: LedgerTuning{
			InitialUSDC:  50,
			InitialKAIKA: 125,
		},
		Notices: NoticeTuning{
			DeviceRequired: ms(3000),
			Precondition:   ms(4000),
			PurchaseResult: ms(5000),
		},
		Scene: SceneTuning{
			LayoutSeed: 20240501,
		},
	}
}

// LoadTuning overlays the YAML file at path onto the defaults. A missing file is not an error.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return tuning, nil
	}
	if err != nil {
		return tuning, fmt.Errorf("read tuning file: %w", err)
	}

	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return tuning, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if err := tuning.Validate(); err != nil {
		return tuning, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return tuning, nil
}

// Encode renders the tuning as YAML.
func (t Tuning) Encode() ([]byte, error) {
	return yaml.Marshal(t)
}

func (t Tuning) Validate() error {
	probabilities := map[string]float64{
		"device.success_probability":   t.Device.SuccessProbability,
		"purchase.success_probability": t.Purchase.SuccessProbability,
		"collection.turn_probability":  t.Collection.TurnProbability,
		"purchase.reward_fraction":     t.Purchase.RewardFraction,
	}
	for name, p := range probabilities {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, p)
		}
	}

	delays := map[string]Duration{
		"device.connect_base":          t.Device.ConnectBase,
		"device.connect_jitter":        t.Device.ConnectJitter,
		"device.modal_close_delay":     t.Device.ModalCloseDelay,
		"purchase.prepare_delay":       t.Purchase.PrepareDelay,
		"purchase.sign_delay":          t.Purchase.SignDelay,
		"purchase.confirm_delay":       t.Purchase.ConfirmDelay,
		"purchase.confirm_jitter":      t.Purchase.ConfirmJitter,
		"collection.package_delay":     t.Collection.PackageDelay,
		"collection.upload_delay":      t.Collection.UploadDelay,
		"collection.confirm_delay":     t.Collection.ConfirmDelay,
		"collection.confirm_jitter":    t.Collection.ConfirmJitter,
		"collection.clear_delay":       t.Collection.ClearDelay,
		"collection.transfer_fallback": t.Collection.TransferFallback,
		"playback.load_delay":          t.Playback.LoadDelay,
		"playback.zone_pulse":          t.Playback.ZonePulse,
		"notices.device_required":      t.Notices.DeviceRequired,
		"notices.precondition":         t.Notices.Precondition,
		"notices.purchase_result":      t.Notices.PurchaseResult,
	}
	for name, d := range delays {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	intervals := map[string]Duration{
		"collection.movement_interval": t.Collection.MovementInterval,
		"collection.duration_interval": t.Collection.DurationInterval,
		"playback.zone_interval":       t.Playback.ZoneInterval,
	}
	for name, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	switch {
	case t.Collection.MinReward < 0:
		return fmt.Errorf("collection.min_reward must not be negative")
	case t.Collection.RewardPerSecond < 0 || t.Collection.RewardPerDistance < 0:
		return fmt.Errorf("collection reward rates must not be negative")
	case t.Collection.MaxDataIncrement < 1:
		return fmt.Errorf("collection.max_data_increment must be at least 1")
	case t.Collection.BaseSpeed < 0 || t.Collection.DistanceScale < 0:
		return fmt.Errorf("collection speed and distance scale must not be negative")
	case t.Ledger.InitialUSDC < 0 || t.Ledger.InitialKAIKA < 0:
		return fmt.Errorf("ledger starting balances must not be negative")
	case t.Playback.DefaultIntensity < 0 || t.Playback.DefaultIntensity > 100:
		return fmt.Errorf("playback.default_intensity must be within [0,100]")
	}
	return nil
}

// Scaled returns a copy with every delay and interval multiplied by factor.
// Non-zero durations never drop below one millisecond.
func (t Tuning) Scaled(factor float64) Tuning {
	out := t
	for _, d := range []*Duration{
		&out.Device.ConnectBase, &out.Device.ConnectJitter, &out.Device.ModalCloseDelay,
		&out.Purchase.PrepareDelay, &out.Purchase.SignDelay, &out.Purchase.ConfirmDelay, &out.Purchase.ConfirmJitter,
		&out.Collection.MovementInterval, &out.Collection.DurationInterval,
		&out.Collection.PackageDelay, &out.Collection.UploadDelay, &out.Collection.ConfirmDelay,
		&out.Collection.ConfirmJitter, &out.Collection.ClearDelay, &out.Collection.TransferFallback,
		&out.Playback.LoadDelay, &out.Playback.ZoneInterval, &out.Playback.ZonePulse,
		&out.Notices.DeviceRequired, &out.Notices.Precondition, &out.Notices.PurchaseResult,
	} {
		if *d == 0 {
			continue
		}
		scaled := Duration(float64(*d) * factor)
		if scaled < Duration(time.Millisecond) {
			scaled = Duration(time.Millisecond)
		}
		*d = scaled
	}
	return out
}

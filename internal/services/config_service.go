// internal/services/config_service.go
package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/yusukekikuta0509/projectKAIKA/internal/config"
	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

const maxConfigHistory = 1000

// ConfigService holds the live simulation tuning. Sessions copy it when they open,
// so a change only affects sessions created afterwards.
type ConfigService struct {
	tuning        config.Tuning
	path          string
	subscribers   []ConfigChangeSubscriber
	changeHistory []ConfigChangeRecord
	auditEnabled  bool
	auditLog      []ConfigAuditEntry
	clock         clock.Clock
	logger        *utils.Logger
	mu            sync.RWMutex
}

// ConfigChangeSubscriber is told about every accepted tuning change.
type ConfigChangeSubscriber interface {
	OnTuningChanged(old, updated config.Tuning)
}

type ConfigChangeRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	ChangedBy string        `json:"changed_by"`
	Old       config.Tuning `json:"old"`
	New       config.Tuning `json:"new"`
}

type ConfigAuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
}

// NewConfigService starts from tuning; path is remembered for Reload.
func NewConfigService(tuning config.Tuning, path string, clk clock.Clock) *ConfigService {
	if clk == nil {
		clk = clock.New()
	}
	return &ConfigService{
		tuning:        tuning,
		path:          path,
		changeHistory: make([]ConfigChangeRecord, 0, 16),
		clock:         clk,
		logger:        utils.GetLogger(),
	}
}

// GetTuning returns a copy of the live tuning.
func (s *ConfigService) GetTuning() config.Tuning {
	s.recordAudit("read", "system")

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tuning
}

// ApplyPatch merges a partial JSON document into the tuning and validates the result.
func (s *ConfigService) ApplyPatch(patch []byte, changedBy string) (config.Tuning, error) {
	s.mu.RLock()
	updated := s.tuning
	s.mu.RUnlock()

	if err := json.Unmarshal(patch, &updated); err != nil {
		return config.Tuning{}, apperrors.NewValidationError("malformed tuning patch", err)
	}
	if err := s.Replace(updated, changedBy); err != nil {
		return config.Tuning{}, err
	}
	return updated, nil
}

// Replace swaps in a complete tuning after validation.
func (s *ConfigService) Replace(updated config.Tuning, changedBy string) error {
	if err := updated.Validate(); err != nil {
		return apperrors.NewValidationError("invalid tuning", err)
	}

	s.mu.Lock()
	old := s.tuning
	s.tuning = updated
	if len(s.changeHistory) >= maxConfigHistory {
		s.changeHistory = s.changeHistory[1:]
	}
	s.changeHistory = append(s.changeHistory, ConfigChangeRecord{
		Timestamp: s.clock.Now(),
		ChangedBy: changedBy,
		Old:       old,
		New:       updated,
	})
	subscribers := make([]ConfigChangeSubscriber, len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	s.recordAudit("write", changedBy)
	s.logger.Info("tuning updated", map[string]interface{}{"changed_by": changedBy})

	for _, subscriber := range subscribers {
		subscriber.OnTuningChanged(old, updated)
	}
	return nil
}

// Reload reads the tuning file again.
func (s *ConfigService) Reload(changedBy string) error {
	tuning, err := config.LoadTuning(s.path)
	if err != nil {
		return apperrors.NewValidationError("reload tuning", err)
	}
	return s.Replace(tuning, changedBy)
}

func (s *ConfigService) SubscribeToChanges(subscriber ConfigChangeSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, subscriber)
}

func (s *ConfigService) UnsubscribeFromChanges(subscriber ConfigChangeSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == subscriber {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			break
		}
	}
}

// GetChangeHistory returns up to limit most recent changes, oldest first.
func (s *ConfigService) GetChangeHistory(limit int) []ConfigChangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.changeHistory) {
		limit = len(s.changeHistory)
	}
	history := make([]ConfigChangeRecord, limit)
	copy(history, s.changeHistory[len(s.changeHistory)-limit:])
	return history
}

func (s *ConfigService) EnableAudit(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditEnabled = enabled
}

func (s *ConfigService) GetAuditLog(limit int) []ConfigAuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.auditEnabled {
		return nil
	}
	if limit <= 0 || limit > len(s.auditLog) {
		limit = len(s.auditLog)
	}
	entries := make([]ConfigAuditEntry, limit)
	copy(entries, s.auditLog[len(s.auditLog)-limit:])
	return entries
}

func (s *ConfigService) recordAudit(action, user string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.auditEnabled {
		return
	}
	if len(s.auditLog) >= maxConfigHistory {
		s.auditLog = s.auditLog[1:]
	}
	s.auditLog = append(s.auditLog, ConfigAuditEntry{
		Timestamp: s.clock.Now(),
		Action:    action,
		User:      user,
	})
}

// internal/services/session_service.go
package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/yusukekikuta0509/projectKAIKA/internal/config"
	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

// SourceFactory builds the outcome source for a new session.
type SourceFactory func(sessionID string) machine.Source

// SessionServiceOptions wires the registry. Config and Catalog are required.
type SessionServiceOptions struct {
	Config   *ConfigService
	Catalog  *CatalogService
	Events   EventSink
	Progress *ProgressService
	Metrics  *utils.MetricsCollector
	Clock    clock.Clock
	Sources  SourceFactory
	TTL      time.Duration
}

// SessionService owns every open session and closes the ones left idle.
type SessionService struct {
	opts     SessionOptions
	config   *ConfigService
	catalog  *CatalogService
	sources  SourceFactory
	ttl      time.Duration
	clock    clock.Clock
	metrics  *utils.MetricsCollector
	logger   *utils.Logger
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionService(opts SessionServiceOptions) *SessionService {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Metrics == nil {
		opts.Metrics = utils.GetMetricsCollector()
	}
	if opts.Progress == nil {
		opts.Progress = NewProgressService(opts.Clock)
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	s := &SessionService{
		opts: SessionOptions{
			Clock:    opts.Clock,
			Events:   opts.Events,
			Progress: opts.Progress,
			Metrics:  opts.Metrics,
			Logger:   utils.GetLogger(),
		},
		config:   opts.Config,
		catalog:  opts.Catalog,
		sources:  opts.Sources,
		ttl:      opts.TTL,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		logger:   utils.GetLogger(),
		sessions: make(map[string]*Session),
	}
	if opts.Config != nil {
		opts.Config.SubscribeToChanges(s)
	}
	return s
}

// Create opens a session with the current tuning and a fresh ledger.
func (s *SessionService) Create() *Session {
	opts := s.opts
	opts.Tuning = config.DefaultTuning()
	if s.config != nil {
		opts.Tuning = s.config.GetTuning()
	}
	opts.Catalog = models.DefaultFeelings()
	if s.catalog != nil {
		opts.Catalog = s.catalog.Feelings()
	}
	opts.ID = uuid.NewString()
	if s.sources != nil {
		opts.Source = s.sources(opts.ID)
	}
	session := NewSession(opts)

	s.mu.Lock()
	s.sessions[session.ID] = session
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.IncActiveSessions()
	s.logger.Info("session created", map[string]interface{}{
		"session_id": session.ID,
		"open":       count,
	})
	return session
}

// Get returns an open session.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("session not found: "+id, nil)
	}
	return session, nil
}

// Close removes and closes a session, waiting for its flows to exit.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return apperrors.NewNotFoundError("session not found: "+id, nil)
	}

	session.Close()
	s.metrics.DecActiveSessions()
	return nil
}

func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// IDs lists open sessions in a stable order.
func (s *SessionService) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Reap closes sessions idle for longer than the TTL and returns how many.
func (s *SessionService) Reap() int {
	now := s.clock.Now()
	var stale []string

	s.mu.RLock()
	for id, session := range s.sessions {
		if now.Sub(session.LastSeen()) > s.ttl {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if err := s.Close(id); err == nil {
			closed++
		}
	}
	if closed > 0 {
		s.logger.Info("reaped idle sessions", map[string]interface{}{"closed": closed})
	}
	return closed
}

// StartReaper runs Reap every interval until ctx ends.
func (s *SessionService) StartReaper(ctx context.Context, interval time.Duration) {
	ticker := s.clock.Ticker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Reap()
			}
		}
	}()
}

// Shutdown closes every session.
func (s *SessionService) Shutdown() {
	for _, id := range s.IDs() {
		_ = s.Close(id)
	}
}

// OnTuningChanged notes that open sessions keep the tuning they started with.
func (s *SessionService) OnTuningChanged(old, updated config.Tuning) {
	s.logger.Info("tuning changed", map[string]interface{}{
		"open_sessions": s.Count(),
	})
}

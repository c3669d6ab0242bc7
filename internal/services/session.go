// internal/services/session.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/yusukekikuta0509/projectKAIKA/internal/config"
	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/scene"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

// SessionOptions are the collaborators of one session. Zero values get defaults.
type SessionOptions struct {
	ID       string
	Tuning   config.Tuning
	Clock    clock.Clock
	Source   machine.Source
	Catalog  []models.Feeling
	Ledger   LedgerStore
	Events   EventSink
	Progress *ProgressService
	Metrics  *utils.MetricsCollector
	Logger   *utils.Logger
}

// Session is one visit to the demo: device pairing, storefront, playback and
// data collection sharing one wallet and ledger. All state sits behind mu; every
// background flow runs under ctx and re-checks it after taking mu.
type Session struct {
	ID        string
	CreatedAt time.Time

	tuning   config.Tuning
	clock    clock.Clock
	src      machine.Source
	events   EventSink
	progress *ProgressService
	metrics  *utils.MetricsCollector
	logger   *utils.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	lastSeen time.Time
	wallet   models.WalletState
	ledger   LedgerStore

	conn          machine.Connection
	connectCancel context.CancelFunc

	purchasingID   string
	purchaseCancel context.CancelFunc
	notice         string
	noticeSeq      uint64

	playback    machine.Playback
	loadCancel  context.CancelFunc
	zonesCancel context.CancelFunc
	zoneSeq     uint64

	collection    machine.Collection
	collectCancel context.CancelFunc
	submitCancel  context.CancelFunc
	runSeq        uint64

	viewer *scene.Viewer
}

func NewSession(opts SessionOptions) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Source == nil {
		opts.Source = machine.NewRandSource(uint64(opts.Clock.Now().UnixNano()))
	}
	if opts.Catalog == nil {
		opts.Catalog = models.DefaultFeelings()
	}
	if opts.Progress == nil {
		opts.Progress = NewProgressService(opts.Clock)
	}
	if opts.Metrics == nil {
		opts.Metrics = utils.GetMetricsCollector()
	}
	if opts.Logger == nil {
		opts.Logger = utils.GetLogger()
	}
	if opts.Events == nil {
		opts.Events = EventSinkFunc(func(models.Event) {})
	}

	now := opts.Clock.Now()
	if opts.Ledger == nil {
		opts.Ledger = NewMemoryLedger(opts.Catalog, models.Balances{
			USDC:  models.USDC(opts.Tuning.Ledger.InitialUSDC),
			KAIKA: opts.Tuning.Ledger.InitialKAIKA,
		}, models.SeedTransactions(now))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:         opts.ID,
		CreatedAt:  now,
		tuning:     opts.Tuning,
		clock:      opts.Clock,
		src:        opts.Source,
		events:     opts.Events,
		progress:   opts.Progress,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		ctx:        ctx,
		cancel:     cancel,
		lastSeen:   now,
		ledger:     opts.Ledger,
		conn:       machine.NewConnection(),
		playback:   machine.NewPlayback(opts.Tuning.Playback.DefaultIntensity),
		collection: machine.NewCollection(),
		viewer:     scene.NewViewer(models.StartPosition),
	}
}

// Snapshot is the full externally visible state of a session.
type Snapshot struct {
	ID           string                `json:"id"`
	CreatedAt    time.Time             `json:"created_at"`
	Wallet       models.WalletState    `json:"wallet"`
	Balances     models.Balances       `json:"balances"`
	Device       models.DeviceView     `json:"device"`
	Playback     models.PlaybackView   `json:"playback"`
	PurchasingID string                `json:"purchasing_feeling_id,omitempty"`
	Notice       string                `json:"notice,omitempty"`
	Collection   models.CollectionView `json:"collection"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		Wallet:       s.wallet,
		Balances:     s.ledger.Balances(),
		Device:       s.conn.View(),
		Playback:     s.playback.View(),
		PurchasingID: s.purchasingID,
		Notice:       s.notice,
		Collection:   s.collection.View(),
	}
}

// Tuning returns the tuning this session was opened with.
func (s *Session) Tuning() config.Tuning { return s.tuning }

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = s.clock.Now()
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close cancels every running flow and timer and waits for them to exit.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.emitLocked(models.EventSessionClosed, nil)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("session closed", map[string]interface{}{"session_id": s.ID})
}

// lockOpen takes mu and fails when the session is closed.
func (s *Session) lockOpen() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperrors.NewClosedError(s.ID)
	}
	s.lastSeen = s.clock.Now()
	return nil
}

// SetWallet records the wallet state reported by the client. Losing the wallet
// aborts a data collection in progress.
func (s *Session) SetWallet(w models.WalletState) error {
	if err := s.lockOpen(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.wallet = w
	s.emitLocked(models.EventWallet, map[string]any{"connected": w.Connected, "ready": w.Ready()})

	if !w.Connected && s.collection.State != models.CollectionIdle {
		s.resetCollectionLocked("wallet disconnected")
	}
	return nil
}

// Balances, feelings and history.

func (s *Session) Balances() models.Balances {
	return s.ledger.Balances()
}

func (s *Session) Transactions() []models.Transaction {
	return s.ledger.Transactions()
}

// Marketplace lists feelings not yet owned in category.
func (s *Session) Marketplace(category models.FeelingCategory) []models.Feeling {
	return FilterFeelings(s.ledger.Feelings(), category, false)
}

// Owned lists owned feelings in category.
func (s *Session) Owned(category models.FeelingCategory) []models.Feeling {
	return FilterFeelings(s.ledger.Feelings(), category, true)
}

// Frame advances the decorative scene by dt seconds.
func (s *Session) Frame(dt float64) scene.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.viewer.Advance(scene.FrameInput{
		Position:   s.collection.Position,
		Heading:    s.collection.LastStep,
		Collecting: s.collection.State == models.CollectionCollecting,
		DT:         dt,
	})
}

// helpers

func (s *Session) emitLocked(t models.EventType, data map[string]any) {
	s.events.Publish(models.Event{
		ID:        ulid.Make().String(),
		SessionID: s.ID,
		Type:      t,
		Data:      data,
		Timestamp: s.clock.Now(),
	})
}

// spawn runs fn on a tracked goroutine.
func (s *Session) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// child derives a cancellable context from the session context.
func (s *Session) child() (context.Context, context.CancelFunc) {
	return context.WithCancel(s.ctx)
}

// sleep waits d on the session clock; false when ctx ended first.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := s.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}

// setNoticeLocked shows a storefront status line, cleared after clearAfter unless replaced.
func (s *Session) setNoticeLocked(msg string, clearAfter time.Duration) {
	s.noticeSeq++
	seq := s.noticeSeq
	s.notice = msg
	s.emitLocked(models.EventPurchaseStatus, map[string]any{"message": msg})

	if msg == "" || clearAfter <= 0 {
		return
	}
	s.spawn(func() {
		if !s.sleep(s.ctx, clearAfter) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ctx.Err() != nil || s.noticeSeq != seq {
			return
		}
		s.notice = ""
		s.emitLocked(models.EventPurchaseStatus, map[string]any{"message": ""})
	})
}

func (s *Session) ignored(operation string, out machine.Outcome) {
	s.metrics.RecordIgnored(operation, string(out.Reason))
	s.logger.Debug("operation ignored", map[string]interface{}{
		"session_id": s.ID,
		"operation":  operation,
		"reason":     string(out.Reason),
	})
}

func newTaskID(kind string) string {
	return kind + "_" + uuid.NewString()
}

func stop(cancel *context.CancelFunc) {
	if *cancel != nil {
		(*cancel)()
		*cancel = nil
	}
}

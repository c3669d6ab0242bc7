package services

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusukekikuta0509/projectKAIKA/internal/config"
	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/storage"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

func TestSessionServiceLifecycle(t *testing.T) {
	mock := clock.NewMock()
	cfg := NewConfigService(fastTuning(), "", mock)
	svc := NewSessionService(SessionServiceOptions{
		Config:  cfg,
		Metrics: utils.NewMetricsCollector(),
		Clock:   mock,
		Sources: func(string) machine.Source { return machine.FixedSource(0.1) },
		TTL:     time.Minute,
	})
	t.Cleanup(svc.Shutdown)

	a := svc.Create()
	b := svc.Create()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, svc.Count())

	got, err := svc.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = svc.Get("missing")
	assert.True(t, apperrors.IsNotFoundError(err))

	mock.Add(30 * time.Second)
	b.Touch()
	mock.Add(45 * time.Second)

	assert.Equal(t, 1, svc.Reap())
	assert.True(t, a.Closed())
	assert.False(t, b.Closed())
	assert.Equal(t, []string{b.ID}, svc.IDs())

	require.NoError(t, svc.Close(b.ID))
	assert.True(t, apperrors.IsNotFoundError(svc.Close(b.ID)))
	assert.Zero(t, svc.Count())
}

func TestSessionsKeepTheirTuning(t *testing.T) {
	cfg := NewConfigService(config.DefaultTuning(), "", nil)
	svc := NewSessionService(SessionServiceOptions{Config: cfg, Metrics: utils.NewMetricsCollector()})
	t.Cleanup(svc.Shutdown)

	before := svc.Create()
	_, err := cfg.ApplyPatch([]byte(`{"ledger":{"initial_usdc":10}}`), "test")
	require.NoError(t, err)
	after := svc.Create()

	assert.Equal(t, models.USDC(50), before.Balances().USDC)
	assert.Equal(t, models.USDC(10), after.Balances().USDC)
}

func TestConfigServicePatch(t *testing.T) {
	cfg := NewConfigService(config.DefaultTuning(), "", clock.NewMock())
	cfg.EnableAudit(true)

	updated, err := cfg.ApplyPatch([]byte(`{"device":{"success_probability":0.5,"connect_base":"1s"}}`), "ops")
	require.NoError(t, err)
	assert.Equal(t, 0.5, updated.Device.SuccessProbability)
	assert.Equal(t, time.Second, updated.Device.ConnectBase.Std())
	assert.Equal(t, config.DefaultTuning().Device.ConnectJitter, updated.Device.ConnectJitter)

	_, err = cfg.ApplyPatch([]byte(`{"purchase":{"success_probability":2}}`), "ops")
	assert.True(t, apperrors.IsValidationError(err))
	_, err = cfg.ApplyPatch([]byte(`{`), "ops")
	assert.True(t, apperrors.IsValidationError(err))

	assert.Equal(t, 0.5, cfg.GetTuning().Device.SuccessProbability)
	history := cfg.GetChangeHistory(0)
	require.Len(t, history, 1)
	assert.Equal(t, "ops", history[0].ChangedBy)
	assert.NotEmpty(t, cfg.GetAuditLog(0))
}

type tuningWatcher struct{ calls int }

func (w *tuningWatcher) OnTuningChanged(old, updated config.Tuning) { w.calls++ }

func TestConfigServiceSubscribers(t *testing.T) {
	cfg := NewConfigService(config.DefaultTuning(), "", nil)
	w := &tuningWatcher{}
	cfg.SubscribeToChanges(w)
	require.NoError(t, cfg.Replace(config.DefaultTuning(), "a"))
	cfg.UnsubscribeFromChanges(w)
	require.NoError(t, cfg.Replace(config.DefaultTuning(), "b"))
	assert.Equal(t, 1, w.calls)
}

func TestProgressTracker(t *testing.T) {
	mock := clock.NewMock()
	svc := NewProgressService(mock)
	tracker, err := svc.CreateTracker("purchase_1", "purchase", "s1")
	require.NoError(t, err)
	_, err = svc.CreateTracker("purchase_1", "purchase", "s1")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflictError(err))
	got, ok := svc.GetTracker("purchase_1")
	require.True(t, ok)
	assert.Same(t, tracker, got)

	sub := tracker.Subscribe()
	first := <-sub
	assert.Equal(t, ProgressRunning, first.Status)

	tracker.UpdateProgress(40, "Uploading")
	tracker.UpdateProgress(20, "")
	update := <-sub
	assert.Equal(t, 40, update.Progress)
	assert.Equal(t, "Uploading", tracker.Snapshot().Message)

	tracker.Complete("done")
	tracker.Fail("late")
	final := tracker.Snapshot()
	assert.Equal(t, ProgressCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	<-tracker.Done

	tracker.Unsubscribe(sub)
	assert.Zero(t, svc.CleanupCompletedTasks(time.Minute))
	mock.Add(2 * time.Minute)
	assert.Equal(t, 1, svc.CleanupCompletedTasks(time.Minute))
	_, ok := svc.GetTracker("purchase_1")
	assert.False(t, ok)
}

func TestMemoryLedgerIsolation(t *testing.T) {
	catalog := models.DefaultFeelings()
	a := NewMemoryLedger(catalog, models.Balances{}, nil)
	b := NewMemoryLedger(catalog, models.Balances{}, nil)

	require.NoError(t, a.MarkOwned("lunar_dust"))
	fa, _ := a.Feeling("lunar_dust")
	fb, _ := b.Feeling("lunar_dust")
	assert.True(t, fa.Owned)
	assert.False(t, fb.Owned)
	assert.True(t, apperrors.IsNotFoundError(a.MarkOwned("missing")))

	a.Record(models.Transaction{ID: "old"})
	a.Record(models.Transaction{ID: "new"})
	txs := a.Transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, "new", txs[0].ID)
}

func TestCatalogService(t *testing.T) {
	builtin, err := NewCatalogService(nil, "")
	require.NoError(t, err)
	assert.Len(t, builtin.Feelings(), 8)
	_, err = builtin.Get("nope")
	assert.True(t, apperrors.IsNotFoundError(err))

	store, err := storage.NewFileStorage(t.TempDir(), nil)
	require.NoError(t, err)
	custom := []models.Feeling{models.DefaultFeelings()[0]}
	require.NoError(t, store.SaveJSONFile("catalog.json", custom))

	loaded, err := NewCatalogService(store, "catalog.json")
	require.NoError(t, err)
	assert.Len(t, loaded.Feelings(), 1)

	require.NoError(t, store.SaveJSONFile("dup.json", append(custom, custom...)))
	_, err = NewCatalogService(store, "dup.json")
	assert.True(t, apperrors.IsValidationError(err))

	nature := FilterFeelings(models.DefaultFeelings(), models.CategoryNature, true)
	for _, f := range nature {
		assert.True(t, f.Owned)
		assert.Equal(t, models.CategoryNature, f.Category)
	}
	assert.Len(t, FilterFeelings(models.DefaultFeelings(), models.CategoryAll, false), 5)
}

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus(utils.NewMetricsCollector())
	a, b := &recorder{}, &recorder{}
	bus.AddSink(a)
	bus.AddSink(b)
	bus.AddSink(LogSink{Logger: utils.GetLogger()})

	bus.Publish(models.Event{Type: models.EventWallet})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

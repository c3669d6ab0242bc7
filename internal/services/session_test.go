package services

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusukekikuta0509/projectKAIKA/internal/config"
	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

var readyWallet = models.WalletState{Connected: true, PublicKey: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"}

func fastTuning() config.Tuning {
	d := config.Duration(time.Millisecond)
	t := config.DefaultTuning()
	t.Device.ConnectBase, t.Device.ConnectJitter, t.Device.ModalCloseDelay = d, 0, d
	t.Purchase.PrepareDelay, t.Purchase.SignDelay, t.Purchase.ConfirmDelay, t.Purchase.ConfirmJitter = d, d, d, 0
	t.Collection.MovementInterval, t.Collection.DurationInterval = d, d
	t.Collection.PackageDelay, t.Collection.UploadDelay, t.Collection.ConfirmDelay, t.Collection.ConfirmJitter = d, d, d, 0
	t.Collection.ClearDelay = config.Duration(time.Hour)
	t.Collection.TransferFallback = config.Duration(time.Hour)
	t.Playback.LoadDelay, t.Playback.ZoneInterval, t.Playback.ZonePulse = d, d, config.Duration(5*time.Millisecond)
	return t
}

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(evt models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) has(match func(models.Event) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, evt := range r.events {
		if match(evt) {
			return true
		}
	}
	return false
}

func newTestSession(t *testing.T, tuning config.Tuning, src machine.Source, opts ...func(*SessionOptions)) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	o := SessionOptions{
		Tuning:  tuning,
		Source:  src,
		Events:  rec,
		Metrics: utils.NewMetricsCollector(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	s := NewSession(o)
	t.Cleanup(s.Close)
	return s, rec
}

func TestConnectDeviceSuccess(t *testing.T) {
	s, rec := newTestSession(t, fastTuning(), machine.FixedSource(0.1))
	require.NoError(t, s.SetModal(true))

	result, err := s.ConnectDevice(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.True(t, result.Connected)
	assert.Equal(t, models.StatusConnected, result.Status)
	assert.True(t, s.Snapshot().Device.HapticOn)

	assert.Eventually(t, func() bool { return !s.Snapshot().Device.ModalOpen }, waitFor, tick)
	assert.True(t, rec.has(func(e models.Event) bool { return e.Type == models.EventDeviceModal && e.Data["open"] == false }))

	again, err := s.ConnectDevice(context.Background())
	require.NoError(t, err)
	assert.False(t, again.Accepted)
	assert.Equal(t, machine.ReasonAlreadyConnected, again.Reason)
}

func TestConnectDeviceFailureAllowsRetry(t *testing.T) {
	src := machine.NewSequenceSource(0.9, 0.1)
	s, _ := newTestSession(t, fastTuning(), src)
	require.NoError(t, s.SetModal(true))

	result, err := s.ConnectDevice(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Connected)
	assert.Equal(t, models.StatusFailed, s.Snapshot().Device.Status)
	assert.True(t, s.Snapshot().Device.ModalOpen)

	result, err = s.ConnectDevice(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.True(t, result.Connected)
}

func TestDisconnectDuringConnectIsNotOverridden(t *testing.T) {
	tuning := fastTuning()
	tuning.Device.ConnectBase = config.Duration(200 * time.Millisecond)
	s, _ := newTestSession(t, tuning, machine.FixedSource(0.1))

	done := make(chan ConnectResult, 1)
	go func() {
		result, _ := s.ConnectDevice(context.Background())
		done <- result
	}()
	require.Eventually(t, func() bool {
		return s.Snapshot().Device.Status == models.StatusConnecting
	}, waitFor, tick)

	require.NoError(t, s.DisconnectDevice())

	result := <-done
	assert.False(t, result.Connected)
	assert.Equal(t, machine.ReasonConnectCancelled, result.Reason)
	assert.Equal(t, models.StatusDisconnected, s.Snapshot().Device.Status)
	assert.False(t, s.Snapshot().Device.HapticOn)
}

func TestConnectDeviceCallerContext(t *testing.T) {
	tuning := fastTuning()
	tuning.Device.ConnectBase = config.Duration(100 * time.Millisecond)
	s, _ := newTestSession(t, tuning, machine.FixedSource(0.1))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := s.ConnectDevice(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the attempt still resolves for the session
	assert.Eventually(t, func() bool { return s.Snapshot().Device.Status == models.StatusConnected }, waitFor, tick)
}

func TestPurchaseSuccess(t *testing.T) {
	s, rec := newTestSession(t, fastTuning(), machine.FixedSource(0.1))
	require.NoError(t, s.SetWallet(readyWallet))
	before := s.Balances()

	out, err := s.Purchase("tokyo_asphalt")
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.NotEmpty(t, out.TaskID)
	assert.Equal(t, "tokyo_asphalt", s.Snapshot().PurchasingID)

	require.Eventually(t, func() bool { return s.Snapshot().PurchasingID == "" }, waitFor, tick)

	after := s.Balances()
	assert.Equal(t, before.USDC-models.USDC(8), after.USDC)
	assert.Equal(t, before.KAIKA+4, after.KAIKA)

	f, ok := s.ledger.Feeling("tokyo_asphalt")
	require.True(t, ok)
	assert.True(t, f.Owned)

	txs := s.Transactions()
	require.Len(t, txs, 5)
	assert.Equal(t, models.TxConfirmed, txs[0].Status)
	assert.Equal(t, models.USDC(8), txs[0].Amount)
	assert.Regexp(t, `^tx_[0-9A-Z]{26}$`, txs[0].ID)
	assert.Regexp(t, `^sim_[0-9a-f]{30}$`, txs[0].TxHash)
	assert.Contains(t, s.Snapshot().Notice, "Purchase successful! 'Tokyo Asphalt'")
	assert.True(t, rec.has(func(e models.Event) bool { return e.Type == models.EventTransaction }))

	tracker, ok := s.progress.GetTracker(out.TaskID)
	require.True(t, ok)
	assert.Equal(t, ProgressCompleted, tracker.Snapshot().Status)
}

func TestPurchaseFailureKeepsBalances(t *testing.T) {
	s, _ := newTestSession(t, fastTuning(), machine.FixedSource(0.9))
	require.NoError(t, s.SetWallet(readyWallet))
	before := s.Balances()

	out, err := s.Purchase("gravel_path")
	require.NoError(t, err)
	require.True(t, out.Accepted)
	require.Eventually(t, func() bool { return s.Snapshot().PurchasingID == "" }, waitFor, tick)

	assert.Equal(t, before, s.Balances())
	f, _ := s.ledger.Feeling("gravel_path")
	assert.False(t, f.Owned)

	txs := s.Transactions()
	require.Len(t, txs, 5)
	assert.Equal(t, models.TxFailed, txs[0].Status)
	assert.Equal(t, models.USDC(5.5), txs[0].Amount)
	assert.Equal(t, machine.NoticePurchaseFailed, s.Snapshot().Notice)
}

func TestPurchasePreconditions(t *testing.T) {
	poor := func(o *SessionOptions) {
		o.Ledger = NewMemoryLedger(models.DefaultFeelings(), models.Balances{USDC: models.USDC(5)}, nil)
	}
	s, _ := newTestSession(t, fastTuning(), machine.FixedSource(0.1), poor)

	out, err := s.Purchase("quantum_flow")
	require.NoError(t, err)
	assert.Equal(t, machine.ReasonWalletNotReady, out.Reason)
	assert.Equal(t, machine.NoticeWalletRequired, s.Snapshot().Notice)

	require.NoError(t, s.SetWallet(readyWallet))

	out, _ = s.Purchase("quantum_flow")
	assert.Equal(t, machine.ReasonInsufficientFunds, out.Reason)
	assert.Equal(t, "Insufficient USDC balance. Required: 12.50, Available: 5.00", s.Snapshot().Notice)

	out, _ = s.Purchase("beach_sand")
	assert.Equal(t, machine.ReasonAlreadyOwned, out.Reason)

	out, _ = s.Purchase("nope")
	assert.Equal(t, machine.ReasonUnknownFeeling, out.Reason)

	assert.Equal(t, models.USDC(5), s.Balances().USDC)
	assert.Empty(t, s.Transactions())
}

func TestPurchaseInsufficientFundsNotice(t *testing.T) {
	feelings := append(models.DefaultFeelings(), models.Feeling{
		ID: "ten_dollar", Name: "Ten Dollar", Price: models.USDC(10), Category: models.CategoryAbstract,
	})
	ledger := func(o *SessionOptions) {
		o.Ledger = NewMemoryLedger(feelings, models.Balances{USDC: models.USDC(5), KAIKA: 125}, nil)
	}
	s, _ := newTestSession(t, fastTuning(), machine.FixedSource(0.1), ledger)
	require.NoError(t, s.SetWallet(readyWallet))

	out, err := s.Purchase("ten_dollar")
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, machine.ReasonInsufficientFunds, out.Reason)
	assert.Equal(t, "Insufficient USDC balance. Required: 10.00, Available: 5.00", out.Notice)
	assert.Equal(t, models.Balances{USDC: models.USDC(5), KAIKA: 125}, s.Balances())
	assert.Empty(t, s.Transactions())
}

func TestPurchaseRejectedWhileSelectionLoads(t *testing.T) {
	tuning := fastTuning()
	tuning.Playback.LoadDelay = config.Duration(time.Hour)
	s, _ := newTestSession(t, tuning, machine.FixedSource(0.1))
	require.NoError(t, s.SetWallet(readyWallet))
	_, err := s.ConnectDevice(context.Background())
	require.NoError(t, err)
	before := s.Balances()
	history := len(s.Transactions())

	out, err := s.SelectFeeling("beach_sand")
	require.NoError(t, err)
	require.True(t, out.Accepted)
	require.Equal(t, "beach_sand", s.Snapshot().Playback.LoadingID)

	out, err = s.Purchase("tokyo_asphalt")
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, machine.ReasonBusy, out.Reason)
	assert.Empty(t, out.TaskID)
	assert.Empty(t, s.Snapshot().PurchasingID)
	assert.Equal(t, before, s.Balances())
	assert.Len(t, s.Transactions(), history)
}

func TestPurchaseSingleInFlight(t *testing.T) {
	tuning := fastTuning()
	tuning.Purchase.SignDelay = config.Duration(100 * time.Millisecond)
	s, _ := newTestSession(t, tuning, machine.FixedSource(0.1))
	require.NoError(t, s.SetWallet(readyWallet))

	first, err := s.Purchase("tokyo_asphalt")
	require.NoError(t, err)
	require.True(t, first.Accepted)

	second, err := s.Purchase("gravel_path")
	require.NoError(t, err)
	assert.False(t, second.Accepted)
	assert.Equal(t, machine.ReasonBusy, second.Reason)

	require.Eventually(t, func() bool { return s.Snapshot().PurchasingID == "" }, waitFor, tick)
	assert.Len(t, s.Transactions(), 5)
}

func TestPlaybackFlow(t *testing.T) {
	s, rec := newTestSession(t, fastTuning(), machine.FixedSource(0.1))

	out, err := s.SelectFeeling("beach_sand")
	require.NoError(t, err)
	assert.Equal(t, machine.ReasonDeviceNotConnected, out.Reason)
	assert.Equal(t, machine.NoticeDeviceFirst, s.Snapshot().Notice)

	out, _ = s.TogglePlayback()
	assert.False(t, out.Accepted)
	assert.True(t, s.Snapshot().Device.ModalOpen)

	_, err = s.ConnectDevice(context.Background())
	require.NoError(t, err)

	out, _ = s.SelectFeeling("forest_floor")
	assert.Equal(t, machine.ReasonNotOwned, out.Reason)

	out, _ = s.SelectFeeling("beach_sand")
	require.True(t, out.Accepted)
	require.Eventually(t, func() bool { return s.Snapshot().Playback.SelectedID == "beach_sand" }, waitFor, tick)

	out, _ = s.TogglePlayback()
	require.True(t, out.Accepted)
	assert.True(t, s.Snapshot().Playback.Playing)
	assert.Eventually(t, func() bool {
		return rec.has(func(e models.Event) bool { return e.Type == models.EventPlaybackZone && e.Data["zone"] != "" })
	}, waitFor, tick)

	out, _ = s.SetIntensity(80)
	assert.True(t, out.Accepted)
	out, _ = s.SetIntensity(101)
	assert.Equal(t, machine.ReasonInvalidIntensity, out.Reason)
	assert.Equal(t, 80, s.Snapshot().Playback.Intensity)

	require.NoError(t, s.DisconnectDevice())
	view := s.Snapshot().Playback
	assert.False(t, view.Playing)
	assert.Empty(t, view.SelectedID)
	assert.Empty(t, view.ActiveZone)
}

func TestCollectionRewardUsesElapsedTime(t *testing.T) {
	mock := clock.NewMock()
	tuning := fastTuning()
	tuning.Collection.MovementInterval = config.Duration(time.Hour)
	tuning.Collection.DurationInterval = config.Duration(time.Hour)
	s, _ := newTestSession(t, tuning, machine.FixedSource(0.5), func(o *SessionOptions) { o.Clock = mock })

	out, err := s.StopCollection()
	require.NoError(t, err)
	assert.Equal(t, machine.ReasonWrongState, out.Reason)
	assert.Equal(t, models.CollectionIdle, s.Snapshot().Collection.State)

	out, _ = s.StartCollection()
	assert.Equal(t, machine.ReasonWalletNotReady, out.Reason)
	assert.Equal(t, machine.NoticeWalletFirst, out.Notice)

	require.NoError(t, s.SetWallet(readyWallet))
	out, _ = s.StartCollection()
	assert.Equal(t, machine.ReasonNoTerrain, out.Reason)

	out, _ = s.SelectTerrain("city")
	require.True(t, out.Accepted)
	out, _ = s.StartCollection()
	require.True(t, out.Accepted)
	assert.Equal(t, "City Scan", s.Snapshot().Collection.DataType)

	mock.Add(30 * time.Second)

	out, _ = s.StopCollection()
	require.True(t, out.Accepted)
	view := s.Snapshot().Collection
	assert.Equal(t, models.CollectionCollected, view.State)
	assert.Equal(t, int64(30), view.DurationSeconds)
	require.NotNil(t, view.EarnedKAIKA)
	assert.Equal(t, int64(9), *view.EarnedKAIKA)
}

func TestCollectionSubmitCreditsReward(t *testing.T) {
	s, rec := newTestSession(t, fastTuning(), machine.FixedSource(0.5))
	require.NoError(t, s.SetWallet(readyWallet))
	before := s.Balances().KAIKA

	out, _ := s.SubmitCollection()
	assert.Equal(t, machine.ReasonWrongState, out.Reason)

	_, _ = s.SelectTerrain("forest")
	out, _ = s.StartCollection()
	require.True(t, out.Accepted)

	require.Eventually(t, func() bool { return s.Snapshot().Collection.Distance > 0 }, waitFor, tick)
	out, _ = s.StopCollection()
	require.True(t, out.Accepted)

	view := s.Snapshot().Collection
	for _, v := range []float64{view.Position.X, view.Position.Y} {
		assert.GreaterOrEqual(t, v, models.MapMin)
		assert.LessOrEqual(t, v, models.MapMax)
	}
	earned := *view.EarnedKAIKA
	assert.GreaterOrEqual(t, earned, int64(5))

	out, _ = s.SubmitCollection()
	require.True(t, out.Accepted)
	assert.Equal(t, models.CollectionSubmitting, s.Snapshot().Collection.State)

	require.Eventually(t, func() bool { return s.Snapshot().Collection.State == models.CollectionIdle }, waitFor, tick)
	assert.Equal(t, before+earned, s.Balances().KAIKA)
	assert.Equal(t, "Success! +"+itoa(earned)+" KAIKA", s.Snapshot().Collection.SubmissionStatus)
	assert.True(t, rec.has(func(e models.Event) bool { return e.Type == models.EventSubmissionStatus }))
}

func TestWalletDisconnectResetsCollection(t *testing.T) {
	s, _ := newTestSession(t, fastTuning(), machine.FixedSource(0.5))
	require.NoError(t, s.SetWallet(readyWallet))
	_, _ = s.SelectTerrain("beach")
	out, _ := s.StartCollection()
	require.True(t, out.Accepted)

	require.NoError(t, s.SetWallet(models.WalletState{}))
	view := s.Snapshot().Collection
	assert.Equal(t, models.CollectionIdle, view.State)
	assert.Zero(t, view.DataKB)

	// no ticker keeps mutating the reset state
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, s.Snapshot().Collection.DataKB)
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	s, rec := newTestSession(t, fastTuning(), machine.FixedSource(0.1))
	s.Close()
	s.Close()

	assert.True(t, s.Closed())
	_, err := s.Purchase("tokyo_asphalt")
	assert.True(t, apperrors.IsClosedError(err))
	_, err = s.ConnectDevice(context.Background())
	assert.True(t, apperrors.IsClosedError(err))
	assert.True(t, rec.has(func(e models.Event) bool { return e.Type == models.EventSessionClosed }))
}

func TestFrameFollowsCollection(t *testing.T) {
	s, _ := newTestSession(t, fastTuning(), machine.FixedSource(0.5))
	frame := s.Frame(1.0 / 60)
	assert.True(t, frame.Visible)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

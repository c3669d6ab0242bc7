package machine

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

var defaultWalk = WalkParams{
	TurnProbability:  0.1,
	MaxTurn:          math.Pi / 8,
	BaseSpeed:        0.7,
	SpeedJitter:      0.2,
	DistanceScale:    0.2,
	MaxDataIncrement: 5,
	LandmarkRadius:   15,
}

var defaultReward = RewardParams{PerSecond: 0.3, PerDistance: 0.5, Min: 5}

func TestConnectionLifecycle(t *testing.T) {
	c := NewConnection()

	c, gen, out := c.Begin()
	require.True(t, out.Accepted)
	assert.Equal(t, models.StatusConnecting, c.Status)

	_, _, again := c.Begin()
	assert.Equal(t, ReasonConnectInFlight, again.Reason)

	c, applied := c.Resolve(gen, true)
	require.True(t, applied)
	assert.Equal(t, models.StatusConnected, c.Status)
	assert.True(t, c.HapticOn)

	_, _, out = c.Begin()
	assert.Equal(t, ReasonAlreadyConnected, out.Reason)
}

func TestConnectionStaleResolutionIgnored(t *testing.T) {
	c := NewConnection()
	c, gen, _ := c.Begin()
	c = c.Disconnect()

	c, applied := c.Resolve(gen, true)
	assert.False(t, applied)
	assert.Equal(t, models.StatusDisconnected, c.Status)
	assert.False(t, c.HapticOn)

	// a retry after failure gets a fresh generation
	c, gen2, out := c.Begin()
	require.True(t, out.Accepted)
	assert.Greater(t, gen2, gen)
	c, _ = c.Resolve(gen2, false)
	assert.Equal(t, models.StatusFailed, c.Status)
	_, _, out = c.Begin()
	assert.True(t, out.Accepted)
}

func TestCheckPurchaseOrder(t *testing.T) {
	forest := &models.Feeling{ID: "forest_floor", Name: "Forest Floor", Price: models.USDC(9)}
	wallet := models.WalletState{Connected: true, PublicKey: "pk"}

	assert.Equal(t, ReasonUnknownFeeling, CheckPurchase(PurchaseRequest{}).Reason)

	owned := *forest
	owned.Owned = true
	assert.Equal(t, ReasonAlreadyOwned, CheckPurchase(PurchaseRequest{Feeling: &owned}).Reason)

	busy := CheckPurchase(PurchaseRequest{Feeling: forest, PurchasingID: "lunar_dust", Wallet: wallet, Balance: models.USDC(50)})
	assert.Equal(t, ReasonBusy, busy.Reason)

	loading := CheckPurchase(PurchaseRequest{Feeling: forest, LoadingID: "beach_sand", Wallet: wallet, Balance: models.USDC(50)})
	assert.False(t, loading.Accepted)
	assert.Equal(t, ReasonBusy, loading.Reason)
	assert.Empty(t, loading.Notice)

	noWallet := CheckPurchase(PurchaseRequest{Feeling: forest, Wallet: models.WalletState{Connected: true}, Balance: models.USDC(50)})
	assert.Equal(t, ReasonWalletNotReady, noWallet.Reason)
	assert.Equal(t, NoticeWalletRequired, noWallet.Notice)

	poor := CheckPurchase(PurchaseRequest{Feeling: forest, Wallet: wallet, Balance: models.USDC(8.5)})
	assert.Equal(t, ReasonInsufficientFunds, poor.Reason)
	assert.Equal(t, "Insufficient USDC balance. Required: 9.00, Available: 8.50", poor.Notice)

	assert.True(t, CheckPurchase(PurchaseRequest{Feeling: forest, Wallet: wallet, Balance: models.USDC(9)}).Accepted)
}

func TestSettlePurchase(t *testing.T) {
	b := models.Balances{USDC: models.USDC(50), KAIKA: 125}
	b = SettlePurchase(b, models.USDC(7.5), 0.5)
	assert.Equal(t, models.USDC(42.5), b.USDC)
	assert.Equal(t, int64(128), b.KAIKA)

	assert.Equal(t, int64(7), PurchaseReward(models.USDC(15), 0.5))
	assert.Equal(t, int64(2), PurchaseReward(models.USDC(4.5), 0.5))
}

func TestReward(t *testing.T) {
	assert.Equal(t, int64(5), Reward(10, 0, defaultReward))
	assert.Equal(t, int64(5), Reward(10, 2, RewardParams{Min: 5, PerSecond: 0.3, PerDistance: 0.5}))
	assert.Equal(t, int64(32), Reward(100, 4, defaultReward))
	assert.Equal(t, int64(7), Reward(20, 3, defaultReward))
	assert.Equal(t, int64(5), Reward(0, 0, defaultReward))
}

func TestRewardNeverBelowMinimum(t *testing.T) {
	src := NewRandSource(7)
	for i := 0; i < 1000; i++ {
		d := int64(src.Float64() * 600)
		dist := src.Float64() * 200
		r := Reward(d, dist, defaultReward)
		assert.GreaterOrEqual(t, r, defaultReward.Min)
		assert.GreaterOrEqual(t, r, int64(math.Floor(float64(d)*0.3+dist*0.5)))
	}
}

func TestNextStepTurns(t *testing.T) {
	step := NextStep(models.StartHeading, NewSequenceSource(0.05, 0.75, 0.5, 0.99), defaultWalk)

	angle := math.Atan2(step.Heading.Y, step.Heading.X)
	assert.InDelta(t, math.Pi/2+math.Pi/16, angle, 1e-9)
	assert.InDelta(t, 0.7, math.Hypot(step.Move.X, step.Move.Y), 1e-9)
	assert.Equal(t, int64(5), step.DataKB)
}

func TestNextStepKeepsHeading(t *testing.T) {
	step := NextStep(models.StartHeading, FixedSource(0.5), defaultWalk)
	assert.Equal(t, models.StartHeading, step.Heading)
	assert.InDelta(t, 0.7, step.Move.Y, 1e-9)
	assert.Equal(t, int64(3), step.DataKB)
}

func TestAdvanceStaysInBounds(t *testing.T) {
	src := NewRandSource(42)
	c := NewCollection()
	c.Terrain = "city"
	c, _ = c.Start(true, time.Unix(0, 0))

	prevDistance := 0.0
	for i := 0; i < 5000; i++ {
		move := models.Direction{X: (src.Float64() - 0.5) * 100, Y: (src.Float64() - 0.5) * 100}
		c = c.Advance(Step{Heading: c.Heading, Move: move, DataKB: 1}, defaultWalk)
		require.True(t, c.Position.X >= 0 && c.Position.X <= 100, "x=%v", c.Position.X)
		require.True(t, c.Position.Y >= 0 && c.Position.Y <= 100, "y=%v", c.Position.Y)
		require.GreaterOrEqual(t, c.Distance, prevDistance)
		prevDistance = c.Distance
	}
	assert.Equal(t, int64(5000), c.DataKB)
}

func TestCollectionLifecycle(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCollection()

	_, out := c.Start(false, start)
	assert.Equal(t, NoticeWalletFirst, out.Notice)
	_, out = c.Start(true, start)
	assert.Equal(t, NoticeTerrainFirst, out.Notice)

	c, out = c.SelectTerrain("forest")
	require.True(t, out.Accepted)
	c, out = c.Start(true, start)
	require.True(t, out.Accepted)
	assert.Equal(t, "Forest Scan", c.DataType)

	_, out = c.SelectTerrain("beach")
	assert.Equal(t, ReasonWrongState, out.Reason)

	c = c.Advance(NextStep(c.Heading, FixedSource(0.5), defaultWalk), defaultWalk)
	assert.InDelta(t, 0.14, c.Distance, 1e-9)
	assert.Equal(t, "Roppongi District", c.Location)

	c = c.Tick(start.Add(2500 * time.Millisecond))
	assert.Equal(t, int64(2), c.Duration)

	c, out = c.Stop(start.Add(100*time.Second+900*time.Millisecond), defaultReward)
	require.True(t, out.Accepted)
	assert.Equal(t, models.CollectionCollected, c.State)
	assert.Equal(t, int64(100), c.Duration)
	require.NotNil(t, c.Earned)
	assert.Equal(t, int64(30), *c.Earned)

	_, out = c.Stop(start, defaultReward)
	assert.False(t, out.Accepted)

	_, out = c.BeginSubmit(false)
	assert.Equal(t, ReasonWalletNotReady, out.Reason)
	c, out = c.BeginSubmit(true)
	require.True(t, out.Accepted)
	assert.True(t, c.Transferring)
	assert.Equal(t, SubmitPhases[0], c.Status)

	c, reward, ok := c.CompleteSubmit()
	require.True(t, ok)
	assert.Equal(t, int64(30), reward)
	assert.Equal(t, "Success! +30 KAIKA", c.Status)
	assert.Equal(t, models.CollectionIdle, c.State)

	c = c.ClearResults()
	assert.Empty(t, c.Terrain)
	assert.Nil(t, c.Earned)
	assert.Zero(t, c.Distance)
}

func TestClearResultsSkipsNewRun(t *testing.T) {
	c := NewCollection()
	c, _ = c.SelectTerrain("water")
	c, _ = c.Start(true, time.Now())
	c = c.ClearResults()
	assert.Equal(t, "water", c.Terrain)
}

func TestResetFromAnyState(t *testing.T) {
	c := NewCollection()
	c, _ = c.SelectTerrain("city")
	c, _ = c.Start(true, time.Now())
	c = c.Advance(NextStep(c.Heading, FixedSource(0.5), defaultWalk), defaultWalk)
	pos := c.Position

	c = c.Reset()
	assert.Equal(t, models.CollectionIdle, c.State)
	assert.True(t, c.StartedAt.IsZero())
	assert.Zero(t, c.Distance)
	assert.Equal(t, pos, c.Position)
	assert.Equal(t, "city", c.Terrain)
}

func TestPlaybackSelectAndToggle(t *testing.T) {
	owned := &models.Feeling{ID: "beach_sand", Owned: true}
	p := NewPlayback(50)

	_, out := p.BeginSelect(owned, false, "")
	assert.Equal(t, NoticeDeviceFirst, out.Notice)

	_, out = p.BeginSelect(&models.Feeling{ID: "lunar_dust"}, true, "")
	assert.Equal(t, ReasonNotOwned, out.Reason)

	_, out = p.BeginSelect(owned, true, "forest_floor")
	assert.Equal(t, ReasonBusy, out.Reason)

	p, out = p.BeginSelect(owned, true, "")
	require.True(t, out.Accepted)
	p, ok := p.FinishSelect("beach_sand")
	require.True(t, ok)

	_, out, openModal := p.Toggle(false)
	assert.False(t, out.Accepted)
	assert.True(t, openModal)

	p, out, _ = p.Toggle(true)
	require.True(t, out.Accepted)
	assert.True(t, p.Playing)
	p = p.Light("zone3")
	assert.Equal(t, "zone3", p.ActiveZone)

	p = p.Clear()
	assert.False(t, p.Playing)
	assert.Empty(t, p.SelectedID)
	_, out, _ = p.Toggle(true)
	assert.Equal(t, ReasonNoSelection, out.Reason)
}

func TestFinishSelectAfterClear(t *testing.T) {
	p := NewPlayback(50)
	p, _ = p.BeginSelect(&models.Feeling{ID: "beach_sand", Owned: true}, true, "")
	p = p.Clear()
	_, ok := p.FinishSelect("beach_sand")
	assert.False(t, ok)
}

func TestTxHash(t *testing.T) {
	h := TxHash(NewRandSource(1))
	require.Len(t, h, 34)
	assert.True(t, strings.HasPrefix(h, "sim_"))
	assert.Equal(t, "sim_"+strings.Repeat("f", 30), TxHash(FixedSource(0.9999)))
}

func TestJitter(t *testing.T) {
	assert.Equal(t, 2500*time.Millisecond, Jitter(FixedSource(0.5), 2*time.Second, time.Second))
	assert.Equal(t, time.Second, Jitter(FixedSource(0.5), time.Second, 0))
}

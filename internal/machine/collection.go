// internal/machine/collection.go
package machine

import (
	"fmt"
	"math"
	"time"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

const (
	NoticeWalletFirst  = "Please connect your wallet first."
	NoticeTerrainFirst = "Please select a terrain type first."
)

// SubmitPhases are the status lines of the upload chain.
var SubmitPhases = [3]string{"Packaging data...", "Uploading securely...", "Confirm transaction..."}

// RewardParams are the knobs of the collection reward.
type RewardParams struct {
	PerSecond   float64
	PerDistance float64
	Min         int64
}

// Reward is max(Min, floor(duration*PerSecond + distance*PerDistance)).
func Reward(durationSeconds int64, distance float64, p RewardParams) int64 {
	r := int64(math.Floor(float64(durationSeconds)*p.PerSecond + distance*p.PerDistance))
	if r < p.Min {
		return p.Min
	}
	return r
}

// WalkParams shape the simulated pedestrian movement.
type WalkParams struct {
	TurnProbability  float64
	MaxTurn          float64
	BaseSpeed        float64
	SpeedJitter      float64
	DistanceScale    float64
	MaxDataIncrement int64
	LandmarkRadius   float64
}

// Step is one movement tick before it is applied to a position.
type Step struct {
	Heading models.Direction
	Move    models.Direction
	DataKB  int64
}

// NextStep draws a step: an occasional small turn, a jittered speed and a data increment.
func NextStep(heading models.Direction, src Source, p WalkParams) Step {
	if Chance(src, p.TurnProbability) {
		angle := math.Atan2(heading.Y, heading.X) + (src.Float64()*2-1)*p.MaxTurn
		heading = models.Direction{X: math.Cos(angle), Y: math.Sin(angle)}
	}
	speed := p.BaseSpeed + (src.Float64()-0.5)*p.SpeedJitter
	data := int64(src.Float64()*float64(p.MaxDataIncrement)) + 1
	if data > p.MaxDataIncrement {
		data = p.MaxDataIncrement
	}
	return Step{
		Heading: heading,
		Move:    models.Direction{X: heading.X * speed, Y: heading.Y * speed},
		DataKB:  data,
	}
}

// Clamp keeps a position inside the map bounds.
func Clamp(p models.Position) models.Position {
	return models.Position{
		X: math.Max(models.MapMin, math.Min(models.MapMax, p.X)),
		Y: math.Max(models.MapMin, math.Min(models.MapMax, p.Y)),
	}
}

// Collection is the data collection session state.
type Collection struct {
	State        models.CollectionState
	Terrain      string
	DataType     string
	StartedAt    time.Time
	Duration     int64
	Distance     float64
	DataKB       int64
	Position     models.Position
	Heading      models.Direction
	LastStep     models.Direction
	Location     string
	Earned       *int64
	Status       string
	Transferring bool
}

func NewCollection() Collection {
	return Collection{
		State:    models.CollectionIdle,
		Position: models.StartPosition,
		Heading:  models.StartHeading,
		Location: models.StartLocationName,
	}
}

func (c Collection) SelectTerrain(id string) (Collection, Outcome) {
	if c.State != models.CollectionIdle {
		return c, Ignore(ReasonWrongState, "")
	}
	if _, ok := models.FindTerrain(id); !ok {
		return c, Ignore(ReasonUnknownTerrain, "")
	}
	c.Terrain = id
	return c, Accept()
}

func (c Collection) Start(walletConnected bool, now time.Time) (Collection, Outcome) {
	if !walletConnected {
		return c, Ignore(ReasonWalletNotReady, NoticeWalletFirst)
	}
	if c.Terrain == "" {
		return c, Ignore(ReasonNoTerrain, NoticeTerrainFirst)
	}
	if c.State != models.CollectionIdle {
		return c, Ignore(ReasonWrongState, "")
	}
	terrain, _ := models.FindTerrain(c.Terrain)
	c.State = models.CollectionCollecting
	c.StartedAt = now
	c.DataType = terrain.Label + " Scan"
	c.Duration = 0
	c.Distance = 0
	c.DataKB = 0
	c.Earned = nil
	c.Status = ""
	return c, Accept()
}

// Tick refreshes the displayed whole-second duration.
func (c Collection) Tick(now time.Time) Collection {
	if c.State == models.CollectionCollecting && !c.StartedAt.IsZero() {
		c.Duration = wholeSeconds(now.Sub(c.StartedAt))
	}
	return c
}

// Advance applies a movement step. Distance counts the unclamped step length.
func (c Collection) Advance(step Step, p WalkParams) Collection {
	if c.State != models.CollectionCollecting {
		return c
	}
	prev := c.Position
	c.Position = Clamp(models.Position{X: prev.X + step.Move.X, Y: prev.Y + step.Move.Y})
	c.Distance += math.Hypot(step.Move.X, step.Move.Y) * p.DistanceScale
	c.DataKB += step.DataKB
	c.Heading = step.Heading
	c.LastStep = models.Direction{}
	dx, dy := c.Position.X-prev.X, c.Position.Y-prev.Y
	if l := math.Hypot(dx, dy); l > 0.01 {
		c.LastStep = models.Direction{X: dx / l, Y: dy / l}
	}
	c.Location = models.LocationName(c.Position, p.LandmarkRadius)
	return c
}

func (c Collection) Stop(now time.Time, p RewardParams) (Collection, Outcome) {
	if c.State != models.CollectionCollecting || c.StartedAt.IsZero() {
		return c, Ignore(ReasonWrongState, "")
	}
	c.Duration = wholeSeconds(now.Sub(c.StartedAt))
	c.State = models.CollectionCollected
	c.StartedAt = time.Time{}
	c.LastStep = models.Direction{}
	reward := Reward(c.Duration, c.Distance, p)
	c.Earned = &reward
	return c, Accept()
}

func (c Collection) BeginSubmit(walletConnected bool) (Collection, Outcome) {
	if c.State != models.CollectionCollected {
		return c, Ignore(ReasonWrongState, "")
	}
	if !walletConnected {
		return c, Ignore(ReasonWalletNotReady, "")
	}
	if c.Earned == nil {
		return c, Ignore(ReasonNoReward, "")
	}
	c.State = models.CollectionSubmitting
	c.Status = SubmitPhases[0]
	c.Transferring = true
	return c, Accept()
}

// CompleteSubmit finishes the upload and returns the reward to credit.
func (c Collection) CompleteSubmit() (Collection, int64, bool) {
	if c.State != models.CollectionSubmitting || c.Earned == nil {
		return c, 0, false
	}
	reward := *c.Earned
	c.State = models.CollectionIdle
	c.Status = fmt.Sprintf("Success! +%d KAIKA", reward)
	c.Duration = 0
	c.Transferring = false
	return c, reward, true
}

// ClearResults drops the stats shown after a submission, unless a new run started.
func (c Collection) ClearResults() Collection {
	if c.State != models.CollectionIdle {
		return c
	}
	c.Terrain = ""
	c.DataType = ""
	c.Earned = nil
	c.Status = ""
	c.DataKB = 0
	c.Distance = 0
	return c
}

// Reset returns to idle from any state, keeping the walker where it stands.
func (c Collection) Reset() Collection {
	c.State = models.CollectionIdle
	c.StartedAt = time.Time{}
	c.Duration = 0
	c.Distance = 0
	c.DataKB = 0
	c.DataType = ""
	c.Earned = nil
	c.Status = ""
	c.Transferring = false
	c.LastStep = models.Direction{}
	return c
}

func (c Collection) View() models.CollectionView {
	v := models.CollectionView{
		State:            c.State,
		Terrain:          c.Terrain,
		DataType:         c.DataType,
		DurationSeconds:  c.Duration,
		Distance:         c.Distance,
		DataKB:           c.DataKB,
		Position:         c.Position,
		Heading:          c.Heading,
		LastStep:         c.LastStep,
		LocationName:     c.Location,
		SubmissionStatus: c.Status,
		Transferring:     c.Transferring,
	}
	if !c.StartedAt.IsZero() {
		started := c.StartedAt
		v.StartedAt = &started
	}
	if c.Earned != nil {
		earned := *c.Earned
		v.EarnedKAIKA = &earned
	}
	return v
}

func wholeSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

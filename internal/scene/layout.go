// internal/scene/layout.go
package scene

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	BuildingCount = 700

	dashLength    = 2.0
	dashGap       = 2.0
	dashWidth     = 0.15
	roadHeight    = 0.01
	dashHeight    = 0.015
	glowChance    = 0.2
	minBuildingH  = 0.5
	maxBuildingH  = 5.0
	minFootprint  = 0.6
	maxFootprint  = 1.8
	maxYaw        = math.Pi * 0.1
	colorJitter   = 0.15
	roadClearance = RoadWidth * 0.8
)

var (
	buildingPalette = []mgl64.Vec3{
		{0x55 / 255.0, 0x55 / 255.0, 0x55 / 255.0},
		{0x66 / 255.0, 0x66 / 255.0, 0x66 / 255.0},
		{0x77 / 255.0, 0x77 / 255.0, 0x77 / 255.0},
	}
	lightTint = mgl64.Vec3{0x99 / 255.0, 0x99 / 255.0, 0x99 / 255.0}
	darkTint  = mgl64.Vec3{0x33 / 255.0, 0x33 / 255.0, 0x33 / 255.0}
)

// Building is one instanced tower with its vertex color.
type Building struct {
	Matrix    mgl64.Mat4 `json:"matrix"`
	Color     mgl64.Vec3 `json:"color"`
	Height    float64    `json:"height"`
	Footprint float64    `json:"footprint"`
}

// Layout holds the instance transforms of the static city.
type Layout struct {
	Seed      uint64       `json:"seed"`
	Roads     []mgl64.Mat4 `json:"roads"`
	Lines     []mgl64.Mat4 `json:"lines"`
	Buildings []Building   `json:"buildings"`
	Glows     []mgl64.Mat4 `json:"glows"`
}

// RoadCount is two strips per grid line.
func RoadCount() int { return (Blocks*2 + 1) * 2 }

// LineCount is the number of centre-line dashes over both axes.
func LineCount() int {
	perAxis := int(math.Ceil(Half * 2 / (dashLength + dashGap)))
	return (Blocks*2 + 1) * perAxis * 2
}

func instance(x, y, z, yaw, sx, sy, sz float64) mgl64.Mat4 {
	return mgl64.Translate3D(x, y, z).
		Mul4(mgl64.HomogRotate3DY(yaw)).
		Mul4(mgl64.Scale3D(sx, sy, sz))
}

// GenerateLayout builds the city for seed. Equal seeds give identical layouts.
func GenerateLayout(seed uint64) *Layout {
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	layout := &Layout{
		Seed:      seed,
		Roads:     make([]mgl64.Mat4, 0, RoadCount()),
		Lines:     make([]mgl64.Mat4, 0, LineCount()),
		Buildings: make([]Building, 0, BuildingCount),
		Glows:     make([]mgl64.Mat4, 0, BuildingCount),
	}

	for r := -Blocks; r <= Blocks; r++ {
		o := float64(r) * Pitch
		layout.Roads = append(layout.Roads,
			instance(0, roadHeight, o, 0, Half*2, 1, RoadWidth),
			instance(o, roadHeight, 0, 0, RoadWidth, 1, Half*2),
		)
		for t := -Half; t < Half; t += dashLength + dashGap {
			layout.Lines = append(layout.Lines,
				instance(t+dashLength/2, dashHeight, o, 0, dashLength, 1, dashWidth),
				instance(o, dashHeight, t+dashLength/2, math.Pi/2, dashLength, 1, dashWidth),
			)
		}
	}

	for len(layout.Buildings) < BuildingCount {
		bx := (rng.Float64()*Blocks*2 - Blocks) * Pitch
		bz := (rng.Float64()*Blocks*2 - Blocks) * Pitch
		if math.Abs(math.Mod(bx, Pitch)) < roadClearance || math.Abs(math.Mod(bz, Pitch)) < roadClearance {
			continue
		}
		h := randRange(rng, minBuildingH, maxBuildingH)
		b := randRange(rng, minFootprint, maxFootprint)
		yaw := rng.Float64() * maxYaw

		base := buildingPalette[rng.IntN(len(buildingPalette))]
		tint := darkTint
		if rng.Float64() > 0.5 {
			tint = lightTint
		}
		color := lerp(base, tint, rng.Float64()*colorJitter)

		layout.Buildings = append(layout.Buildings, Building{
			Matrix:    instance(bx, h/2, bz, yaw, b, h, b),
			Color:     color,
			Height:    h,
			Footprint: b,
		})

		if rng.Float64() < glowChance {
			layout.Glows = append(layout.Glows, instance(bx, h+0.1, bz, 0, b*0.3, 0.1, b*0.3))
		} else {
			layout.Glows = append(layout.Glows, hidden())
		}
	}

	return layout
}

// hidden parks an unused instance far below the ground at zero scale.
func hidden() mgl64.Mat4 {
	return instance(0, -1000, 0, 0, 0, 0, 0)
}

func randRange(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// GlowCount reports how many caps are visible.
func (l *Layout) GlowCount() int {
	n := 0
	for _, m := range l.Glows {
		if m.At(1, 1) != 0 {
			n++
		}
	}
	return n
}

// DefaultLayoutCacheSize is how many seeds a LayoutCache keeps by default.
const DefaultLayoutCacheSize = 4

// LayoutCache memoises the most recently used layouts per seed.
type LayoutCache struct {
	mu      sync.Mutex
	layouts *lru.Cache[uint64, *Layout]
}

// NewLayoutCache keeps at most size layouts; size below one uses DefaultLayoutCacheSize.
func NewLayoutCache(size int) *LayoutCache {
	if size < 1 {
		size = DefaultLayoutCacheSize
	}
	layouts, err := lru.New[uint64, *Layout](size)
	if err != nil {
		panic(fmt.Sprintf("layout cache: %v", err))
	}
	return &LayoutCache{layouts: layouts}
}

func (c *LayoutCache) Get(seed uint64) *Layout {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.layouts.Get(seed); ok {
		return l
	}
	l := GenerateLayout(seed)
	c.layouts.Add(seed, l)
	return l
}

// Len reports how many layouts are cached.
func (c *LayoutCache) Len() int {
	return c.layouts.Len()
}

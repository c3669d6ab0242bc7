package scene

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

func assertVec(t *testing.T, want, got mgl64.Vec3) {
	t.Helper()
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want[i], got[i], 1e-9, "component %d", i)
	}
}

func TestToWorld(t *testing.T) {
	assertVec(t, mgl64.Vec3{-90, 0, -90}, ToWorld(models.Position{X: 0, Y: 0}))
	assertVec(t, mgl64.Vec3{90, 0, 90}, ToWorld(models.Position{X: 100, Y: 100}))
	assertVec(t, mgl64.Vec3{0, 0, 0}, ToWorld(models.Position{X: 50, Y: 50}))
	assertVec(t, mgl64.Vec3{-18, 0, 36}, ToWorld(models.Position{X: 40, Y: 70}))
}

func TestShortestAngle(t *testing.T) {
	assert.InDelta(t, 2*math.Pi-6, ShortestAngle(3, -3), 1e-9)
	assert.InDelta(t, -(2*math.Pi - 6), ShortestAngle(-3, 3), 1e-9)
	assert.InDelta(t, 0.5, ShortestAngle(0, 0.5), 1e-9)
	assert.InDelta(t, 0, ShortestAngle(1, 1+4*math.Pi), 1e-9)
}

func TestCameraLookAtIsFrameRateIndependent(t *testing.T) {
	target := mgl64.Vec3{30, 0, -12}

	one := NewCameraRig(mgl64.Vec3{})
	one.Update(target, 0.5)

	two := NewCameraRig(mgl64.Vec3{})
	two.Update(target, 0.25)
	two.Update(target, 0.25)

	assertVec(t, one.LookAt, two.LookAt)
}

func TestCameraConverges(t *testing.T) {
	target := mgl64.Vec3{10, 0, 20}
	rig := NewCameraRig(mgl64.Vec3{})
	for i := 0; i < 600; i++ {
		rig.Update(target, 1.0/60)
	}
	assertVec(t, mgl64.Vec3{10, 25, 55}, rig.Position)
	assertVec(t, target, rig.LookAt)
}

func TestAvatarKeepsYawWithoutHeading(t *testing.T) {
	a := Avatar{Yaw: 1.2}
	a.Update(mgl64.Vec3{}, models.Direction{X: 0.005, Y: -0.005}, false, 1, 0.016)
	assert.Equal(t, 1.2, a.Yaw)
}

func TestAvatarTurnsShortWay(t *testing.T) {
	a := Avatar{Yaw: 3.0}
	heading := models.Direction{X: math.Sin(-3.0), Y: math.Cos(-3.0)}
	a.Update(mgl64.Vec3{}, heading, false, 0, 0.016)
	assert.Greater(t, a.Yaw, 3.0)

	for i := 0; i < 500; i++ {
		a.Update(mgl64.Vec3{}, heading, false, 0, 0.016)
	}
	assert.InDelta(t, 0, ShortestAngle(a.Yaw, -3.0), 1e-6)
}

func TestAvatarAnimation(t *testing.T) {
	var a Avatar
	tm := math.Pi / 16
	a.Update(mgl64.Vec3{5, 0, 7}, models.Direction{}, true, tm, 0.016)

	assert.InDelta(t, 0.6+0.08, a.Position.Y(), 1e-9)
	assert.InDelta(t, 5, a.Position.X(), 1e-9)
	pulse := 0.8 + math.Sin(6*tm)*0.4
	assert.InDelta(t, 1.6*pulse*0.7, a.BodyGlow, 1e-9)
	assert.InDelta(t, 1.6*pulse*0.9, a.HeadGlow, 1e-9)
	assert.InDelta(t, 1.6*(2+math.Sin(6*tm)), a.LightGlow, 1e-9)
}

func TestLayoutCounts(t *testing.T) {
	l := GenerateLayout(7)
	assert.Len(t, l.Roads, 50)
	assert.Equal(t, 50, RoadCount())
	assert.Len(t, l.Lines, 2250)
	assert.Equal(t, 2250, LineCount())
	assert.Len(t, l.Buildings, BuildingCount)
	assert.Len(t, l.Glows, BuildingCount)

	glows := l.GlowCount()
	assert.Greater(t, glows, 70)
	assert.Less(t, glows, 210)
}

func TestLayoutDeterministic(t *testing.T) {
	a := GenerateLayout(99)
	b := GenerateLayout(99)
	c := GenerateLayout(100)
	assert.Equal(t, a.Buildings, b.Buildings)
	assert.NotEqual(t, a.Buildings[0].Matrix, c.Buildings[0].Matrix)
}

func TestBuildingsAvoidRoads(t *testing.T) {
	for _, b := range GenerateLayout(3).Buildings {
		x, z := b.Matrix.At(0, 3), b.Matrix.At(2, 3)
		require.GreaterOrEqual(t, math.Abs(math.Mod(x, Pitch)), roadClearance)
		require.GreaterOrEqual(t, math.Abs(math.Mod(z, Pitch)), roadClearance)
		require.True(t, b.Height >= 0.5 && b.Height <= 5)
		require.True(t, b.Footprint >= 0.6 && b.Footprint <= 1.8)
		require.InDelta(t, b.Height/2, b.Matrix.At(1, 3), 1e-9)
	}
}

func TestLayoutCache(t *testing.T) {
	cache := NewLayoutCache(DefaultLayoutCacheSize)
	assert.Same(t, cache.Get(5), cache.Get(5))
}

func TestLayoutCacheStaysBounded(t *testing.T) {
	cache := NewLayoutCache(2)
	first := cache.Get(1)
	for seed := uint64(1000); seed < 1050; seed++ {
		cache.Get(seed)
		require.LessOrEqual(t, cache.Len(), 2)
	}
	assert.Equal(t, 2, cache.Len())
	assert.NotSame(t, first, cache.Get(1))

	recent := cache.Get(7)
	cache.Get(8)
	assert.Same(t, recent, cache.Get(7))
}

func TestViewerRejectsDegenerateInput(t *testing.T) {
	v := NewViewer(models.StartPosition)
	f := v.Advance(FrameInput{Position: models.Position{X: 60, Y: 40}, DT: 0.5})
	require.True(t, f.Visible)

	bad := v.Advance(FrameInput{Position: models.Position{X: math.NaN(), Y: 40}, DT: 0.016})
	assert.False(t, bad.Visible)
	assert.Equal(t, f.Elapsed, bad.Elapsed)

	assert.False(t, v.Advance(FrameInput{Position: models.StartPosition, DT: -1}).Visible)
	assert.False(t, v.Advance(FrameInput{Position: models.StartPosition, DT: math.Inf(1)}).Visible)

	for i := 0; i < 2; i++ {
		huge := v.Advance(FrameInput{Position: models.StartPosition, DT: math.MaxFloat64})
		require.True(t, huge.Visible)
		assert.InDelta(t, f.Elapsed+float64(i+1)*MaxFrameDT, huge.Elapsed, 1e-9)
	}
	next := v.Advance(FrameInput{Position: models.StartPosition, DT: 1.0 / 60})
	require.True(t, next.Visible)
	assert.False(t, math.IsNaN(next.Avatar.Position.Y()))
	assert.False(t, math.IsNaN(next.Avatar.Tilt))
	_, err := json.Marshal(next)
	assert.NoError(t, err)
}

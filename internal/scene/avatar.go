// internal/scene/avatar.go
package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

const (
	avatarBaseHeight = 0.6
	bobFrequency     = 8.0
	bobAmplitude     = 0.08
	tiltFrequency    = 4.0
	tiltAmplitude    = 0.05
	turnRate         = 10.0
	pulseFrequency   = 6.0
	collectingBoost  = 1.6
	minHeading       = 0.01
)

// Avatar is the walker marker: bobbing, tilting and turning toward its heading.
type Avatar struct {
	Position  mgl64.Vec3 `json:"position"`
	Yaw       float64    `json:"yaw"`
	Tilt      float64    `json:"tilt"`
	BodyGlow  float64    `json:"body_glow"`
	HeadGlow  float64    `json:"head_glow"`
	LightGlow float64    `json:"light_intensity"`
}

// Update advances the avatar to elapsed time t. A heading of zero length keeps the current yaw.
func (a *Avatar) Update(target mgl64.Vec3, heading models.Direction, collecting bool, t, dt float64) {
	a.Position = mgl64.Vec3{target.X(), avatarBaseHeight + math.Sin(t*bobFrequency)*bobAmplitude, target.Z()}

	if math.Abs(heading.X) > minHeading || math.Abs(heading.Y) > minHeading {
		want := math.Atan2(heading.X, heading.Y)
		a.Yaw += ShortestAngle(a.Yaw, want) * Smoothing(turnRate, dt)
	}
	a.Tilt = math.Sin(t*tiltFrequency) * tiltAmplitude

	factor := 1.0
	if collecting {
		factor = collectingBoost
	}
	pulse := 0.8 + math.Sin(t*pulseFrequency)*0.4
	a.BodyGlow = factor * pulse * 0.7
	a.HeadGlow = factor * pulse * 0.9
	a.LightGlow = factor * (2 + math.Sin(t*pulseFrequency))
}

// Model returns the avatar model matrix.
func (a Avatar) Model() mgl64.Mat4 {
	return mgl64.Translate3D(a.Position.X(), a.Position.Y(), a.Position.Z()).
		Mul4(mgl64.HomogRotate3DY(a.Yaw)).
		Mul4(mgl64.HomogRotate3DX(a.Tilt))
}

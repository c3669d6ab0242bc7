// internal/scene/viewer.go
package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

// MaxFrameDT bounds a single animation step in seconds.
const MaxFrameDT = 1.0

// animationPeriod is a common period of every avatar oscillation.
const animationPeriod = 2 * math.Pi

// FrameInput is what the viewer needs from the simulation each frame.
type FrameInput struct {
	Position   models.Position
	Heading    models.Direction
	Collecting bool
	DT         float64
}

// Frame is the rendered state after one update.
type Frame struct {
	Visible bool       `json:"visible"`
	Elapsed float64    `json:"elapsed"`
	Target  mgl64.Vec3 `json:"target"`
	Camera  CameraRig  `json:"camera"`
	Avatar  Avatar     `json:"avatar"`
}

// Viewer keeps the per-session animation state. It is not safe for concurrent use.
type Viewer struct {
	camera  CameraRig
	avatar  Avatar
	elapsed float64
	phase   float64
}

func NewViewer(start models.Position) *Viewer {
	target := ToWorld(start)
	v := &Viewer{camera: NewCameraRig(target)}
	v.avatar.Update(target, models.Direction{}, false, 0, 0)
	return v
}

// Advance steps the animation by in.DT seconds, at most MaxFrameDT. Non-finite
// input or a negative step yields an invisible frame and leaves the state untouched.
func (v *Viewer) Advance(in FrameInput) Frame {
	if !finite(in.Position.X, in.Position.Y, in.Heading.X, in.Heading.Y, in.DT) || in.DT < 0 {
		return Frame{Visible: false, Elapsed: v.elapsed}
	}
	dt := math.Min(in.DT, MaxFrameDT)

	v.elapsed += dt
	v.phase = math.Mod(v.phase+dt, animationPeriod)
	target := ToWorld(in.Position)
	v.camera.Update(target, dt)
	v.avatar.Update(target, in.Heading, in.Collecting, v.phase, dt)

	return Frame{
		Visible: true,
		Elapsed: v.elapsed,
		Target:  target,
		Camera:  v.camera,
		Avatar:  v.avatar,
	}
}

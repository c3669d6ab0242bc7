// internal/scene/camera.go
package scene

import "github.com/go-gl/mathgl/mgl64"

const (
	cameraHeight   = 25.0
	cameraDistance = 35.0
	cameraRate     = 4.0
	// position trails the look-at point slightly
	cameraPositionDamping = 0.8
)

// CameraRig follows a target from behind and above.
type CameraRig struct {
	Position mgl64.Vec3 `json:"position"`
	LookAt   mgl64.Vec3 `json:"look_at"`
}

// NewCameraRig parks the camera at its ideal spot for target, looking at the origin.
func NewCameraRig(target mgl64.Vec3) CameraRig {
	return CameraRig{Position: idealCamera(target)}
}

func idealCamera(target mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{target.X(), cameraHeight, target.Z() + cameraDistance}
}

func (c *CameraRig) Update(target mgl64.Vec3, dt float64) {
	factor := Smoothing(cameraRate, dt)
	c.Position = lerp(c.Position, idealCamera(target), factor*cameraPositionDamping)
	c.LookAt = lerp(c.LookAt, target, factor)
}

// View returns the camera view matrix.
func (c CameraRig) View() mgl64.Mat4 {
	return mgl64.LookAtV(c.Position, c.LookAt, mgl64.Vec3{0, 1, 0})
}

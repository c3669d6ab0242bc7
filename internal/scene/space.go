// internal/scene/space.go
package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

// City grid dimensions in world units.
const (
	BlockSize = 6.0
	RoadWidth = 1.5
	Blocks    = 12
	Pitch     = BlockSize + RoadWidth
	Half      = Pitch * Blocks
)

// ToWorld maps a logical map position onto the ground plane. Logical Y becomes world Z.
func ToWorld(p models.Position) mgl64.Vec3 {
	return mgl64.Vec3{
		p.X/models.MapMax*(2*Half) - Half,
		0,
		p.Y/models.MapMax*(2*Half) - Half,
	}
}

// Smoothing is the frame rate independent interpolation factor 1-exp(-dt*rate).
func Smoothing(rate, dt float64) float64 {
	return 1 - math.Exp(-dt*rate)
}

func lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// ShortestAngle returns to-from wrapped into [-pi, pi].
func ShortestAngle(from, to float64) float64 {
	diff := math.Mod(to-from, 2*math.Pi)
	if diff < -math.Pi {
		diff += 2 * math.Pi
	} else if diff > math.Pi {
		diff -= 2 * math.Pi
	}
	return diff
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

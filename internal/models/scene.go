// internal/models/scene.go
package models

import "math"

// Position is a logical coordinate on the 100x100 map.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const (
	MapMin = 0.0
	MapMax = 100.0
)

// StartPosition is where the walker stands when a session opens.
var StartPosition = Position{X: 50, Y: 50}

// Direction is a unit heading on the logical map.
type Direction struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StartHeading faces +Y, which is +Z in the rendered scene.
var StartHeading = Direction{X: 0, Y: 1}

type Terrain struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var Terrains = []Terrain{
	{ID: "city", Label: "City"},
	{ID: "forest", Label: "Forest"},
	{ID: "mountain", Label: "Mountain"},
	{ID: "beach", Label: "Beach"},
	{ID: "water", Label: "Water"},
	{ID: "other", Label: "Other"},
}

func FindTerrain(id string) (Terrain, bool) {
	for _, t := range Terrains {
		if t.ID == id {
			return t, true
		}
	}
	return Terrain{}, false
}

// Landmark is a named point on the logical map.
type Landmark struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

var Landmarks = []Landmark{
	{Name: "Shinjuku", X: 30, Y: 35},
	{Name: "Shibuya", X: 40, Y: 50},
	{Name: "Tokyo Stn", X: 60, Y: 45},
	{Name: "Ikebukuro", X: 25, Y: 20},
	{Name: "Ueno", X: 65, Y: 25},
	{Name: "Akihabara", X: 58, Y: 35},
	{Name: "Shinagawa", X: 55, Y: 70},
	{Name: "Roppongi", X: 50, Y: 55},
}

const (
	StartLocationName = "Shibuya Crossing"
	FallbackLocation  = "Tokyo Area"
)

// LocationName names the district of the nearest landmark strictly within radius.
func LocationName(p Position, radius float64) string {
	best := math.Inf(1)
	name := FallbackLocation
	for _, l := range Landmarks {
		d := math.Hypot(p.X-l.X, p.Y-l.Y)
		if d < best {
			best = d
			name = l.Name
		}
	}
	if best < radius {
		return name + " District"
	}
	return FallbackLocation
}

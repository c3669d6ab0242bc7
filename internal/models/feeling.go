// internal/models/feeling.go
package models

import "fmt"

type FeelingCategory string

const (
	CategoryAll      FeelingCategory = "all"
	CategoryNature   FeelingCategory = "nature"
	CategoryUrban    FeelingCategory = "urban"
	CategoryAbstract FeelingCategory = "abstract"
)

// ParseCategory accepts the three categories plus "all"; empty means all.
func ParseCategory(raw string) (FeelingCategory, bool) {
	switch FeelingCategory(raw) {
	case "", CategoryAll:
		return CategoryAll, true
	case CategoryNature, CategoryUrban, CategoryAbstract:
		return FeelingCategory(raw), true
	}
	return "", false
}

type FeelingAttributes struct {
	Texture     int `json:"texture"`
	Pressure    int `json:"pressure"`
	Temperature int `json:"temperature"`
}

// Feeling is a purchasable haptic sensation pattern.
type Feeling struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Price       Cents             `json:"price_usdc"`
	Owned       bool              `json:"owned"`
	Category    FeelingCategory   `json:"category"`
	Intensity   int               `json:"intensity"`
	Attributes  FeelingAttributes `json:"attributes"`
	VideoSrc    string            `json:"video_src"`
}

func (f Feeling) Validate() error {
	if f.ID == "" || f.Name == "" {
		return fmt.Errorf("feeling needs an id and a name")
	}
	if f.Price < 0 {
		return fmt.Errorf("feeling %s: negative price", f.ID)
	}
	if c, ok := ParseCategory(string(f.Category)); !ok || c == CategoryAll {
		return fmt.Errorf("feeling %s: unknown category %q", f.ID, f.Category)
	}
	for name, v := range map[string]int{
		"intensity":   f.Intensity,
		"texture":     f.Attributes.Texture,
		"pressure":    f.Attributes.Pressure,
		"temperature": f.Attributes.Temperature,
	} {
		if v < 1 || v > 10 {
			return fmt.Errorf("feeling %s: %s %d outside 1-10", f.ID, name, v)
		}
	}
	return nil
}

// DefaultFeelings is the built-in catalog with its starting ownership.
func DefaultFeelings() []Feeling {
	return []Feeling{
		{ID: "beach_sand", Name: "Beach Sand", Description: "Warm sand flowing between your toes.", Price: USDC(5.0), Owned: true, Category: CategoryNature, Intensity: 6, Attributes: FeelingAttributes{7, 4, 8}, VideoSrc: "/videos/beach_sand.mp4"},
		{ID: "athens_cobblestone", Name: "Athens Cobblestone", Description: "Ancient, smooth worn streets.", Price: USDC(7.5), Owned: true, Category: CategoryUrban, Intensity: 8, Attributes: FeelingAttributes{9, 7, 6}, VideoSrc: "/videos/cobblestone.mp4"},
		{ID: "forest_floor", Name: "Forest Floor", Description: "Soft, damp earth, moss, and leaves.", Price: USDC(9.0), Category: CategoryNature, Intensity: 7, Attributes: FeelingAttributes{8, 5, 4}, VideoSrc: "/videos/forest.mp4"},
		{ID: "grassy_field", Name: "Grassy Field", Description: "Tickling tall grass in a meadow.", Price: USDC(4.5), Owned: true, Category: CategoryNature, Intensity: 5, Attributes: FeelingAttributes{6, 3, 7}, VideoSrc: "/videos/sougen.mp4"},
		{ID: "tokyo_asphalt", Name: "Tokyo Asphalt", Description: "Firm, pristine city streets.", Price: USDC(8.0), Category: CategoryUrban, Intensity: 7, Attributes: FeelingAttributes{5, 8, 6}, VideoSrc: "/videos/tokyo.mp4"},
		{ID: "gravel_path", Name: "Gravel Path", Description: "Crunchy, uneven small stones.", Price: USDC(5.5), Category: CategoryNature, Intensity: 8, Attributes: FeelingAttributes{9, 7, 5}, VideoSrc: "/videos/load.mp4"},
		{ID: "quantum_flow", Name: "Quantum Flow", Description: "Otherworldly flowing particles.", Price: USDC(12.5), Category: CategoryAbstract, Intensity: 9, Attributes: FeelingAttributes{9, 8, 7}, VideoSrc: "/videos/wave.mp4"},
		{ID: "lunar_dust", Name: "Lunar Dust", Description: "Walking on the Moon in low gravity.", Price: USDC(15.0), Category: CategoryAbstract, Intensity: 10, Attributes: FeelingAttributes{10, 6, 2}, VideoSrc: "/videos/luna.mp4"},
	}
}

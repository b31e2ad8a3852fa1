package models

// Preferences holds display settings persisted next to the favorites.
// The server stores them but never interprets them.
type Preferences struct {
	Theme         string  `json:"theme" validate:"omitempty,oneof=light dark system"`
	ReducedMotion bool    `json:"reduced_motion"`
	HighContrast  bool    `json:"high_contrast"`
	FontScale     float64 `json:"font_scale" validate:"gte=0.5,lte=3"`
}

// DefaultPreferences is what a missing or corrupt record decodes to
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:     "system",
		FontScale: 1,
	}
}

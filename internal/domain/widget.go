package domain

import "time"

// Widget is an installed home-screen widget. Widget cards name the widget
// they were scrapped from, and the widget may override the card category.
type Widget struct {
	// Name is the unique key, e.g. "news" or "stock".
	Name string `json:"name"`

	// Label is the display name.
	Label string `json:"label"`

	// Category is applied to widget cards created without one.
	Category string `json:"category,omitempty"`

	// Disabled marks a widget removed from the settings file. It is kept
	// until garbage-collected so existing cards still resolve.
	Disabled bool `json:"disabled,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

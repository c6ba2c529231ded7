package domain

import (
	"fmt"
	"strings"
)

// SourceType is the provenance of a card. The set is closed: adding a
// source means adding a constant here and a case in Info.
type SourceType string

const (
	SourceChrome SourceType = "chrome"
	SourceWidget SourceType = "widget"
	SourceImage  SourceType = "image"
)

// SourceTypes lists every known source in grid placement order.
var SourceTypes = []SourceType{SourceWidget, SourceChrome, SourceImage}

// SourceInfo is the display metadata of a source.
type SourceInfo struct {
	Label           string `json:"label"`
	Icon            string `json:"icon"`
	DefaultCategory string `json:"defaultCategory"`
}

// Info returns the display metadata of s.
func (s SourceType) Info() SourceInfo {
	switch s {
	case SourceChrome:
		return SourceInfo{Label: "Browsing history", Icon: "🌐", DefaultCategory: "browsing"}
	case SourceWidget:
		return SourceInfo{Label: "Widget scrap", Icon: "🧩", DefaultCategory: "scrap"}
	case SourceImage:
		return SourceInfo{Label: "Photo", Icon: "📷", DefaultCategory: "photo"}
	default:
		return SourceInfo{Label: "Unknown", Icon: "❔"}
	}
}

// Valid reports whether s is one of the known sources.
func (s SourceType) Valid() bool {
	switch s {
	case SourceChrome, SourceWidget, SourceImage:
		return true
	}
	return false
}

// ParseSourceType parses a source name, case-insensitively.
func ParseSourceType(raw string) (SourceType, error) {
	s := SourceType(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", Invalid("sourceType", fmt.Sprintf("unknown source %q", raw))
	}
	return s, nil
}

package widgets

import (
	"testing"
	"time"
)

func TestMapperMapWidgets(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mapper := NewMapper()
	mapper.now = func() time.Time { return fixed }

	widgets, err := mapper.MapWidgets(SettingsFile{Widgets: []WidgetProps{
		{Name: " Stock ", Label: "Stocks", Category: "finance"},
		{Name: "news"},
	}})
	if err != nil {
		t.Fatalf("MapWidgets() error = %v", err)
	}
	if len(widgets) != 2 {
		t.Fatalf("MapWidgets() returned %d widgets, want 2", len(widgets))
	}

	if widgets[0].Name != "stock" || widgets[0].Category != "finance" {
		t.Errorf("first widget = %+v", widgets[0])
	}
	if widgets[1].Label != "news" || widgets[1].Category != "scrap" {
		t.Errorf("defaults not applied: %+v", widgets[1])
	}
	if !widgets[0].UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", widgets[0].UpdatedAt, fixed)
	}
}

func TestMapperMapWidgetsErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  SettingsFile
	}{
		{"missing name", SettingsFile{Widgets: []WidgetProps{{Label: "x"}}}},
		{"blank name", SettingsFile{Widgets: []WidgetProps{{Name: "   "}}}},
		{"duplicate name", SettingsFile{Widgets: []WidgetProps{{Name: "news"}, {Name: "NEWS"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMapper().MapWidgets(tt.cfg); err == nil {
				t.Error("MapWidgets() should fail")
			}
		})
	}
}

func TestMapperEmptySettings(t *testing.T) {
	widgets, err := NewMapper().MapWidgets(SettingsFile{})
	if err != nil {
		t.Fatalf("MapWidgets() error = %v", err)
	}
	if len(widgets) != 0 {
		t.Errorf("got %d widgets, want 0", len(widgets))
	}
}

package widgets

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/untold/internal/domain"
)

// Mapper converts the settings file to domain.Widget entities
type Mapper struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// MapWidgets validates the settings and converts them. Names are
// lowercased; a duplicate name is an error. An empty list is valid.
func (m *Mapper) MapWidgets(cfg SettingsFile) ([]*domain.Widget, error) {
	if err := m.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid widget settings: %w", err)
	}

	now := m.now()
	seen := make(map[string]bool, len(cfg.Widgets))
	widgets := make([]*domain.Widget, 0, len(cfg.Widgets))

	for _, props := range cfg.Widgets {
		name := strings.ToLower(strings.TrimSpace(props.Name))
		if name == "" {
			return nil, fmt.Errorf("widget with blank name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate widget %q", name)
		}
		seen[name] = true

		label := strings.TrimSpace(props.Label)
		if label == "" {
			label = name
		}
		category := strings.TrimSpace(props.Category)
		if category == "" {
			category = domain.SourceWidget.Info().DefaultCategory
		}

		widgets = append(widgets, &domain.Widget{
			Name:      name,
			Label:     label,
			Category:  category,
			UpdatedAt: now,
		})
	}

	return widgets, nil
}

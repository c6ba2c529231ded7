package widgets

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Loader handles loading and parsing of the widget settings file
type Loader struct {
	filePath string
}

// NewLoader creates a new settings loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the settings file path
func (l *Loader) Path() string { return l.filePath }

// Load reads and parses the settings file
func (l *Loader) Load() (SettingsFile, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return SettingsFile{}, fmt.Errorf("failed to read widget settings: %w", err)
	}

	data = expandTemplateVariables(data)

	var cfg SettingsFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SettingsFile{}, fmt.Errorf("failed to parse widget settings: %w", err)
	}
	return cfg, nil
}

// expandTemplateVariables replaces {{VAR}} with the environment value of
// VAR, or an empty string when unset
func expandTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := strings.TrimSpace(string(templateVar.FindSubmatch(m)[1]))
		return []byte(os.Getenv(name))
	})
}

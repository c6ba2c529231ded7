package widgets

// SettingsFile is the top-level structure of the widget settings file
//
//	widgets:
//	  - name: stock
//	    label: Stocks
//	    category: finance
type SettingsFile struct {
	Widgets []WidgetProps `yaml:"widgets" validate:"dive"`
}

// WidgetProps describes one installed widget
type WidgetProps struct {
	Name     string `yaml:"name" validate:"required,max=64"`
	Label    string `yaml:"label,omitempty" validate:"max=128"`
	Category string `yaml:"category,omitempty" validate:"max=64"`
}

package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

//go:embed catalog_default.yaml
var defaultCatalogYAML []byte

// Variable describes one process variable logged by the control system.
type Variable struct {
	// Name is the raw column header in the semicolon-delimited exports.
	Name string `yaml:"name"`
	// Unit groups variables onto shared plot axes.
	Unit string `yaml:"unit"`
	// DisplayName is the operator-facing label.
	DisplayName string `yaml:"display_name"`
	// SkipOutliers disables IQR filtering for binary and percentage
	// signals, where the spread-based bounds would discard valid states.
	SkipOutliers bool `yaml:"skip_outliers"`
}

// Catalog is the process-variable catalog: which control-system columns
// to extract, how to label them, and which manual-entry options to offer.
type Catalog struct {
	Variables        []Variable        `yaml:"variables"`
	AnalyticsUnits   map[string]string `yaml:"analytics_units"`
	FloatUnits       []string          `yaml:"float_units"`
	StringCategories []string          `yaml:"string_categories"`
	BinaryCategories []string          `yaml:"binary_categories"`

	byName map[string]*Variable
}

// LoadCatalog returns the variable catalog, reading the override file
// when one is configured and falling back to the embedded default.
func LoadCatalog(filePath string) (*Catalog, error) {
	data := defaultCatalogYAML
	if filePath != "" {
		fileData, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %s: %w", filePath, err)
		}
		data = fileData
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(cat.Variables) == 0 {
		return nil, fmt.Errorf("catalog defines no variables")
	}

	cat.byName = make(map[string]*Variable, len(cat.Variables))
	for i := range cat.Variables {
		v := &cat.Variables[i]
		if v.Name == "" {
			return nil, fmt.Errorf("catalog variable %d has no name", i)
		}
		if _, exists := cat.byName[v.Name]; exists {
			return nil, fmt.Errorf("duplicate catalog variable %q", v.Name)
		}
		cat.byName[v.Name] = v
	}

	return &cat, nil
}

// Lookup returns the catalog entry for a raw variable name.
func (c *Catalog) Lookup(name string) (Variable, bool) {
	v, ok := c.byName[name]
	if !ok {
		return Variable{}, false
	}
	return *v, true
}

// Names returns the raw variable names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Variables))
	for i, v := range c.Variables {
		names[i] = v.Name
	}
	return names
}

// DisplayName returns the operator-facing label for a variable, falling
// back to the raw name for unknown variables such as manual entries.
func (c *Catalog) DisplayName(name string) string {
	if v, ok := c.byName[name]; ok && v.DisplayName != "" {
		return v.DisplayName
	}
	return name
}

// Unit returns the axis unit for a variable, or the empty string.
func (c *Catalog) Unit(name string) string {
	if v, ok := c.byName[name]; ok {
		return v.Unit
	}
	return ""
}

// SkipOutliers reports whether IQR filtering is disabled for a variable.
// Unknown variables are filtered.
func (c *Catalog) SkipOutliers(name string) bool {
	if v, ok := c.byName[name]; ok {
		return v.SkipOutliers
	}
	return false
}

// AnalyticsUnit returns the unit of an offline lab-analytics column.
func (c *Catalog) AnalyticsUnit(column string) string {
	return c.AnalyticsUnits[column]
}

package migration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteReport saves the result as YAML.
func (r *Result) WriteReport(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

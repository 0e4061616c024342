package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// resolveExternalPath returns path as-is if absolute, otherwise joins it with baseDir.
func resolveExternalPath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// loadToolFiles reads each file in ToolFiles, unmarshals it as a list of
// ToolConfig, and appends the tools to c.Tools with duplicate detection.
func (c *Config) loadToolFiles(baseDir string) error {
	if len(c.ToolFiles) == 0 {
		return nil
	}

	// Track where each tool id was defined for duplicate detection.
	sources := make(map[string]string, len(c.Tools))
	for _, tool := range c.Tools {
		sources[tool.ID] = "inline config"
	}

	for _, relPath := range c.ToolFiles {
		data, err := os.ReadFile(resolveExternalPath(baseDir, relPath))
		if err != nil {
			return fmt.Errorf("load tool file %q: %w", relPath, err)
		}

		var tools []ToolConfig
		if err := yaml.Unmarshal(data, &tools); err != nil {
			return fmt.Errorf("parse tool file %q: %w", relPath, err)
		}

		for _, tool := range tools {
			if existing, ok := sources[tool.ID]; ok {
				return fmt.Errorf("tool %q defined in both %s and %q", tool.ID, existing, relPath)
			}
			sources[tool.ID] = fmt.Sprintf("%q", relPath)
			c.Tools = append(c.Tools, tool)
		}
	}

	return nil
}

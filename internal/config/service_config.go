package config

import (
	"fmt"

	services "github.com/syntrixbase/tripsync/internal/services/config"
)

// Section is a top-level block of config.yml that owns its own defaults,
// env overrides, path resolution and validation.
type Section interface {
	ApplyDefaults()
	ApplyEnvOverrides()
	// ResolvePaths makes relative paths absolute: configuration inputs
	// against configDir, runtime output (logs) against dataDir.
	ResolvePaths(configDir, dataDir string)
	Validate(mode services.DeploymentMode) error
}

// namedSection ties a Section to its yaml key for error messages.
type namedSection struct {
	key string
	Section
}

func section(key string, s Section) namedSection {
	return namedSection{key: key, Section: s}
}

// prepareSections runs each section through its lifecycle in order and stops
// at the first invalid one.
func prepareSections(configDir, dataDir string, mode services.DeploymentMode, sections ...namedSection) error {
	for _, s := range sections {
		s.ApplyDefaults()
		s.ApplyEnvOverrides()
		s.ResolvePaths(configDir, dataDir)
		if err := s.Validate(mode); err != nil {
			return fmt.Errorf("%s: %w", s.key, err)
		}
	}
	return nil
}

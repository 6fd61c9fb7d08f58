// Package manifest composes resolved microservice versions into a platform
// release manifest and creates the matching aggregate version in the Trust
// Registry. It sits beside the tag reconciliation engine and never mutates
// tags itself.
package manifest

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoServices means the services config held no usable entries.
	ErrNoServices = errors.New("services config must list at least one service")

	// ErrNoReleasables means a resolved version has no published
	// releasables; such versions cannot be aggregated.
	ErrNoReleasables = errors.New("version has no releasables")

	// ErrUnsupportedStage means a source stage other than PROD was
	// requested.
	ErrUnsupportedStage = errors.New("only source_stage=PROD is supported")
)

// ServiceConfig is one aggregated microservice from services.yaml.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Application string `yaml:"apptrust_application"`
	Description string `yaml:"description,omitempty"`
}

type servicesFile struct {
	Services []ServiceConfig `yaml:"services"`
}

// LoadServices reads the services.yaml configuration listing every service
// included in platform aggregation.
func LoadServices(path string) ([]ServiceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading services config: %w", err)
	}

	var file servicesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing services config %s: %w", path, err)
	}

	if len(file.Services) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoServices)
	}
	for i, s := range file.Services {
		if s.Name == "" || s.Application == "" {
			return nil, fmt.Errorf("%s: service entry %d missing name or apptrust_application", path, i)
		}
	}
	return file.Services, nil
}

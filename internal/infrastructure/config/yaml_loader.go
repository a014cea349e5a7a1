// Package config loads YAML build manifests into a *pipeline.Pipeline,
// and implements BuildManager: the reloadable handle a CLI holds onto a
// manifest-backed pipeline across repeated invocations.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/foundrybuild/pipeline/internal/validation"
	stagekiterrors "github.com/foundrybuild/pipeline/pkg/errors"
)

// ParseManifest reads and validates the build manifest at path, returning
// the validated schema. It does not construct a Pipeline; callers use
// BuildPipeline (or a BuildManager) for that.
func ParseManifest(path string) (*validation.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, stagekiterrors.NewParseError(path, 0, err)
	}

	var manifest validation.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, stagekiterrors.NewParseError(path, 0, err)
	}

	if err := validation.Validate(&manifest); err != nil {
		return nil, err
	}

	return &manifest, nil
}

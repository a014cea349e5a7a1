// Package validation defines the build-manifest schema and validates it
// with struct tags, mirroring the teacher's internal/config validator
// but scoped to pipeline/stage declarations instead of install steps.
package validation

// Manifest is the top-level YAML document describing a build pipeline:
// where it builds, and the ordered stages that make it up.
type Manifest struct {
	Version          string            `yaml:"version" validate:"required,semver"`
	Name             string            `yaml:"name" validate:"required"`
	Builddir         string            `yaml:"builddir" validate:"required"`
	ProjectDirectory string            `yaml:"project_directory" validate:"required"`
	Env              map[string]string `yaml:"env,omitempty"`
	PathPrepends     []string          `yaml:"path_prepends,omitempty"`
	Stages           []Stage           `yaml:"stages" validate:"required,min=1,dive"`
}

// Stage is one manifest entry. The kind-specific config block selected by
// Kind must be populated; blocks for other kinds are not checked.
type Stage struct {
	ID    string `yaml:"id" validate:"required,stage_id"`
	Kind  string `yaml:"kind" validate:"required,oneof=command git-checkout package archive purge-path"`
	Phase string `yaml:"phase,omitempty" validate:"omitempty,oneof=downloads dependencies purge autogen configure build install commit export final"`

	Command *CommandConfig `yaml:"command,omitempty" validate:"omitempty"`
	Git     *GitConfig     `yaml:"git,omitempty" validate:"omitempty"`
	Package *PackageConfig `yaml:"package,omitempty" validate:"omitempty"`
	Archive *ArchiveConfig `yaml:"archive,omitempty" validate:"omitempty"`
	Path    string         `yaml:"path,omitempty"`
}

// CommandConfig backs the "command" stage kind.
type CommandConfig struct {
	Command string            `yaml:"command,omitempty"`
	Check   string            `yaml:"check,omitempty"`
	Clean   string            `yaml:"clean,omitempty"`
	Purge   string            `yaml:"purge,omitempty"`
	Shell   string            `yaml:"shell,omitempty"`
	WorkDir string            `yaml:"workdir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// GitConfig backs the "git-checkout" stage kind.
type GitConfig struct {
	URL         string `yaml:"url" validate:"required"`
	Destination string `yaml:"destination" validate:"required"`
	Branch      string `yaml:"branch,omitempty"`
	Depth       int    `yaml:"depth,omitempty" validate:"gte=0"`
}

// PackageConfig backs the "package" stage kind.
type PackageConfig struct {
	Manager  string   `yaml:"manager" validate:"required,oneof=apt dnf npm pip"`
	Packages []string `yaml:"packages" validate:"required,min=1"`
	WorkDir  string   `yaml:"workdir,omitempty"`
}

// ArchiveConfig backs the "archive" stage kind.
type ArchiveConfig struct {
	SourceDir  string `yaml:"source_dir" validate:"required"`
	OutputPath string `yaml:"output_path" validate:"required"`
}

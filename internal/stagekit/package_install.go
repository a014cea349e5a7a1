package stagekit

import (
	pipelinepkg "github.com/foundrybuild/pipeline/internal/domain/pipeline"
	"github.com/foundrybuild/pipeline/internal/ports"
)

// PackageManager names a supported package manager invocation shape.
type PackageManager string

const (
	PackageManagerAPT PackageManager = "apt"
	PackageManagerDNF PackageManager = "dnf"
	PackageManagerNPM PackageManager = "npm"
	PackageManagerPip PackageManager = "pip"
)

// PackageInstallOptions configures a PackageInstallStage.
type PackageInstallOptions struct {
	ID       string
	Manager  PackageManager
	Packages []string
	WorkDir  string
	Launcher LauncherFactory
	Logger   ports.Logger
}

// NewPackageInstallStage constructs a CommandStage registered under
// PhaseDependencies whose Build (install) and Query (check) commands are
// rendered from the package manager's CLI shape; it sets no Clean or Purge
// command, so both are no-ops. It is a thin composition over
// CommandStage rather than a distinct type: the underlying verbs are
// "run this shell command," which CommandStage already implements.
func NewPackageInstallStage(opts PackageInstallOptions) *CommandStage {
	install, check := packageManagerCommands(opts.Manager, opts.Packages)
	return NewCommandStage(pipelinepkg.PhaseDependencies, CommandOptions{
		ID:       opts.ID,
		Command:  install,
		Check:    check,
		WorkDir:  opts.WorkDir,
		Launcher: opts.Launcher,
		Logger:   opts.Logger,
	})
}

func packageManagerCommands(manager PackageManager, packages []string) (install string, check string) {
	joined := joinPackages(packages)
	switch manager {
	case PackageManagerAPT:
		return "apt-get install -y " + joined, "dpkg -s " + joined + " > /dev/null 2>&1"
	case PackageManagerDNF:
		return "dnf install -y " + joined, "rpm -q " + joined + " > /dev/null 2>&1"
	case PackageManagerNPM:
		return "npm install " + joined, ""
	case PackageManagerPip:
		return "pip install " + joined, ""
	default:
		return "", ""
	}
}

func joinPackages(packages []string) string {
	out := ""
	for i, pkg := range packages {
		if i > 0 {
			out += " "
		}
		out += pkg
	}
	return out
}

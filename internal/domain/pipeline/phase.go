package pipeline

import "strings"

// Phase is a bit-flag value tagging a Stage. Exactly one primary phase bit
// is set on any well-formed stage phase; any number of modifier bits may
// additionally be set. Numeric layout is not a stable ABI — callers outside
// this package must use the symbolic constants.
type Phase uint32

// Primary phase bits. Ordering (ascending) matches the dependency order a
// build pipeline executes stages in: Downloads < Dependencies < Purge <
// Autogen < Configure < Build < Install < Commit < Export < Final.
const (
	PhaseDownloads Phase = 1 << iota
	PhaseDependencies
	PhasePurge
	PhaseAutogen
	PhaseConfigure
	PhaseBuild
	PhaseInstall
	PhaseCommit
	PhaseExport
	PhaseFinal
)

// Modifier bits. They annotate a stage for tooling and are preserved
// verbatim; they never participate in ordering or masking comparisons.
const (
	PhaseBefore Phase = 1 << (16 + iota)
	PhaseAfter
	PhaseFinalModifier
	PhaseFailed
)

// primaryBits is the union of every primary phase bit.
const primaryBits Phase = PhaseDownloads | PhaseDependencies | PhasePurge |
	PhaseAutogen | PhaseConfigure | PhaseBuild | PhaseInstall |
	PhaseCommit | PhaseExport | PhaseFinal

// primaryOrder lists the primary bits in ascending execution order, used to
// compute the "highest phase completed so far" for a pipeline.
var primaryOrder = []Phase{
	PhaseDownloads, PhaseDependencies, PhasePurge, PhaseAutogen,
	PhaseConfigure, PhaseBuild, PhaseInstall, PhaseCommit, PhaseExport,
	PhaseFinal,
}

var primaryNames = map[Phase]string{
	PhaseDownloads:    "downloads",
	PhaseDependencies: "dependencies",
	PhasePurge:        "purge",
	PhaseAutogen:      "autogen",
	PhaseConfigure:    "configure",
	PhaseBuild:        "build",
	PhaseInstall:      "install",
	PhaseCommit:       "commit",
	PhaseExport:       "export",
	PhaseFinal:        "final",
}

// Mask returns only the primary phase bits of p, discarding modifiers.
func Mask(p Phase) Phase {
	return p & primaryBits
}

// Matches reports whether the primary phase of stagePhase intersects mask.
// mask may be a union of any number of primary bits.
func Matches(stagePhase, mask Phase) bool {
	return Mask(stagePhase)&mask != 0
}

// WellFormed reports whether p carries exactly one primary phase bit, as
// required of every concrete stage's phase.
func WellFormed(p Phase) bool {
	m := Mask(p)
	return m != 0 && m&(m-1) == 0
}

// Less reports whether a's primary phase sorts strictly before b's, using
// the fixed ascending phase order. Modifier bits are ignored.
func Less(a, b Phase) bool {
	return rank(Mask(a)) < rank(Mask(b))
}

// AtLeast reports whether a's primary phase is the same as or later than
// b's in the fixed ascending order.
func AtLeast(a, b Phase) bool {
	return rank(Mask(a)) >= rank(Mask(b))
}

// CumulativeMask returns the union of every primary phase bit at or before
// target's in the fixed execution order. Drivers use this, not Mask, to
// select every stage a run up to target must touch: a build to Install
// still needs to run Configure and Build first.
func CumulativeMask(target Phase) Phase {
	targetRank := rank(Mask(target))
	var mask Phase
	for i, bit := range primaryOrder {
		if i > targetRank {
			break
		}
		mask |= bit
	}
	return mask
}

// phaseBefore returns the primary phase immediately preceding phase in the
// fixed execution order, or PhaseNone if phase is the first phase (or its
// rank is unrecognized).
func phaseBefore(phase Phase) Phase {
	r := rank(Mask(phase))
	if r <= 0 {
		return PhaseNone
	}
	return primaryOrder[r-1]
}

func rank(primary Phase) int {
	for i, bit := range primaryOrder {
		if bit == primary {
			return i
		}
	}
	return -1
}

// String renders p as a "|"-joined list of symbolic names, e.g.
// "build|after". An unrecognized primary bit renders as "none".
func (p Phase) String() string {
	var parts []string
	if name, ok := primaryNames[Mask(p)]; ok {
		parts = append(parts, name)
	} else {
		parts = append(parts, "none")
	}
	if p&PhaseBefore != 0 {
		parts = append(parts, "before")
	}
	if p&PhaseAfter != 0 {
		parts = append(parts, "after")
	}
	if p&PhaseFinalModifier != 0 {
		parts = append(parts, "final")
	}
	if p&PhaseFailed != 0 {
		parts = append(parts, "failed")
	}
	return strings.Join(parts, "|")
}

// PhaseNone is the sentinel phase reported when no stage is currently
// executing.
const PhaseNone Phase = 0

// ParsePhase resolves a symbolic primary phase name (as rendered by
// String, lowercase, no modifiers) back to its Phase constant. It is the
// counterpart a manifest loader uses to turn a YAML "phase: build" field
// into a Phase.
func ParsePhase(name string) (Phase, bool) {
	for phase, candidate := range primaryNames {
		if candidate == name {
			return phase, true
		}
	}
	return PhaseNone, false
}

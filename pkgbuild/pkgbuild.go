// Package pkgbuild defines the package build recipe and its parser.
package pkgbuild

// PackageBuild is one parsed recipe: the identity of a package, where its
// sources come from, what it depends on, and the shell lines of each build
// phase. The builder consumes the identity triple, Source, BuildDependencies
// and the four phases; the remaining fields belong to the packaging surface
// and ride along for consumers further down the pipeline.
type PackageBuild struct {
	Name        string
	Version     string
	RealVersion uint32

	Maintainer      string
	MaintainerEmail string
	Description     string
	Provides        []string
	Source          string
	ExtraSources    []string

	ExtraDependencies    []string
	OptionalDependencies []string
	BuildDependencies    []string
	CrossDependencies    []string

	Preinstall  string
	Postinstall string
	Strip       bool

	Prepare []string
	Build   []string
	Check   []string
	Package []string
}

// New creates a PackageBuild carrying only the identity triple.
func New(name, version string, realVersion uint32) *PackageBuild {
	return &PackageBuild{
		Name:        name,
		Version:     version,
		RealVersion: realVersion,
	}
}

// Phase is one of the four build phases.
type Phase string

const (
	PhasePrepare Phase = "prepare"
	PhaseBuild   Phase = "build"
	PhaseCheck   Phase = "check"
	PhasePackage Phase = "package"
)

// Phases lists the phases in execution order.
var Phases = []Phase{PhasePrepare, PhaseBuild, PhaseCheck, PhasePackage}

// PhaseScript returns the script lines for the named phase, or nil when the
// recipe does not define it.
func (pb *PackageBuild) PhaseScript(phase Phase) []string {
	switch phase {
	case PhasePrepare:
		return pb.Prepare
	case PhaseBuild:
		return pb.Build
	case PhaseCheck:
		return pb.Check
	case PhasePackage:
		return pb.Package
	default:
		return nil
	}
}

// Package target names the artifact an analysis session examines: a git
// repository, an SBOM document, or a package registry reference. Actual
// resolution (cloning, fetching, parsing) is out of scope per spec.md §1;
// Target exists so the rest of the runtime has a concrete collaborator to
// pass around end-to-end.
package target

import "fmt"

// Kind discriminates the Target union.
type Kind int

const (
	KindGitRepo Kind = iota
	KindSBOM
	KindPackageRef
)

// GitRepo names a git repository and an optional ref (branch, tag, or commit).
type GitRepo struct {
	URL string
	Ref string
}

// SBOM names a software bill-of-materials document on disk.
type SBOM struct {
	Path string
}

// PackageRef names a single published package version.
type PackageRef struct {
	Ecosystem string
	Name      string
	Version   string
}

// Target is the tagged union of the three supported analysis subjects.
// Exactly one of GitRepo/SBOM/PackageRef is populated, per Kind.
type Target struct {
	Kind       Kind
	GitRepo    GitRepo
	SBOM       SBOM
	PackageRef PackageRef
}

func (t Target) String() string {
	switch t.Kind {
	case KindGitRepo:
		if t.GitRepo.Ref != "" {
			return fmt.Sprintf("git:%s@%s", t.GitRepo.URL, t.GitRepo.Ref)
		}
		return fmt.Sprintf("git:%s", t.GitRepo.URL)
	case KindSBOM:
		return fmt.Sprintf("sbom:%s", t.SBOM.Path)
	case KindPackageRef:
		return fmt.Sprintf("pkg:%s/%s@%s", t.PackageRef.Ecosystem, t.PackageRef.Name, t.PackageRef.Version)
	default:
		return "target:unknown"
	}
}

// Resolve is a narrow stub: it reports the target is well-formed but does
// not actually fetch or parse it. Real resolution logic is out of scope
// per spec.md §1.
func (t Target) Resolve() error {
	switch t.Kind {
	case KindGitRepo:
		if t.GitRepo.URL == "" {
			return fmt.Errorf("target: git repo target missing URL")
		}
	case KindSBOM:
		if t.SBOM.Path == "" {
			return fmt.Errorf("target: sbom target missing path")
		}
	case KindPackageRef:
		if t.PackageRef.Name == "" || t.PackageRef.Version == "" {
			return fmt.Errorf("target: package target missing name or version")
		}
	default:
		return fmt.Errorf("target: unknown kind %d", t.Kind)
	}
	return nil
}

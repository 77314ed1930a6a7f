package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveGitRepoRequiresURL(t *testing.T) {
	tgt := Target{Kind: KindGitRepo}
	assert.Error(t, tgt.Resolve())

	tgt.GitRepo.URL = "https://example.com/repo.git"
	assert.NoError(t, tgt.Resolve())
	assert.Equal(t, "git:https://example.com/repo.git", tgt.String())
}

func TestResolveSBOMRequiresPath(t *testing.T) {
	tgt := Target{Kind: KindSBOM}
	assert.Error(t, tgt.Resolve())

	tgt.SBOM.Path = "sbom.json"
	assert.NoError(t, tgt.Resolve())
	assert.Equal(t, "sbom:sbom.json", tgt.String())
}

func TestResolvePackageRefRequiresNameAndVersion(t *testing.T) {
	tgt := Target{Kind: KindPackageRef, PackageRef: PackageRef{Ecosystem: "npm"}}
	assert.Error(t, tgt.Resolve())

	tgt.PackageRef.Name = "left-pad"
	tgt.PackageRef.Version = "1.3.0"
	assert.NoError(t, tgt.Resolve())
	assert.Equal(t, "pkg:npm/left-pad@1.3.0", tgt.String())
}

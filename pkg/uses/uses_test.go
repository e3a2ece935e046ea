package uses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStepRemote(t *testing.T) {
	ref, err := ParseStep("actions/setup-python@v5")
	require.NoError(t, err)
	require.NotNil(t, ref.Remote)
	assert.Equal(t, "actions", ref.Remote.Owner)
	assert.Equal(t, "setup-python", ref.Remote.Repo)
	assert.Empty(t, ref.Remote.Subpath)
	assert.Equal(t, "v5", ref.Remote.Ref)

	ref, err = ParseStep("github/codeql-action/upload-sarif@v3")
	require.NoError(t, err)
	require.NotNil(t, ref.Remote)
	assert.Equal(t, "codeql-action", ref.Remote.Repo)
	assert.Equal(t, "upload-sarif", ref.Remote.Subpath)
}

func TestParseStepLocal(t *testing.T) {
	ref, err := ParseStep("./.github/actions/setup")
	require.NoError(t, err)
	require.NotNil(t, ref.Local)
	assert.Equal(t, "./.github/actions/setup", ref.Local.Path)
}

func TestParseStepDocker(t *testing.T) {
	tests := []struct {
		in       string
		registry string
		image    string
		tag      string
	}{
		{"docker://alpine:3.19", "", "alpine", "3.19"},
		{"docker://ghcr.io/owner/tool:latest", "ghcr.io", "owner/tool", "latest"},
		{"docker://busybox", "", "busybox", ""},
	}
	for _, tt := range tests {
		ref, err := ParseStep(tt.in)
		require.NoError(t, err, tt.in)
		require.NotNil(t, ref.Docker, tt.in)
		assert.Equal(t, tt.registry, ref.Docker.Registry, tt.in)
		assert.Equal(t, tt.image, ref.Docker.Image, tt.in)
		assert.Equal(t, tt.tag, ref.Docker.Tag, tt.in)
	}
}

func TestParseStepInvalid(t *testing.T) {
	for _, in := range []string{
		"actions/checkout",  // missing ref
		"justaname@v1",      // missing repo
		"@v1",               // empty path
		"docker://",         // empty image
		"actions/checkout@", // empty ref
	} {
		_, err := ParseStep(in)
		assert.Error(t, err, in)
	}
}

func TestParseReusable(t *testing.T) {
	ref, err := ParseReusable("octo-org/example-repo/.github/workflows/reusable.yml@main")
	require.NoError(t, err)
	require.NotNil(t, ref.Remote)
	assert.Equal(t, ".github/workflows/reusable.yml", ref.Remote.Subpath)

	_, err = ParseReusable("./.github/workflows/reusable.yaml")
	require.NoError(t, err)

	for _, in := range []string{
		"octo-org/example-repo@main",       // no workflow file
		"docker://alpine:3.19",             // docker not allowed
		"./.github/workflows/reusable.txt", // wrong extension
	} {
		_, err := ParseReusable(in)
		assert.Error(t, err, in)
	}
}

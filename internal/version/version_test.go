package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuildInfoDefaults(t *testing.T) {
	info := GetBuildInfo()
	require.NotNil(t, info)
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.Platform, runtime.GOOS)
}

func TestLdflagsOverride(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	t.Cleanup(func() {
		Version, GitCommit = origVersion, origCommit
	})

	Version = "1.2.3"
	GitCommit = "abc1234"

	assert.Equal(t, "1.2.3", GetVersion())
	assert.Equal(t, "abc1234", GetGitCommit())
	assert.Contains(t, GetBuildInfo().String(), "palladin 1.2.3")
}

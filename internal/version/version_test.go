package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	origVersion, origBuild, origCommit := Version, BuildTime, GitCommit
	defer func() { Version, BuildTime, GitCommit = origVersion, origBuild, origCommit }()

	Version, BuildTime, GitCommit = "1.2.0", "", ""
	assert.Equal(t, "v1.2.0", GetVersion())

	Version = "v1.2.0"
	assert.Equal(t, "v1.2.0", GetShortVersion())

	BuildTime, GitCommit = "2026-01-01", "0123456789abcdef"
	assert.Equal(t, "v1.2.0 (built 2026-01-01) commit 01234567", GetVersion())

	GitCommit = "abc"
	assert.Equal(t, "v1.2.0 (built 2026-01-01) commit abc", GetVersion())
}

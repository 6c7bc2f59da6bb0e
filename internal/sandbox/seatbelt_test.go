package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSBPL_FlatSubpathPerRoot(t *testing.T) {
	scope, err := NewScope([]string{"/tmp/proj", "/tmp/other"})
	require.NoError(t, err)
	profile := GenerateSBPL(scope)

	assert.Contains(t, profile, "(deny default)")
	assert.Contains(t, profile, "(allow file-write* (subpath \"/private/tmp\"))")
	assert.Contains(t, profile, "(allow file-write* (subpath \"/private/var/folders\"))")
	assert.Contains(t, profile, "(allow file-write* (subpath \"/tmp/proj\"))")
	assert.Contains(t, profile, "(allow file-write* (subpath \"/tmp/other\"))")
	assert.Contains(t, profile, "(allow file-read*)")

	// Every write clause must be single-line with exactly one subpath
	// literal; nested multi-line forms SIGABRT at load time.
	for _, line := range strings.Split(profile, "\n") {
		if strings.Contains(line, "file-write*") {
			assert.Equal(t, 1, strings.Count(line, "subpath"))
		}
	}
}

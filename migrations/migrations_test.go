package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Services insert rows without supplying ids; every UUID primary key must be
// generated by the database.
func TestPrimaryKeysHaveDefaults(t *testing.T) {
	entries, err := FS.ReadDir(".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		data, err := FS.ReadFile(entry.Name())
		require.NoError(t, err)

		for i, line := range strings.Split(string(data), "\n") {
			if !strings.Contains(line, "UUID PRIMARY KEY") {
				continue
			}
			require.Contains(t, line, "DEFAULT gen_random_uuid()",
				"%s line %d: primary key without a generated default", entry.Name(), i+1)
		}
	}
}

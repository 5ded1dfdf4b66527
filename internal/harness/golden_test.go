package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGoldenScenarios runs every scenario under testdata/scenarios and
// compares its trace against the matching golden file. Adding a new
// scenario file plus `go test ./internal/harness -update` is all it
// takes to pin a new case.
func TestGoldenScenarios(t *testing.T) {
	dir := filepath.Join("testdata", "scenarios")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		t.Run(entry.Name(), func(t *testing.T) {
			s, err := LoadScenario(filepath.Join(dir, entry.Name()))
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

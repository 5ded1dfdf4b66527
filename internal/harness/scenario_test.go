package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// algebraPath returns an absolute path to a testdata algebra so
// temp-dir scenarios can reference it.
func algebraPath(t *testing.T, name string) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("testdata", "algebras", name))
	require.NoError(t, err)
	return abs
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "succ-mod-3.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "succ-mod-3", s.Name)
	assert.Equal(t, [][]int{{0}}, s.Generators)
	assert.Equal(t, 1, s.Limits.Workers)
	require.NotNil(t, s.Expect)
	assert.Equal(t, "fixpoint", s.Expect.Reason)
	assert.Equal(t, []int64{0, 1, 2}, s.Expect.Elements)

	// The algebra path is resolved relative to the scenario file.
	_, err = os.Stat(s.Algebra)
	assert.NoError(t, err)
}

func TestLoadScenarioUnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: has a typo
algebra: `+algebraPath(t, "succ3.cue")+`
generator:
  - [0]
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator")
}

func TestLoadScenarioMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nalgebra: x.cue\ngenerators: []\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nalgebra: x.cue\ngenerators: []\n",
			wantErr: "description is required",
		},
		{
			name:    "missing algebra",
			content: "name: n\ndescription: d\ngenerators: []\n",
			wantErr: "algebra is required",
		},
		{
			name:    "missing generators",
			content: "name: n\ndescription: d\nalgebra: x.cue\n",
			wantErr: "generators list is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenarioWithBasePath(writeScenario(t, tt.content), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarioAlgebraNotFound(t *testing.T) {
	path := writeScenario(t, `
name: n
description: d
algebra: missing.cue
generators: []
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "algebra file not found")
}

func TestLoadScenarioBadReason(t *testing.T) {
	path := writeScenario(t, `
name: n
description: d
algebra: `+algebraPath(t, "succ3.cue")+`
generators:
  - [0]
expect:
  reason: done
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown reason "done"`)
}

func TestLoadScenarioNegativeLimits(t *testing.T) {
	path := writeScenario(t, `
name: n
description: d
algebra: `+algebraPath(t, "succ3.cue")+`
generators:
  - [0]
limits:
  max_elements: -1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_elements")
}

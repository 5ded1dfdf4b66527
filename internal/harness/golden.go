package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the deterministic portion of a scenario run
// for golden comparison. Wall-clock fields are deliberately excluded;
// everything here is identical across reruns and worker counts.
type TraceSnapshot struct {
	Scenario     string         `json:"scenario"`
	Algebra      string         `json:"algebra"`
	Reason       string         `json:"reason"`
	Elements     []int64        `json:"elements"`
	Applications uint64         `json:"applications"`
	Passes       []PassSnapshot `json:"passes"`
}

// PassSnapshot is the deterministic portion of one pass report.
type PassSnapshot struct {
	Pass         int    `json:"pass"`
	Found        int64  `json:"found"`
	Size         int64  `json:"size"`
	Applications uint64 `json:"applications"`
}

// snapshot extracts the deterministic trace from a scenario result.
func snapshot(result *Result) TraceSnapshot {
	passes := make([]PassSnapshot, len(result.Reports))
	for i, rep := range result.Reports {
		passes[i] = PassSnapshot{
			Pass:         rep.Pass,
			Found:        rep.Found,
			Size:         rep.Size,
			Applications: rep.Applications,
		}
	}
	return TraceSnapshot{
		Scenario:     result.Scenario,
		Algebra:      result.Algebra,
		Reason:       string(result.Closure.Reason),
		Elements:     result.Closure.Elements,
		Applications: result.Closure.Applications,
		Passes:       passes,
	}
}

// RunWithGolden executes a scenario and compares its trace against a
// golden file at testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result's trace against a
// golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := json.MarshalIndent(snapshot(result), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}

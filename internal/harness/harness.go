// Package harness runs closure conformance scenarios: YAML files that
// name an algebra, a generating set, run limits, and the expected
// outcome. Scenarios double as golden-trace fixtures, pinning the
// per-pass history of a run so regressions in the saturation loop show
// up as golden diffs rather than only as wrong final sets.
package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/algebra"
	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/closure"
)

// Result holds the outcome of one scenario run.
type Result struct {
	// Scenario is the scenario name.
	Scenario string

	// Algebra is the compiled algebra's name.
	Algebra string

	// Closure is the engine result.
	Closure *closure.Result

	// Reports is the per-pass history in pass order.
	Reports []closure.Report
}

// Run executes a scenario and validates its expect clause.
//
// The algebra is compiled fresh for every run so scenarios stay
// isolated. Pass reports are captured for golden comparison.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	alg, err := algebra.LoadFile(scenario.Algebra)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	var reports []closure.Report
	opts := []closure.Option{
		closure.WithSink(closure.SinkFunc(func(rep closure.Report) {
			reports = append(reports, rep)
		})),
	}
	if scenario.Limits.MaxElements > 0 {
		opts = append(opts, closure.WithMaxElements(scenario.Limits.MaxElements))
	}
	if scenario.Limits.Workers > 0 {
		opts = append(opts, closure.WithWorkers(scenario.Limits.Workers))
	}

	res, err := alg.Generate(ctx, scenario.Generators, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := &Result{
		Scenario: scenario.Name,
		Algebra:  alg.Name(),
		Closure:  res,
		Reports:  reports,
	}

	if err := checkExpect(scenario, res); err != nil {
		return result, err
	}

	slog.Debug("scenario complete",
		"scenario", scenario.Name,
		"algebra", alg.Name(),
		"reason", res.Reason,
		"size", len(res.Elements),
		"passes", res.Passes)

	return result, nil
}

// checkExpect validates the closure result against the scenario's
// expect clause.
func checkExpect(scenario *Scenario, res *closure.Result) error {
	expect := scenario.Expect
	if expect == nil {
		return nil
	}

	if string(res.Reason) != expect.Reason {
		return fmt.Errorf("scenario %s: reason %q, expected %q",
			scenario.Name, res.Reason, expect.Reason)
	}

	if expect.Size > 0 && int64(len(res.Elements)) != expect.Size {
		return fmt.Errorf("scenario %s: size %d, expected %d",
			scenario.Name, len(res.Elements), expect.Size)
	}

	if expect.Elements != nil {
		if len(res.Elements) != len(expect.Elements) {
			return fmt.Errorf("scenario %s: %d elements, expected %d",
				scenario.Name, len(res.Elements), len(expect.Elements))
		}
		for i, want := range expect.Elements {
			if res.Elements[i] != want {
				return fmt.Errorf("scenario %s: element[%d] = %d, expected %d",
					scenario.Name, i, res.Elements[i], want)
			}
		}
	}

	return nil
}

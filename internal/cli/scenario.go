package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/harness"
)

// ScenarioResult is the JSON payload of the scenario command.
type ScenarioResult struct {
	Scenario     string `json:"scenario"`
	Algebra      string `json:"algebra"`
	Reason       string `json:"reason"`
	Size         int    `json:"size"`
	Passes       int    `json:"passes"`
	Applications uint64 `json:"applications"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario <scenario.yaml>",
		Short: "Run a closure scenario and check its expectations",
		Long: `Run a YAML scenario: load its algebra, compute the closure of its
generating set under its limits, and validate the expect clause.

Exit code 1 means the run completed but an expectation failed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runScenario(rootOpts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	formatter.VerboseLog("Running scenario %s: %s", scenario.Name, scenario.Description)

	start := time.Now()
	result, err := harness.Run(cmd.Context(), scenario)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitFailure, "scenario failed", err)
	}

	if formatter.Format == "json" {
		return formatter.JSON(ScenarioResult{
			Scenario:     result.Scenario,
			Algebra:      result.Algebra,
			Reason:       string(result.Closure.Reason),
			Size:         len(result.Closure.Elements),
			Passes:       result.Closure.Passes,
			Applications: result.Closure.Applications,
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ %s: %s, %d elements in %d passes (%s)\n",
		result.Scenario, result.Closure.Reason, len(result.Closure.Elements),
		result.Closure.Passes, time.Since(start).Round(time.Millisecond))
	return nil
}

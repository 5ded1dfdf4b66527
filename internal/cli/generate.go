package cli

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/algebra"
	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/closure"
	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/store"
)

// GenerateResult is the JSON payload of the generate command.
type GenerateResult struct {
	Algebra      string  `json:"algebra"`
	RunID        string  `json:"run_id,omitempty"`
	Reason       string  `json:"reason"`
	Size         int     `json:"size"`
	Passes       int     `json:"passes"`
	Applications uint64  `json:"applications"`
	ElapsedMS    int64   `json:"elapsed_ms"`
	Elements     []int64 `json:"elements,omitempty"`
}

// generateOptions holds flags for the generate command.
type generateOptions struct {
	gens         []string
	dbPath       string
	maxElements  int64
	workers      int
	checkpoint   int64
	showElements bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <algebra.cue>",
		Short: "Compute the closure of a generating set",
		Long: `Compute the subuniverse generated by a set of tuples under the
algebra's operations.

Each --gen flag names one generating tuple as comma-separated
coordinates, one per factor. Rank-1 algebras take a single coordinate:

  uacalc generate z6.cue --gen 2
  uacalc generate pair.cue --gen 1,0 --gen 0,1

The run saturates to a fixpoint unless it hits the element ceiling or
is interrupted (Ctrl-C stops at the next pass boundary).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.gens, "gen", nil, "generating tuple as comma-separated coordinates (repeatable)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "record run telemetry to this SQLite database")
	cmd.Flags().Int64Var(&opts.maxElements, "max-elements", 0, "discovered-set ceiling (0 = default)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "worker count (0 = all CPUs)")
	cmd.Flags().Int64Var(&opts.checkpoint, "checkpoint", 0, "applications between cancellation checks (0 = default)")
	cmd.Flags().BoolVar(&opts.showElements, "show-elements", false, "print every discovered element with its decoded tuple")

	return cmd
}

func runGenerate(rootOpts *RootOptions, opts *generateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	alg, err := algebra.LoadFile(path)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to load algebra", err)
	}

	generators, err := parseGenerators(opts.gens)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --gen flag", err)
	}

	formatter.VerboseLog("Loaded algebra %s (size %d, %d operations)",
		alg.Name(), alg.Size(), len(alg.Operations()))

	runOpts := []closure.Option{}
	if opts.maxElements > 0 {
		runOpts = append(runOpts, closure.WithMaxElements(opts.maxElements))
	}
	if opts.workers > 0 {
		runOpts = append(runOpts, closure.WithWorkers(opts.workers))
	}
	if opts.checkpoint > 0 {
		runOpts = append(runOpts, closure.WithCheckpointInterval(opts.checkpoint))
	}

	// Progress lines go to stderr so JSON output stays parseable.
	printer := message.NewPrinter(language.English)
	sinks := []closure.Sink{closure.SinkFunc(func(rep closure.Report) {
		formatter.VerboseLog("pass %d: found %s, size %s, %s applications in %s (est. remaining %s)",
			rep.Pass,
			printer.Sprint(rep.Found),
			printer.Sprint(rep.Size),
			printer.Sprint(rep.Applications),
			rep.Elapsed.Round(time.Millisecond),
			rep.Remaining.Round(time.Millisecond))
	})}

	// Optional run telemetry.
	var (
		st    *store.Store
		runID string
	)
	if opts.dbPath != "" {
		st, err = store.Open(opts.dbPath)
		if err != nil {
			_ = formatter.Error(err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		runID = store.UUIDv7Generator{}.NewRunID()
		if err := st.BeginRun(cmd.Context(), runID, alg.Name(), time.Now()); err != nil {
			_ = formatter.Error(err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		sinks = append(sinks, store.NewRunRecorder(st, runID, nil))
	}

	runOpts = append(runOpts, closure.WithSink(fanOut(sinks)))

	// Ctrl-C cancels at the next pass boundary or worker checkpoint.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := alg.Generate(ctx, generators, runOpts...)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitFailure, "closure run failed", err)
	}

	if st != nil {
		if err := st.FinishRun(cmd.Context(), runID, time.Now(), res); err != nil {
			formatter.VerboseLog("failed to finalize run record: %v", err)
		}
	}

	return outputGenerate(formatter, printer, alg, runID, res, opts.showElements)
}

// fanOut delivers each report to every sink in order.
func fanOut(sinks []closure.Sink) closure.Sink {
	return closure.SinkFunc(func(rep closure.Report) {
		for _, s := range sinks {
			s.PassComplete(rep)
		}
	})
}

// parseGenerators converts --gen flag values into coordinate tuples.
func parseGenerators(gens []string) ([][]int, error) {
	generators := make([][]int, 0, len(gens))
	for _, g := range gens {
		parts := strings.Split(g, ",")
		tuple := make([]int, len(parts))
		for i, part := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("bad generator %q: %w", g, err)
			}
			tuple[i] = v
		}
		generators = append(generators, tuple)
	}
	return generators, nil
}

func outputGenerate(formatter *OutputFormatter, printer *message.Printer, alg *algebra.Algebra, runID string, res *closure.Result, showElements bool) error {
	if formatter.Format == "json" {
		result := GenerateResult{
			Algebra:      alg.Name(),
			RunID:        runID,
			Reason:       string(res.Reason),
			Size:         len(res.Elements),
			Passes:       res.Passes,
			Applications: res.Applications,
			ElapsedMS:    res.Elapsed.Milliseconds(),
		}
		if showElements {
			result.Elements = res.Elements
		}
		return formatter.JSON(result)
	}

	w := formatter.Writer
	printer.Fprintf(w, "%s: %d elements (%s) in %d passes, %d applications, %s\n",
		alg.Name(), len(res.Elements), res.Reason, res.Passes, res.Applications,
		res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "approx. index storage: %s\n",
		humanize.Bytes(uint64(len(res.Elements))*8))
	if runID != "" {
		fmt.Fprintf(w, "run id: %s\n", runID)
	}

	if showElements {
		for _, idx := range res.Elements {
			tuple, err := alg.Coder().Decode(idx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to decode element", err)
			}
			fmt.Fprintf(w, "%8d  %v\n", idx, tuple)
		}
	}
	return nil
}

package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/store"
)

// RunSummary is one run in the runs command's JSON payload.
type RunSummary struct {
	ID           string `json:"id"`
	Algebra      string `json:"algebra"`
	StartedAt    string `json:"started_at"`
	Finished     bool   `json:"finished"`
	Reason       string `json:"reason,omitempty"`
	Elements     int64  `json:"elements,omitempty"`
	Applications uint64 `json:"applications,omitempty"`
	ElapsedMS    int64  `json:"elapsed_ms,omitempty"`
}

// PassSummary is one pass in the runs command's JSON payload.
type PassSummary struct {
	Pass         int    `json:"pass"`
	Found        int64  `json:"found"`
	Size         int64  `json:"size"`
	Applications uint64 `json:"applications"`
	ElapsedMS    int64  `json:"elapsed_ms"`
}

// RunDetail is the JSON payload when a run ID is given.
type RunDetail struct {
	Run    RunSummary    `json:"run"`
	Passes []PassSummary `json:"passes"`
}

// runsOptions holds flags for the runs command.
type runsOptions struct {
	dbPath string
	limit  int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &runsOptions{}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show closure run history",
		Long: `List recorded closure runs, most recent first. With a run ID,
show that run's per-pass history instead.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runShowRun(rootOpts, opts, args[0], cmd)
			}
			return runListRuns(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database recorded with generate --db (required)")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of runs to list (0 = all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func openRunStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runListRuns(rootOpts *RootOptions, opts *runsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	st, err := openRunStore(formatter, opts.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.ListRuns(cmd.Context(), opts.limit)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if formatter.Format == "json" {
		summaries := make([]RunSummary, len(recs))
		for i, rec := range recs {
			summaries[i] = summarize(rec)
		}
		return formatter.JSON(summaries)
	}

	if len(recs) == 0 {
		fmt.Fprintln(formatter.Writer, "no runs recorded")
		return nil
	}

	printer := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tALGEBRA\tSTARTED\tREASON\tELEMENTS\tAPPLICATIONS")
	for _, rec := range recs {
		reason := string(rec.Reason)
		elements, applications := "-", "-"
		if rec.Finished() {
			elements = printer.Sprint(rec.Elements)
			applications = printer.Sprint(rec.Applications)
		} else {
			reason = "running"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.Algebra, humanize.Time(rec.StartedAt), reason, elements, applications)
	}
	return w.Flush()
}

func runShowRun(rootOpts *RootOptions, opts *runsOptions, runID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	st, err := openRunStore(formatter, opts.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.ReadRun(cmd.Context(), runID)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	passes, err := st.ReadPasses(cmd.Context(), runID)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read passes", err)
	}

	if formatter.Format == "json" {
		detail := RunDetail{Run: summarize(rec), Passes: make([]PassSummary, len(passes))}
		for i, p := range passes {
			detail.Passes[i] = PassSummary{
				Pass:         p.Pass,
				Found:        p.Found,
				Size:         p.Size,
				Applications: p.Applications,
				ElapsedMS:    p.Elapsed.Milliseconds(),
			}
		}
		return formatter.JSON(detail)
	}

	printer := message.NewPrinter(language.English)
	fmt.Fprintf(formatter.Writer, "run %s: %s, started %s\n",
		rec.ID, rec.Algebra, rec.StartedAt.Format(time.RFC3339))
	if rec.Finished() {
		printer.Fprintf(formatter.Writer, "  %s after %d elements, %d applications, %s\n",
			rec.Reason, rec.Elements, rec.Applications, rec.Elapsed.Round(time.Millisecond))
	} else {
		fmt.Fprintln(formatter.Writer, "  still running")
	}

	if len(passes) > 0 {
		w := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PASS\tFOUND\tSIZE\tAPPLICATIONS\tELAPSED")
		for _, p := range passes {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				p.Pass, printer.Sprint(p.Found), printer.Sprint(p.Size),
				printer.Sprint(p.Applications), p.Elapsed.Round(time.Millisecond))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// summarize converts a store record into the JSON summary shape.
func summarize(rec store.RunRecord) RunSummary {
	s := RunSummary{
		ID:        rec.ID,
		Algebra:   rec.Algebra,
		StartedAt: rec.StartedAt.Format(time.RFC3339),
		Finished:  rec.Finished(),
	}
	if rec.Finished() {
		s.Reason = string(rec.Reason)
		s.Elements = rec.Elements
		s.Applications = rec.Applications
		s.ElapsedMS = rec.Elapsed.Milliseconds()
	}
	return s
}

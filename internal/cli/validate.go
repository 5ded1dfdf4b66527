package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/algebra"
)

// ValidationIssue is one problem found in an algebra file.
type ValidationIssue struct {
	File    string `json:"file"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Algebras []string          `json:"algebras,omitempty"`
	Issues   []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file-or-dir>",
		Short: "Validate algebra files without running a closure",
		Long: `Compile CUE algebra files and report problems: syntax errors,
missing sizes, wrong table lengths, out-of-range entries.

Accepts a single .cue file or a directory of them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	info, err := os.Stat(path)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot read path", err)
	}

	var names []string
	var issues []ValidationIssue
	if info.IsDir() {
		names, issues, err = validateDir(path, formatter)
	} else {
		names, issues, err = validateFile(path, formatter)
	}
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "validation aborted", err)
	}

	if len(issues) > 0 {
		return outputValidationIssues(formatter, names, issues)
	}
	return outputValidateSuccess(formatter, names)
}

// validateFile compiles one algebra file.
func validateFile(path string, formatter *OutputFormatter) ([]string, []ValidationIssue, error) {
	formatter.VerboseLog("Validating %s", path)

	a, err := algebra.LoadFile(path)
	if err != nil {
		return nil, []ValidationIssue{issueFrom(path, err)}, nil
	}
	return []string{a.Name()}, nil, nil
}

// validateDir compiles every .cue file in a directory, collecting
// issues instead of failing fast.
func validateDir(dir string, formatter *OutputFormatter) ([]string, []ValidationIssue, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var names []string
	var issues []ValidationIssue
	seen := 0
	for _, entry := range entries {
		if entry.IsDir() || !isCueFile(entry.Name()) {
			continue
		}
		seen++
		path := filepath.Join(dir, entry.Name())
		fileNames, fileIssues, err := validateFile(path, formatter)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, fileNames...)
		issues = append(issues, fileIssues...)
	}
	if seen == 0 {
		return nil, nil, fmt.Errorf("no .cue files found in %s", dir)
	}
	sort.Strings(names)
	return names, issues, nil
}

func isCueFile(name string) bool {
	return filepath.Ext(name) == ".cue"
}

// issueFrom converts a load error into a ValidationIssue, preserving
// field and position information when available.
func issueFrom(path string, err error) ValidationIssue {
	var ce *algebra.CompileError
	if errors.As(err, &ce) {
		issue := ValidationIssue{
			File:    path,
			Field:   ce.Field,
			Message: ce.Message,
		}
		if ce.Pos.IsValid() {
			issue.Line = ce.Pos.Line()
		}
		return issue
	}
	return ValidationIssue{File: path, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, names []string) error {
	if formatter.Format == "json" {
		return formatter.JSON(ValidationResult{Valid: true, Algebras: names})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d algebra(s) valid\n", len(names))
	for _, name := range names {
		fmt.Fprintf(formatter.Writer, "  %s\n", name)
	}
	return nil
}

// outputValidationIssues outputs validation problems.
func outputValidationIssues(formatter *OutputFormatter, names []string, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		_ = formatter.JSON(ValidationResult{
			Valid:    false,
			Algebras: names,
			Issues:   issues,
		})
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "%s", issue.File)
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, ":%d", issue.Line)
		}
		if issue.Field != "" {
			fmt.Fprintf(formatter.Writer, " (%s)", issue.Field)
		}
		fmt.Fprintf(formatter.Writer, "\n  %s\n\n", issue.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}

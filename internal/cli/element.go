package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/algebra"
)

// ElementResult is the JSON payload of the element subcommands.
type ElementResult struct {
	Algebra string `json:"algebra"`
	Index   int64  `json:"index"`
	Tuple   []int  `json:"tuple"`
}

// NewElementCommand creates the element command group.
func NewElementCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "element",
		Short: "Convert between element indices and coordinate tuples",
	}
	cmd.AddCommand(newElementEncodeCommand(rootOpts))
	cmd.AddCommand(newElementDecodeCommand(rootOpts))
	return cmd
}

func newElementEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <algebra.cue> <coord>...",
		Short: "Encode a coordinate tuple to its element index",
		Long: `Encode a coordinate tuple to its flat element index. One coordinate
argument per factor, first factor first:

  uacalc element encode pair.cue 1 2`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runElementEncode(rootOpts, args[0], args[1:], cmd)
		},
	}
}

func newElementDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <algebra.cue> <index>",
		Short: "Decode an element index to its coordinate tuple",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runElementDecode(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runElementEncode(rootOpts *RootOptions, path string, coords []string, cmd *cobra.Command) error {
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

	tuple := make([]int, len(coords))
	for i, c := range coords {
		v, err := strconv.Atoi(c)
		if err != nil {
			_ = formatter.Error(err.Error(), nil)
			return WrapExitError(ExitCommandError, "bad coordinate", err)
		}
		tuple[i] = v
	}

	idx, err := alg.Coder().Encode(tuple)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to encode tuple", err)
	}

	return outputElement(formatter, alg.Name(), idx, tuple)
}

func runElementDecode(rootOpts *RootOptions, path, indexArg string, cmd *cobra.Command) error {
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

	idx, err := strconv.ParseInt(indexArg, 10, 64)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "bad index", err)
	}

	tuple, err := alg.Coder().Decode(idx)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to decode index", err)
	}

	return outputElement(formatter, alg.Name(), idx, tuple)
}

func outputElement(formatter *OutputFormatter, name string, idx int64, tuple []int) error {
	if formatter.Format == "json" {
		return formatter.JSON(ElementResult{Algebra: name, Index: idx, Tuple: tuple})
	}
	fmt.Fprintf(formatter.Writer, "%d = %v\n", idx, tuple)
	return nil
}

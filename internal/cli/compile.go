package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deciduous/pkg/errors"
	pkgio "github.com/matzehuels/deciduous/pkg/io"
	"github.com/matzehuels/deciduous/pkg/pipeline"
)

// compileOpts holds the command-line flags for the compile command.
type compileOpts struct {
	output string // output file path (stdout if empty)
	format string // "dot" or "json"
	pipeline.CompileOptions
}

// compileCommand creates the compile command, which emits the DOT
// description without laying it out.
func (c *CLI) compileCommand() *cobra.Command {
	opts := compileOpts{format: errors.FormatDOT}

	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile a document to Graphviz DOT",
		Long: `Compile an attack-tree document to a Graphviz DOT description.

The document is validated as a whole; any unknown reference, duplicate id or
malformed entry rejects it. The filter section (or --focus) keeps only the
paths through the named nodes.

Use "-" to read the document from standard input. Output goes to standard
output unless -o is given.

Examples:
  deciduous compile threats.yaml | dot -Tsvg > threats.svg
  deciduous compile threats.yaml --focus sign_malware -o focus.dot
  deciduous compile threats.yaml --no-filter --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != errors.FormatDOT && opts.format != errors.FormatJSON {
				return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be 'dot' or 'json')", opts.format)
			}
			return c.runCompile(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVar(&opts.format, "format", opts.format, "output format: dot (default), json")
	addFilterFlags(cmd, &opts.CompileOptions)

	return cmd
}

// addFilterFlags registers the focus flags shared by compile, render and
// watch.
func addFilterFlags(cmd *cobra.Command, opts *pipeline.CompileOptions) {
	cmd.Flags().StringSliceVar(&opts.Focus, "focus", nil, "keep only paths through these nodes (overrides the document filter)")
	cmd.Flags().BoolVar(&opts.NoFilter, "no-filter", false, "ignore the document filter and emit every node")
	cmd.MarkFlagsMutuallyExclusive("focus", "no-filter")
	_ = cmd.RegisterFlagCompletionFunc("focus", completeNodeIDs)
}

func (c *CLI) runCompile(ctx context.Context, input string, opts compileOpts) error {
	src, err := readInput(input)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}

	prog := newProgress(loggerFromContext(ctx))
	compiled, err := pipeline.Compile(src, opts.CompileOptions)
	if err != nil {
		return err
	}
	prog.done("compiled", "nodes", compiled.Graph.NodeCount(), "edges", compiled.Graph.EdgeCount())

	var out []byte
	switch opts.format {
	case errors.FormatJSON:
		var buf bytes.Buffer
		if err := pkgio.WriteJSON(compiled.Graph, &buf); err != nil {
			return fmt.Errorf("encode graph: %w", err)
		}
		out = buf.Bytes()
	default:
		out = []byte(compiled.DOT)
	}

	if err := writeOutput(opts.output, out); err != nil {
		return fmt.Errorf("write output %s: %w", opts.output, err)
	}
	if opts.output == "" || opts.output == stdio {
		return nil
	}

	printSuccess("Compiled %s", input)
	printFile(opts.output)
	statusln("  " + statsLine(compiled.Graph.NodeCount(), compiled.Graph.EdgeCount(), compiled.Categories))
	if !compiled.Worth() {
		printWarning("Nothing to draw: the filtered graph has no nodes")
	}
	return nil
}

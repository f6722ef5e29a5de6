package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deciduous/pkg/errors"
	"github.com/matzehuels/deciduous/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output  string // output file (single format) or base path (multiple)
	formats string // comma-separated formats, empty for the configured ones
	noEmbed bool   // do not embed the document in the artifacts
	noCache bool   // bypass the layout cache entirely
	refresh bool   // re-run layout but store the result
	pipeline.CompileOptions
}

// renderCommand creates the render command for laying out a document.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a document to SVG, PNG or DOT",
		Long: `Render an attack-tree document with Graphviz.

Every artifact carries the document it was rendered from, so 'deciduous
extract' can recover the source from a shared diagram. Pass --no-embed to
produce bare artifacts.

Layouts are cached by the DOT description they were computed from, so
re-rendering an unchanged graph (after a comment-only edit, say) is instant.

Examples:
  deciduous render threats.yaml                   # threats.svg
  deciduous render threats.yaml -f svg,png        # threats.svg, threats.png
  deciduous render threats.yaml -f png -o out.png
  deciduous render threats.yaml --focus deface_site`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg, png, dot (comma-separated; default from config)")
	cmd.Flags().BoolVar(&opts.noEmbed, "no-embed", false, "do not embed the document source")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the layout cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute cached layouts")
	addFilterFlags(cmd, &opts.CompileOptions)

	return cmd
}

// pipelineOptions resolves flags against the configuration.
func (c *CLI) pipelineOptions(formats string, noEmbed, refresh bool, co pipeline.CompileOptions) (pipeline.Options, error) {
	opts := pipeline.Options{
		CompileOptions: co,
		Formats:        c.parseFormats(formats),
		Embed:          c.Config.Render.Embed && !noEmbed,
		Refresh:        refresh,
		Logger:         c.Logger,
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (c *CLI) runRender(ctx context.Context, input string, ro renderOpts) error {
	opts, err := c.pipelineOptions(ro.formats, ro.noEmbed, ro.refresh, ro.CompileOptions)
	if err != nil {
		return err
	}
	src, err := readInput(input)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}

	runner, err := c.newRunner(ctx, ro.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", strings.Join(opts.Formats, ", ")))
	spinner.Start()

	result, err := runner.Execute(ctx, src, opts)
	if spinner.Cancelled() {
		spinner.Stop()
		return ctx.Err()
	}
	if err != nil {
		if errors.IsValidation(err) || errors.Is(err, errors.ErrCodeDecode) {
			spinner.StopWithError("Document rejected")
		} else {
			spinner.StopWithError("Render failed")
		}
		return err
	}
	spinner.Stop()

	written, err := writeArtifacts(input, ro.output, opts.Formats, result.Artifacts)
	if err != nil {
		return err
	}

	if len(written) == 0 {
		printWarning("Nothing to draw: the filtered graph has no nodes")
		printNextStep("Show every node", "deciduous render --no-filter "+input)
		return nil
	}
	printSuccess("Rendered %s", input)
	for _, w := range written {
		printFile(w.Path)
	}
	printStats(result.Stats.NodeCount, result.Stats.EdgeCount, result.Compiled.Categories, result.CacheInfo.LayoutHit)
	if skipped := len(opts.Formats) - len(written); skipped > 0 {
		printDetail("%d format(s) skipped: nothing to lay out", skipped)
	}
	return nil
}

// writtenFile is one artifact written to disk.
type writtenFile struct {
	Format string
	Path   string
}

// writeArtifacts writes each produced artifact to its output path, in the
// requested format order. Formats with no artifact (an empty graph) are
// skipped.
func writeArtifacts(input, output string, formats []string, artifacts map[string][]byte) ([]writtenFile, error) {
	paths := outputPaths(input, output, formats)
	var written []writtenFile
	for _, f := range formats {
		data, ok := artifacts[f]
		if !ok {
			continue
		}
		if err := writeOutput(paths[f], data); err != nil {
			return written, fmt.Errorf("write output %s: %w", paths[f], err)
		}
		written = append(written, writtenFile{Format: f, Path: paths[f]})
	}
	return written, nil
}

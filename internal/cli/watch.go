package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/deciduous/pkg/errors"
	"github.com/matzehuels/deciduous/pkg/pipeline"
	"github.com/matzehuels/deciduous/pkg/server"
)

// watchOpts holds the command-line flags for the watch command.
type watchOpts struct {
	output   string
	formats  string
	noEmbed  bool
	noTUI    bool
	interval time.Duration
	serve    string
	pipeline.CompileOptions
}

// watchCommand creates the watch command, which re-renders a document on
// every change.
func (c *CLI) watchCommand() *cobra.Command {
	var opts watchOpts

	cmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Re-render a document whenever it changes",
		Long: `Watch a document and re-render it on every change.

The document is polled; each saved change is compiled and, when valid,
written to the output files. An invalid document does not stop the watch:
the status view shows "no graph" and the reason until the next save fixes
it. Previously written files are left untouched in the meantime.

With --serve the latest render is also served over HTTP, so a browser tab
on /api/v1/latest/svg previews the document as it is edited.

Examples:
  deciduous watch threats.yaml
  deciduous watch threats.yaml -f svg,png --serve :8080
  deciduous watch threats.yaml --no-tui --interval 2s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg, png, dot (comma-separated; default from config)")
	cmd.Flags().BoolVar(&opts.noEmbed, "no-embed", false, "do not embed the document source")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "log each rebuild instead of showing the status view")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "polling interval (default from config)")
	cmd.Flags().StringVar(&opts.serve, "serve", "", "also serve the latest render on this address (e.g. :8080)")
	addFilterFlags(cmd, &opts.CompileOptions)

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, input string, wo watchOpts) error {
	if input == stdio {
		return errors.New(errors.ErrCodeInvalidInput, "watch needs a file, not standard input")
	}
	opts, err := c.pipelineOptions(wo.formats, wo.noEmbed, false, wo.CompileOptions)
	if err != nil {
		return err
	}
	interval := wo.interval
	if interval <= 0 {
		interval = c.Config.Watch.Interval
	}

	runner, err := c.newRunner(ctx, false)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	// The status view owns the terminal; logging would tear it.
	logger := loggerFromContext(ctx)
	if !wo.noTUI {
		logger = log.New(io.Discard)
		runner.Logger = logger
	}
	opts.Logger = logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	current := &pipeline.Current{}
	w := &watcher{
		path:     input,
		interval: interval,
		runner:   runner,
		opts:     opts,
		current:  current,
		logger:   logger,
	}

	g, gctx := errgroup.WithContext(ctx)

	if wo.serve != "" {
		srv := server.New(runner, wo.serve,
			server.WithCurrent(current),
			server.WithLogger(logger),
			server.WithMaxBodyBytes(c.Config.Server.MaxBodyBytes))
		registerHooks(srv.Metrics())
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}

	if wo.noTUI {
		w.onSnapshot = func(s *pipeline.Snapshot) {
			written, err := c.writeSnapshot(input, wo.output, opts.Formats, s)
			logSnapshot(logger, s, written, err)
		}
		g.Go(func() error { return w.Run(gctx) })
		logger.Info("watching", "path", input, "interval", interval)
		return g.Wait()
	}

	p := tea.NewProgram(NewWatchModel(input, wo.serve))
	w.onSnapshot = func(s *pipeline.Snapshot) {
		written, err := c.writeSnapshot(input, wo.output, opts.Formats, s)
		p.Send(watchEvent{snap: s, written: written, writeErr: err})
	}
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		p.Quit()
		return nil
	})

	_, err = p.Run()
	cancel()
	if werr := g.Wait(); werr != nil {
		return werr
	}
	return err
}

// writeSnapshot writes the artifacts of a successful run. Failed runs
// write nothing, so the last good files stay in place.
func (c *CLI) writeSnapshot(input, output string, formats []string, s *pipeline.Snapshot) ([]writtenFile, error) {
	if !s.OK() {
		return nil, nil
	}
	return writeArtifacts(input, output, formats, s.Artifacts)
}

func logSnapshot(logger *log.Logger, s *pipeline.Snapshot, written []writtenFile, writeErr error) {
	if !s.OK() {
		logger.Error("no graph",
			"code", errors.GetCode(s.Err),
			"node", errors.NodeID(s.Err),
			"err", errors.UserMessage(s.Err))
		return
	}
	paths := make([]string, len(written))
	for i, w := range written {
		paths[i] = w.Path
	}
	logger.Info("rebuilt",
		"nodes", s.Compiled.Graph.NodeCount(),
		"edges", s.Compiled.Graph.EdgeCount(),
		"files", paths,
		"snapshot", s.ID.String()[:8])
	if writeErr != nil {
		logger.Warn("write failed", "err", writeErr)
	}
}

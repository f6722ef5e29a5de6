package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deciduous/pkg/observability"
	"github.com/matzehuels/deciduous/pkg/server"
)

// serveCommand creates the serve command, which hosts the compiler over
// HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiler over HTTP",
		Long: `Serve the compiler over HTTP.

Endpoints:
  POST /api/v1/compile          document -> {dot, categories, title}
  POST /api/v1/render?format=   document -> artifact (svg, png, dot)
  POST /api/v1/extract          artifact -> document
  GET  /api/v1/latest[/format]  the most recent render
  GET  /healthz                 liveness
  GET  /metrics                 Prometheus metrics

Rejected documents are answered with 422 and {code, node_id, message}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = c.Config.Server.Addr
			}

			runner, err := c.newRunner(ctx, noCache)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			srv := server.New(runner, addr,
				server.WithLogger(loggerFromContext(ctx)),
				server.WithMaxBodyBytes(c.Config.Server.MaxBodyBytes))
			registerHooks(srv.Metrics())

			printInfo("Serving on %s", StyleLink.Render(previewURL(addr)))
			printKeyValue("  Cache", c.Config.Cache.Backend)
			printKeyValue("  Body limit", formatBytes(int(c.Config.Server.MaxBodyBytes)))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the layout cache")

	return cmd
}

// registerHooks routes pipeline and cache events into m, so runs outside
// HTTP requests show up on /metrics as well.
func registerHooks(m *server.Metrics) {
	observability.SetPipelineHooks(m)
	observability.SetCacheHooks(m)
}

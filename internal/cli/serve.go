package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/eramap/internal/server"
	"github.com/ppiankov/eramap/internal/worker"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve exposes the inference engine over HTTP and answers the resolver
contract at GET /api/region with the configured resolver, so other eramap
instances and the web UI can point resolver.endpoint at it.

Example:
  eramap serve --port 8080
  ERAMAP_RESOLVER_PROVIDER=openai eramap serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		opts := server.Options{
			Engine:         a.engine,
			Resolver:       a.resolver,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RegionTimeout:  cfg.RequestTimeout(),
		}
		if cfg.Server.RequestsPerSecond > 0 {
			opts.Limiter = worker.NewLimiter(cfg.Server.RequestsPerSecond, cfg.Server.Burst)
		}

		srv := server.New(opts)
		return srv.ListenAndServe(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go.aimuz.me/commentator/tokenserver"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session token server",
	Long: `Serve GET /session, which mints a short-lived realtime credential with
OPENAI_API_KEY, and GET /health.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (default: $PORT or 3001)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(logLevel)

	cfg := tokenserver.LoadConfig()
	if servePort != "" {
		cfg.Port = servePort
	}
	if cfg.APIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set; /session will fail")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting token server", "version", version, "addr", cfg.Addr())
	return tokenserver.New(cfg, nil).Run(ctx)
}

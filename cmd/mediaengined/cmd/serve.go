package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corten/mediaengine/internal/config"
	"github.com/corten/mediaengine/internal/engine"
	"github.com/corten/mediaengine/internal/hwcontext"
	"github.com/corten/mediaengine/internal/httpserver"
	"github.com/corten/mediaengine/internal/httpserver/handlers"
	"github.com/corten/mediaengine/internal/observability"
	"github.com/corten/mediaengine/internal/version"
	"github.com/corten/mediaengine/pkg/duration"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the media engine HTTP daemon",
	Long: `Start the media engine's HTTP server.

Exposes session lifecycle, transport control and frame/sample pull
operations as a REST API, plus a per-session Server-Sent-Events
stream carrying playback-state and error notifications.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8088, "Port to listen on")
	serveCmd.Flags().String("session-idle-timeout", "10m", "Idle duration to report at startup (parsed and logged only; sessions are reclaimed after the registry's fixed 10m SessionTimeout)")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("engine.session_idle_timeout", serveCmd.Flags().Lookup("session-idle-timeout"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	idleTimeout, err := duration.Parse(viper.GetString("engine.session_idle_timeout"))
	if err != nil {
		return fmt.Errorf("parsing engine.session_idle_timeout: %w", err)
	}
	logger.Info("session idle timeout configured", slog.String("timeout", duration.Format(idleTimeout)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(ctx, cfg.Engine.ToMediaTypes(), hwcontext.SoftwareOnly{}, logger)
	defer eng.Close()

	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout

	server := httpserver.New(serverConfig, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version)
	healthHandler.Register(server.API())

	sessionHandler := handlers.NewSessionHandler(eng, logger)
	sessionHandler.Register(server.API())

	eventsHandler := handlers.NewEventsHandler(eng, logger)
	eventsHandler.RegisterSSE(server.Router())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting mediaengined",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

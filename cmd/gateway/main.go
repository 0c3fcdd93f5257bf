package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lhchen/assistant-realtime/internal/archive"
	"github.com/lhchen/assistant-realtime/internal/auth"
	"github.com/lhchen/assistant-realtime/internal/config"
	"github.com/lhchen/assistant-realtime/internal/database"
	"github.com/lhchen/assistant-realtime/internal/dispatch"
	"github.com/lhchen/assistant-realtime/internal/hub"
	"github.com/lhchen/assistant-realtime/internal/server"
	"github.com/lhchen/assistant-realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/gateway.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting gateway",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"addr", cfg.Server.Addr,
		"ws_path", cfg.Server.WSPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	h := hub.New(hub.Config{
		HeartbeatInterval: cfg.Hub.HeartbeatInterval,
		LivenessTimeout:   cfg.Hub.LivenessTimeout,
		WriteTimeout:      cfg.Hub.WriteTimeout,
	}, logger)

	// Archival is optional; without a database the gateway runs in
	// delivery-only mode.
	var dispatchOpts []dispatch.Option
	var archiver *archive.Archiver
	if cfg.Database.Postgres.Host != "" {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		logger.Info("database connected")

		archiver = archive.New(cfg.Archive, pool, logger)
		dispatchOpts = append(dispatchOpts, dispatch.WithChatRecorder(archiver))
	} else {
		logger.Info("no database configured, chat archival disabled")
	}

	d := dispatch.New(h, logger, dispatchOpts...)

	var serverOpts []server.Option
	if cfg.Server.AuthSecret != "" {
		verifier := auth.NewVerifier(cfg.Server.AuthSecret)
		serverOpts = append(serverOpts, server.WithIdentityFunc(tokenIdentity(verifier)))
		logger.Info("token authentication enabled")
	}

	srv := server.New(cfg.Server, h, d, logger, serverOpts...)

	if archiver != nil {
		if err := archiver.Start(ctx); err != nil {
			logger.Error("failed to start archiver", "error", err)
			os.Exit(1)
		}
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	logger.Info("gateway running",
		"instance_id", cfg.Instance.ID,
		"addr", srv.Addr(),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop closes the hub as part of draining its connection pumps.
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}
	if archiver != nil {
		if err := archiver.Stop(shutdownCtx); err != nil {
			logger.Warn("archiver shutdown error", "error", err)
		}
	}

	logger.Info("gateway stopped")
}

// tokenIdentity resolves identity from a signed token in the query
// string. Requests without a token fall back to plain query parameters.
func tokenIdentity(verifier *auth.Verifier) server.IdentityFunc {
	return func(r *http.Request) (*hub.Identity, error) {
		token := r.URL.Query().Get("token")
		if token == "" {
			return server.DefaultIdentity(r)
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			return nil, err
		}
		return &hub.Identity{
			UserID:   claims.UserID,
			Username: claims.Username,
		}, nil
	}
}

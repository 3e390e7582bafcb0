package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/italolelis/aax_downloader/internal/acquisition"
	"github.com/italolelis/aax_downloader/internal/audible"
	"github.com/italolelis/aax_downloader/internal/cleanup"
	"github.com/italolelis/aax_downloader/internal/config"
	"github.com/italolelis/aax_downloader/internal/coordinator"
	"github.com/italolelis/aax_downloader/internal/downloader"
	"github.com/italolelis/aax_downloader/internal/filestore"
	"github.com/italolelis/aax_downloader/internal/http/rest"
	"github.com/italolelis/aax_downloader/internal/logctx"
	"github.com/italolelis/aax_downloader/internal/notifier"
	"github.com/italolelis/aax_downloader/internal/storage"
	"github.com/italolelis/aax_downloader/internal/storage/sqlite"
	"github.com/italolelis/aax_downloader/internal/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(logctx.NewTraceHandler(handler))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("aax downloader starting...", "log_level", cfg.LogLevel, "version", version)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInterval:   cfg.Telemetry.OTLPInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	ledger := sqlite.NewInstrumentedAcquisitionRepository(database, tel)

	// =========================================================================
	// Start Storage
	locator, err := filestore.NewLocator(filestore.LocatorConfig{
		StagingRoot: cfg.StagingDir,
		FinalRoot:   cfg.FinalDir,
		LibraryRoot: cfg.LibraryDir,
		ContentExt:  cfg.ContentExt,
		AudioExts:   cfg.AudioExts,
	})
	if err != nil {
		return fmt.Errorf("failed to prepare storage: %w", err)
	}

	// =========================================================================
	// Start Acquisition Pipeline
	acquirer, err := buildAcquirer(cfg, locator, tel)
	if err != nil {
		return err
	}

	coord := coordinator.New(acquirer, ledger, storage.GenerateInstanceID(), cfg.MaxParallel)
	if err := coord.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover ledger: %w", err)
	}

	// =========================================================================
	// Start Cleanup
	go cleanup.Run(ctx, locator.StagingRoot(), cfg.CleanupInterval, cfg.StagingRetention, coord.InUse)

	// =========================================================================
	// Start API Service

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	server := setupServer(ctx, cfg, coord, ledger, tel)

	go func() {
		logger.Info("Initializing API support", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	logger.Info("waiting for acquisition requests...",
		"staging_dir", cfg.StagingDir,
		"final_dir", cfg.FinalDir,
		"max_parallel", cfg.MaxParallel,
		"staging_retention", cfg.StagingRetention.String(),
	)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return ctx.Err()
	}
}

func buildAcquirer(cfg *config.Config, locator *filestore.Locator, tel *telemetry.Telemetry) (*acquisition.Acquirer, error) {
	transport := tel.Transport(nil)

	apiClient, err := audible.NewClient(audible.Config{
		BaseURL:   cfg.Audible.BaseURL,
		Token:     cfg.Audible.Token,
		UserAgent: cfg.Audible.UserAgent,
		Timeout:   cfg.Audible.Timeout,
	}, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to build api client: %w", err)
	}

	// Content downloads can take a long time; cancellation comes from the request context instead of a timeout.
	dl := downloader.New(&http.Client{Transport: transport},
		downloader.WithUserAgent(cfg.Audible.UserAgent),
		downloader.WithProgressInterval(cfg.ProgressInterval),
	)

	sinks := []acquisition.StatusSink{notifier.LogSink{}}
	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, notifier.NotifierSink{Notifier: &notifier.DiscordNotifier{
			WebhookURL: cfg.DiscordWebhookURL,
			Client:     &http.Client{Transport: transport},
		}})
	}

	return acquisition.NewAcquirer(audible.NewInstrumentedClient(apiClient, tel), dl, locator, acquisition.Options{
		ContentExt: cfg.ContentExt,
		SidecarExt: cfg.SidecarExt,
		Classifier: acquisition.NewSizeClassifier(cfg.SettleDelay),
		Sink:       notifier.Multi(sinks...),
		Telemetry:  tel,
	}), nil
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(
	ctx context.Context,
	cfg *config.Config,
	coord *coordinator.Coordinator,
	ledger storage.AcquisitionReadRepository,
	tel *telemetry.Telemetry,
) *http.Server {
	aHandler := rest.NewAcquisitionHandler(cfg.API.Username, cfg.API.Password, coord, ledger)

	r := chi.NewRouter()
	r.Use(telemetry.RequestID, telemetry.HTTPLogging, telemetry.NewHTTPMiddleware(tel).Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", tel.Handler())
	r.Mount("/", aHandler.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

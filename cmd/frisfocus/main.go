package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/frisfocus/internal/cache"
	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/config"
	"github.com/dukerupert/frisfocus/internal/database"
	"github.com/dukerupert/frisfocus/internal/logging"
	"github.com/dukerupert/frisfocus/internal/objectacl"
	"github.com/dukerupert/frisfocus/internal/push"
	"github.com/dukerupert/frisfocus/internal/scheduler"
	"github.com/dukerupert/frisfocus/internal/server"
	"github.com/dukerupert/frisfocus/internal/service"
	"github.com/dukerupert/frisfocus/internal/store"
	ws "github.com/dukerupert/frisfocus/internal/websocket"
)

var envFile string

func main() {
	root := &cobra.Command{
		Use:           "frisfocus",
		Short:         "FrisFocus habit tracking server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file to load")

	root.AddCommand(serveCmd(), migrateCmd(), recomputeCmd(), vapidCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket hub and boundary scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			// Open applies migrations.
			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			logger.Info("migrations applied", "db", cfg.DBPath)
			return nil
		},
	}
}

func recomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Run one boundary pass over every circle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := service.New(db, service.Options{
				Clock:  clock.System(cfg.Location()),
				Logger: logger,
			})
			report, err := scheduler.New(svc, cfg.SchedulerInterval, cfg.SchedulerWorkers, logger).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "circles=%d awards_won=%d competitions_resolved=%d sessions_purged=%d failed=%d\n",
				report.Circles, report.AwardsWon, report.CompetitionsResolved, report.SessionsPurged, report.Failed)
			return nil
		},
	}
}

func vapidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "FRISFOCUS_VAPID_PUBLIC_KEY=%s\nFRISFOCUS_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	scores, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	objects, closeObjects, err := openObjects(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeObjects()

	hub := ws.NewHub(logger.With("component", "hub"))
	svc := service.New(db, service.Options{
		Clock:       clock.System(cfg.Location()),
		Cache:       scores,
		Broadcaster: hub,
		Notifier:    newNotifier(cfg, db, logger),
		Objects:     objects,
		Logger:      logger,
		SessionTTL:  cfg.SessionTTL,
	})

	srv := server.New(svc, hub, server.Options{
		VAPIDPublicKey: cfg.VAPIDPublicKey,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  strings.HasPrefix(cfg.BaseURL, "https://"),
	}, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(svc, cfg.SchedulerInterval, cfg.SchedulerWorkers, logger)
	sched.Start(ctx)
	defer sched.Stop()

	go cleanupRateLimiter(ctx, srv)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("frisfocus listening", "addr", httpServer.Addr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() {}, nil
	}
	r := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := r.Ping(ctx); err != nil {
		r.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("leaderboard cache on redis", "addr", cfg.RedisAddr)
	return r, func() { r.Close() }, nil
}

func openObjects(ctx context.Context, cfg *config.Config) (objectacl.Store, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		return objectacl.NewS3Store(objectacl.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.StorageBucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}), func() {}, nil
	case config.StorageGCS:
		if cfg.GCSCredentials != "" {
			os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", cfg.GCSCredentials)
		}
		s, err := objectacl.NewGCSStore(ctx, cfg.StorageBucket)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	return nil, func() {}, nil
}

func newNotifier(cfg *config.Config, db *sql.DB, logger *slog.Logger) service.Notifier {
	sender := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	if !sender.Enabled() {
		logger.Info("web push disabled, no VAPID keys configured")
		return nil
	}
	return push.NewNotifier(sender, store.New(db), logger.With("component", "push"))
}

func cleanupRateLimiter(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.RateLimiter().Cleanup(10 * time.Minute)
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/slotcal/internal/config"
	"github.com/ehr/slotcal/internal/domain/availability"
	"github.com/ehr/slotcal/internal/platform/bulkpublish"
	"github.com/ehr/slotcal/internal/platform/dirsource"
	"github.com/ehr/slotcal/internal/platform/metrics"
	"github.com/ehr/slotcal/internal/platform/middleware"
	"github.com/ehr/slotcal/internal/platform/pgsource"
	"github.com/ehr/slotcal/internal/platform/snapshot"
	"github.com/ehr/slotcal/internal/render"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "slotcal",
		Short:        "FHIR slot availability calendar",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(monthCmd())
	rootCmd.AddCommand(dayCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(out io.Writer) zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the availability API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func monthCmd() *cobra.Command {
	var weekStart string
	cmd := &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Print a month calendar marking days with free slots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(os.Stderr)
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			year, month, err := resolveMonth(args, time.Now(), cfg.Location())
			if err != nil {
				return err
			}

			catalog, closeSource, err := loadCatalog(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			defer closeSource()

			idx, _, err := catalog.Month(year, month)
			if err != nil {
				return err
			}
			return render.MonthGrid(cmd.OutOrStdout(), year, month, idx, render.ParseWeekStart(weekStart))
		},
	}
	cmd.Flags().StringVar(&weekStart, "week-start", "sun", "first day of the week (sun, mon, ...)")
	return cmd
}

// resolveMonth reads an optional YYYY-MM argument, defaulting to the month
// of now in loc.
func resolveMonth(args []string, now time.Time, loc *time.Location) (int, time.Month, error) {
	if len(args) == 0 {
		year, month, _ := now.In(loc).Date()
		return year, month, nil
	}
	t, err := time.ParseInLocation("2006-01", args[0], loc)
	if err != nil {
		return 0, 0, fmt.Errorf("month must be YYYY-MM: %w", err)
	}
	return t.Year(), t.Month(), nil
}

func dayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "day YYYY-MM-DD",
		Short: "List the free slots of one day grouped by start time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(os.Stderr)
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			date, err := time.ParseInLocation(availability.DateKeyLayout, args[0], cfg.Location())
			if err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}

			catalog, closeSource, err := loadCatalog(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			defer closeSource()

			groups, err := catalog.Day(date)
			if err != nil {
				return err
			}
			return render.DayListing(cmd.OutOrStdout(), args[0], groups, cfg.Location())
		},
	}
}

func importCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy NDJSON files from a directory into the fhir_resource table",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(os.Stderr)
			cfg, err := config.Read()
			if err != nil {
				return err
			}
			if dir != "" {
				cfg.DataDir = dir
			}
			if err := cfg.ValidateImport(); err != nil {
				return err
			}

			ctx := cmd.Context()
			ds, err := dirsource.New(cfg.DataDir, logger).Load(ctx)
			if err != nil {
				return err
			}

			pool, err := pgsource.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := importDataset(ctx, pgsource.New(pool, logger), ds)
			if err != nil {
				return err
			}
			logger.Info().Int("resources", n).Str("dir", cfg.DataDir).Msg("import complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory holding the NDJSON files (default DATA_DIR)")
	return cmd
}

// importDataset writes every resource of ds and returns how many were stored.
func importDataset(ctx context.Context, store *pgsource.Source, ds *availability.Dataset) (int, error) {
	if err := store.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	n := 0
	insert := func(resourceType, id string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", resourceType, id, err)
		}
		if err := store.Insert(ctx, resourceType, id, raw); err != nil {
			return err
		}
		n++
		return nil
	}
	for _, p := range ds.Practitioners {
		if err := insert("PractitionerRole", p.ID, p); err != nil {
			return n, err
		}
	}
	for _, s := range ds.Schedules {
		if err := insert("Schedule", s.ID, s); err != nil {
			return n, err
		}
	}
	for _, s := range ds.Slots {
		if err := insert("Slot", s.ID, s); err != nil {
			return n, err
		}
	}
	return n, nil
}

// newSource builds the Source selected by SOURCE, wrapped in a Redis
// snapshot when REDIS_URL is set. The returned func releases anything the
// source holds open; the Pinger is non-nil only for Postgres.
func newSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (availability.Source, func(), pgsource.Pinger, error) {
	src, closeSource, pinger, err := upstreamSource(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.RedisURL == "" {
		return src, closeSource, pinger, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		closeSource()
		return nil, nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	logger.Info().Str("addr", opts.Addr).Dur("ttl", cfg.SnapshotTTL).Msg("dataset snapshots enabled")
	closeAll := func() {
		_ = rdb.Close()
		closeSource()
	}
	return snapshot.New(src, rdb, snapshot.DefaultKey, cfg.SnapshotTTL, logger), closeAll, pinger, nil
}

func upstreamSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (availability.Source, func(), pgsource.Pinger, error) {
	switch cfg.Source {
	case config.SourceDir:
		return dirsource.New(cfg.DataDir, logger), func() {}, nil, nil
	case config.SourcePostgres:
		pool, err := pgsource.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info().Msg("connected to database")
		return pgsource.New(pool, logger), pool.Close, pool, nil
	default:
		client := bulkpublish.NewClient(bulkpublish.Config{
			ManifestURL: cfg.BulkPublishURL,
			RewriteFrom: cfg.URLRewriteFrom,
			RewriteTo:   cfg.URLRewriteTo,
			Timeout:     cfg.HTTPTimeout,
			Concurrency: cfg.FetchConcurrency,
		}, nil, logger)
		return client, func() {}, nil, nil
	}
}

func loadCatalog(ctx context.Context, cfg *config.Config, logger zerolog.Logger, obs availability.Observer) (*availability.Catalog, func(), error) {
	src, closeSource, _, err := newSource(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	catalog := availability.NewCatalog(src, availability.NewBuilder(cfg.Location(), logger), obs, logger)
	if _, err := catalog.Reload(ctx); err != nil {
		closeSource()
		return nil, nil, err
	}
	return catalog, closeSource, nil
}

const reloadPath = "/api/v1/availability/reload"

// newServer wires routes and middleware around catalog. reg receives the
// request and cache metrics and is served at /metrics.
func newServer(cfg *config.Config, catalog *availability.Catalog, logger zerolog.Logger, reg *prometheus.Registry, m *metrics.AvailabilityMetrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger, m))
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.APIHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, reloadPath))

	e.GET("/health", healthHandler(catalog))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	apiV1 := e.Group("/api/v1")
	availability.NewHandler(catalog, cfg.Location()).RegisterRoutes(apiV1)
	return e
}

func healthHandler(catalog *availability.Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		cache, err := catalog.Cache()
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "loading",
			})
		}
		ds := cache.Dataset()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":       "ok",
			"datasetId":    ds.ID.String(),
			"loadedAt":     ds.LoadedAt,
			"cachedMonths": cache.Len(),
			"slots":        len(ds.Slots),
		})
	}
}

func runServer() error {
	// Logger
	logger := newLogger(os.Stdout)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	src, closeSource, pinger, err := newSource(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open source")
	}
	defer closeSource()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewAvailabilityMetrics(reg)

	catalog := availability.NewCatalog(src, availability.NewBuilder(cfg.Location(), logger), m, logger)
	// A failed first load leaves the API answering 503 until POST /reload
	// succeeds.
	if ds, err := catalog.Reload(ctx); err != nil {
		logger.Error().Err(err).Str("source", cfg.Source).Msg("initial load failed")
	} else {
		logger.Info().
			Str("dataset_id", ds.ID.String()).
			Int("slots", len(ds.Slots)).
			Msg("dataset loaded")
	}

	e := newServer(cfg, catalog, logger, reg, m)
	if pinger != nil {
		e.GET("/health/db", pgsource.HealthHandler(pinger))
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("tz", cfg.Location().String()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/analytics"
	analyticsPostgres "github.com/frahmantamala/finance-tracker/internal/analytics/postgres"
	"github.com/frahmantamala/finance-tracker/internal/auth"
	authPostgres "github.com/frahmantamala/finance-tracker/internal/auth/postgres"
	"github.com/frahmantamala/finance-tracker/internal/cache"
	"github.com/frahmantamala/finance-tracker/internal/cache/broadcast"
	"github.com/frahmantamala/finance-tracker/internal/category"
	categoryPostgres "github.com/frahmantamala/finance-tracker/internal/category/postgres"
	"github.com/frahmantamala/finance-tracker/internal/core/events"
	"github.com/frahmantamala/finance-tracker/internal/transaction"
	transactionPostgres "github.com/frahmantamala/finance-tracker/internal/transaction/postgres"
	"github.com/frahmantamala/finance-tracker/internal/transport/rest"
	"github.com/frahmantamala/finance-tracker/internal/user"
	userPostgres "github.com/frahmantamala/finance-tracker/internal/user/postgres"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config      *internal.Config
	DB          *sqlx.DB
	GormDB      *gorm.DB
	Cache       *cacheLayer
	EventBus    *events.EventBus
	Broadcaster *broadcast.AMQPBroadcaster
	Router      *chi.Mux
	Logger      *slog.Logger
	StartedAt   time.Time
}

// cacheLayer bundles everything built from the cache section of the config.
type cacheLayer struct {
	Store        cache.Store
	Orchestrator *cache.Orchestrator
	Coordinator  *cache.Coordinator
	Registry     *prometheus.Registry
}

func startHTTPServer() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.close()

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "cache_driver", deps.Config.Cache.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		deps.Logger.Info("Received signal, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.close()
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	cfg := deps.Config
	publisher := deps.EventBus
	orch := deps.Cache.Orchestrator
	ttl := cfg.Cache.TTL

	engine := analytics.NewEngine(
		analyticsPostgres.NewLedgerRepository(deps.GormDB),
		analytics.WithQueryTimeout(cfg.Database.QueryTimeout),
		analytics.WithEngineLogger(deps.Logger),
	)
	analyticsService := analytics.NewService(engine, orch, analytics.TTLs{
		User:   ttl.UserAnalytics,
		Global: ttl.GlobalAnalytics,
	}, deps.Logger)

	transactionService := transaction.NewService(
		transactionPostgres.NewTransactionRepository(deps.GormDB),
		orch, ttl.Transactions, publisher, deps.Logger,
	)
	categoryService := category.NewService(
		categoryPostgres.NewCategoryRepository(deps.GormDB),
		orch, ttl.Categories, publisher, deps.Logger,
	)

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(deps.GormDB), tokens, cfg.Security.BCryptCost, deps.Logger)
	userService := user.NewService(userPostgres.NewRepository(deps.DB),
		user.WithPublisher(publisher),
		user.WithStartTime(deps.StartedAt),
		user.WithLogger(deps.Logger),
	)

	opts := rest.RouterOptions{
		DB:             deps.DB.DB,
		Cache:          deps.Cache.Store,
		AllowedOrigins: cfg.Server.Origins(),
		Logger:         deps.Logger,
		LogBodies:      cfg.Observability.Logging.LogBodies,
	}
	if cfg.Observability.Metrics.Enabled {
		opts.Metrics = promhttp.HandlerFor(deps.Cache.Registry, promhttp.HandlerOpts{})
		opts.MetricsPath = cfg.Observability.Metrics.Path
	}

	rest.RegisterAllRoutes(deps.Router, rest.Handlers{
		Auth:        auth.NewHandler(authService),
		User:        user.NewHandler(userService),
		Category:    category.NewHandler(categoryService),
		Transaction: transaction.NewHandler(transactionService),
		Analytics:   analytics.NewHandler(analyticsService),
	}, opts)
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	layer, err := initCache(ctx, config.Cache, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	bus := events.NewEventBus(log)
	cache.RegisterEventHandlers(bus, layer.Coordinator)

	deps := &Dependencies{
		Config:    config,
		Logger:    log,
		DB:        db,
		GormDB:    gormDB,
		Cache:     layer,
		EventBus:  bus,
		Router:    chi.NewRouter(),
		StartedAt: time.Now(),
	}

	if config.Cache.Broadcast.Enabled {
		b, err := broadcast.Dial(config.Cache.Broadcast.AMQPURL, config.Cache.Broadcast.Exchange, log)
		if err != nil {
			// replicas fall back to TTL expiry for peer writes
			log.Warn("cache invalidation broadcast unavailable", "error", err)
		} else {
			deps.Broadcaster = b
			layer.Coordinator.SetBroadcaster(b)
			go func() {
				if err := b.Consume(ctx, layer.Coordinator); err != nil && ctx.Err() == nil {
					log.Error("invalidation consumer stopped", "error", err)
				}
			}()
		}
	}

	return deps, nil
}

func (d *Dependencies) close() {
	if d.Broadcaster != nil {
		if err := d.Broadcaster.Close(); err != nil {
			d.Logger.Error("Broadcaster close error", "error", err)
		}
		d.Broadcaster = nil
	}
	if d.Cache != nil && d.Cache.Store != nil {
		if err := d.Cache.Store.Close(); err != nil {
			d.Logger.Error("Cache close error", "error", err)
		}
		d.Cache = nil
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("Database close error", "error", err)
		}
		d.DB = nil
	}
}

// initCache builds the store, the cache-aside orchestrator and the
// invalidation coordinator over one metrics registry.
func initCache(ctx context.Context, cfg internal.CacheConfig, log *slog.Logger) (*cacheLayer, error) {
	store, err := cache.NewStoreFromConfig(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := cache.NewMetrics(reg)

	coordinator := cache.NewCoordinator(store, log, metrics)

	opts := []cache.OrchestratorOption{
		cache.WithMetrics(metrics),
		cache.WithLogger(log),
		cache.WithEpoch(coordinator.Epoch()),
	}
	if cfg.SingleFlight {
		opts = append(opts, cache.WithSingleFlight())
	}

	return &cacheLayer{
		Store:        store,
		Orchestrator: cache.NewOrchestrator(store, opts...),
		Coordinator:  coordinator,
		Registry:     reg,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm so both see one set of limits.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

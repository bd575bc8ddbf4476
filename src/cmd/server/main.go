package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ce-fello/recruitment-review-service/src/internal/api"
	"github.com/ce-fello/recruitment-review-service/src/internal/config"
	"github.com/ce-fello/recruitment-review-service/src/internal/logger"
	"github.com/ce-fello/recruitment-review-service/src/internal/metrics"
	"github.com/ce-fello/recruitment-review-service/src/internal/roster"
	"github.com/ce-fello/recruitment-review-service/src/internal/service"
	"github.com/ce-fello/recruitment-review-service/src/internal/store"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sugar := log.Sugar()

	var db *sql.DB
	if cfg.Store.Driver == config.StoreDriverPostgres || cfg.Roster.Source == config.RosterSourcePostgres {
		var err error
		db, err = connectDBWithRetry(cfg.Database.URL, cfg.Database.ConnectAttempts, cfg.Database.ConnectRetryWait, sugar)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				sugar.Warnf("failed to close db: %v", err)
			}
		}()
		if err := runMigrations(db, cfg.Database.MigrationsDir, sugar); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		sugar.Info("migrations applied")
	}

	var repo store.Repository
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		sugar.Warn("using in-memory application store, data is lost on restart")
		repo = store.NewMemoryRepository(log)
	default:
		repo = store.NewRepositories(db, log)
	}

	dir := roster.NewDirectory(cfg.Roster.Hierarchy)
	src, closeSrc, err := rosterSource(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeSrc()

	refresher := roster.NewRefresher(dir, src, cfg.Roster.RefreshInterval, log)
	refresher.OnReplace = func(n int) { metrics.RosterEntries.Set(float64(n)) }
	if n, err := refresher.RefreshOnce(ctx); err != nil {
		// reviewers are refused until a later refresh succeeds
		sugar.Warnf("initial roster load failed: %v", err)
	} else {
		sugar.Infof("roster loaded with %d entries", n)
	}

	svc := service.NewService(repo, dir, service.Options{
		LeaseDuration: cfg.Review.LeaseDuration,
		QueueLimit:    cfg.Review.QueueLimit,
		Rules:         cfg.Visibility,
	}, log)
	h := api.NewHandler(svc, api.IdentityConfig{
		JWTSecret:   cfg.Auth.JWTSecret,
		AllowHeader: cfg.Auth.AllowHeaderIdentity,
	}, cfg.HTTP.RequestTimeout, log)

	r := chi.NewRouter()
	r.Use(api.RequestIDMiddleware, api.LoggerMiddleware(log), api.Recoverer(log))
	api.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if cfg.Roster.RefreshInterval > 0 {
		g.Go(func() error { return refresher.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		sugar.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func rosterSource(ctx context.Context, cfg *config.Config, db *sql.DB, log *zap.Logger) (roster.Source, func(), error) {
	switch cfg.Roster.Source {
	case config.RosterSourceRedis:
		client, err := roster.DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return roster.NewRedisSource(client, cfg.Roster.RedisKey), func() { _ = client.Close() }, nil
	case config.RosterSourcePostgres:
		return store.NewRepositories(db, log).RosterSource(), func() {}, nil
	default:
		return roster.FileSource{Path: cfg.Roster.Path, EmailDomain: cfg.Roster.EmailDomain}, func() {}, nil
	}
}

func connectDBWithRetry(dsn string, attempts int, delay time.Duration, sugar *zap.SugaredLogger) (*sql.DB, error) {
	var db *sql.DB
	var err error

	for i := 0; i < attempts; i++ {
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			if err = db.Ping(); err == nil {
				return db, nil
			}
			_ = db.Close()
		}
		sugar.Warnf("db ping error: %v (attempt %d/%d)", err, i+1, attempts)
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("db connect failed: %w", err)
}

func runMigrations(db *sql.DB, migrationsDir string, sugar *zap.SugaredLogger) error {
	sugar.Infof("running migrations from %s", migrationsDir)

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsDir,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		sugar.Info("no new migrations, already up to date")
	}
	return nil
}

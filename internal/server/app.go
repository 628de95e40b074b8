// Package server wires the application together: configuration, logging,
// database and migrations, the catalog services, and the HTTP endpoint with
// graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/avelats/polycat/internal/logging"
	"github.com/avelats/polycat/internal/server/config"
	"github.com/avelats/polycat/internal/server/httpapi"
	"github.com/avelats/polycat/internal/server/idgen"
	"github.com/avelats/polycat/internal/server/normalize"
	"github.com/avelats/polycat/internal/server/policy"
	"github.com/avelats/polycat/internal/server/repositories/repomanager"
	"github.com/avelats/polycat/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	repos, err := repositoryManager(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	gate := policy.NewRoleGate()
	ids := idgen.NewUUIDGenerator()

	ds := services.NewDraftService(db, repos, gate, normalize.NewTextNormalizer(), ids, logger)
	rs := services.NewRollbackService(db, repos, gate, ids, logger)
	cs := services.NewCatalogService(db, repos)

	srv := httpapi.NewServer(cfg.EndpointAddr, logger, ds, rs, cs, cfg.SecretKey, cfg.ShutdownTimeout)

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

func repositoryManager(driver string) (repomanager.RepositoryManager, error) {
	switch driver {
	case "pgx":
		return repomanager.NewPostgresRepositoryManager(), nil
	case "sqlite":
		return repomanager.NewSQLiteRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}

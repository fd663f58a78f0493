// Package server initializes and runs the backend: it opens the database,
// applies migrations, wires the services, and serves the HTTP API until
// shutdown.
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

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vmartynov/offsync/internal/common"
	"github.com/vmartynov/offsync/internal/logging"
	"github.com/vmartynov/offsync/internal/server/config"
	"github.com/vmartynov/offsync/internal/server/httpapi"
	"github.com/vmartynov/offsync/internal/server/migrations"
	recordsrepo "github.com/vmartynov/offsync/internal/server/repositories/records"
	usersrepo "github.com/vmartynov/offsync/internal/server/repositories/users"
	"github.com/vmartynov/offsync/internal/server/services"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	userService   *services.UserService
	recordService *services.RecordService
}

// runMigrations applies the embedded goose migration set.
func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := runMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	us := services.NewUserService(usersrepo.NewPostgresRepository(db), c)
	rs := services.NewRecordService(recordsrepo.NewPostgresRepository(db))

	return &App{config: c, logger: logger, userService: us, recordService: rs}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	handler := httpapi.NewHandler(app.userService, app.recordService, app.logger)
	router := httpapi.NewRouter(handler, common.RecordKinds)

	s := httpapi.NewServer(app.config.EndpointAddr, router, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
}
